// internal/lobby/joincode.go
package lobby

import "math/rand"

// codeAlphabet is A-Z plus digits minus the easily confused O, I, 0 and 1.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// codeMint hands out join codes from a counter. The alphabet is shuffled per
// mint and each digit is offset by its neighbor, so consecutive codes look
// unrelated. Not safe for concurrent use; the manager serializes access.
type codeMint struct {
	alphabet []byte
	minLen   int
	length   int
	last     int
}

// newCodeMint builds a mint producing codes of at least minLen characters.
// Shuffling can be disabled to make the sequence predictable in tests.
func newCodeMint(minLen int, shuffle bool) *codeMint {
	m := &codeMint{
		alphabet: []byte(codeAlphabet),
		minLen:   max(minLen, 1),
	}
	if shuffle {
		rand.Shuffle(len(m.alphabet), func(i, j int) {
			m.alphabet[i], m.alphabet[j] = m.alphabet[j], m.alphabet[i]
		})
	}
	m.ResetLen()
	return m
}

func (m *codeMint) encode(val int) string {
	base := len(m.alphabet)
	var encoded []byte
	// The previous digit feeds into the next as an offset, hiding the
	// counter's pattern.
	last := 0
	for val > 0 {
		digit := val % base
		val /= base
		actual := (digit + last) % base
		encoded = append(encoded, m.alphabet[actual])
		last = actual + 1
	}
	return string(encoded)
}

func (m *codeMint) setLen(length int) {
	m.length = length
	// Continue from the first value with that many digits.
	m.last = intPow(len(m.alphabet), m.length-1)
}

// ResetLen shrinks codes back to the minimum length, used after the garbage
// collector frees up the namespace.
func (m *codeMint) ResetLen() { m.setLen(m.minLen) }

// BumpLen makes codes one character longer, used after a collision.
func (m *codeMint) BumpLen() { m.setLen(m.length + 1) }

// Next returns the next code in the sequence.
func (m *codeMint) Next() string {
	m.last++
	if m.last >= intPow(len(m.alphabet), m.length) {
		// Wrapped around: restart at the smallest value of this length so
		// codes never come out short.
		m.last = intPow(len(m.alphabet), m.length-1)
	}
	return m.encode(m.last)
}

func intPow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
