// internal/lobby/joincode_test.go
package lobby

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeMintDeterministicWithoutShuffle(t *testing.T) {
	a := newCodeMint(3, false)
	b := newCodeMint(3, false)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestCodeMintLengthAndAlphabet(t *testing.T) {
	m := newCodeMint(3, true)
	for i := 0; i < 500; i++ {
		code := m.Next()
		require.Len(t, code, 3)
		for _, r := range code {
			require.Contains(t, codeAlphabet, string(r))
		}
	}
}

func TestCodeMintAvoidsAmbiguousCharacters(t *testing.T) {
	m := newCodeMint(4, true)
	for i := 0; i < 500; i++ {
		code := m.Next()
		assert.False(t, strings.ContainsAny(code, "01OI"), "code %q uses an ambiguous character", code)
	}
}

func TestCodeMintUniqueUntilWrap(t *testing.T) {
	m := newCodeMint(3, false)
	seen := make(map[string]bool)
	for i := 0; i < 2000; i++ {
		code := m.Next()
		require.False(t, seen[code], "code %q repeated after %d mints", code, i)
		seen[code] = true
	}
}

func TestCodeMintBumpAndReset(t *testing.T) {
	m := newCodeMint(3, true)
	require.Len(t, m.Next(), 3)

	m.BumpLen()
	require.Len(t, m.Next(), 4)
	m.BumpLen()
	require.Len(t, m.Next(), 5)

	m.ResetLen()
	require.Len(t, m.Next(), 3)
}

func TestCodeMintHonorsMinimumLength(t *testing.T) {
	m := newCodeMint(5, false)
	assert.Len(t, m.Next(), 5)
}
