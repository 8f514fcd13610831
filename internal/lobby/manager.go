// internal/lobby/manager.go
package lobby

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ManagerConfig holds per-lobby timings plus the reaper schedule.
type ManagerConfig struct {
	Timings          Timings
	GCInterval       time.Duration
	MinLobbyLifespan time.Duration
	MaxLobbyLifespan time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Timings:          DefaultTimings(),
		GCInterval:       5 * time.Minute,
		MinLobbyLifespan: 5 * time.Minute,
		MaxLobbyLifespan: 6 * time.Hour,
	}
}

// Manager owns every live lobby, indexed by id and by join code. A
// background reaper shuts down lobbies that expired or sat empty.
type Manager struct {
	log *logrus.Logger
	cfg ManagerConfig

	mu     sync.Mutex
	byID   map[uuid.UUID]*Lobby
	byCode map[string]*Lobby
	mint   *codeMint
	now    func() time.Time

	gcOnce    sync.Once
	closeOnce sync.Once
	gcStop    chan struct{}
}

func NewManager(logger *logrus.Logger, cfg ManagerConfig) *Manager {
	return &Manager{
		log:    logger,
		cfg:    cfg,
		byID:   make(map[uuid.UUID]*Lobby),
		byCode: make(map[string]*Lobby),
		mint:   newCodeMint(3, true),
		now:    time.Now,
		gcStop: make(chan struct{}),
	}
}

// CreateLobby mints a join code and registers a fresh lobby under it. The
// first call also starts the reaper.
func (m *Manager) CreateLobby() *Lobby {
	m.mu.Lock()
	code := m.mint.Next()
	for {
		if _, taken := m.byCode[code]; !taken {
			break
		}
		// The counter wrapped into a live code; longer codes are free.
		m.mint.BumpLen()
		code = m.mint.Next()
	}
	l := NewLobby(code, m.log, m.cfg.Timings)
	m.byID[l.ID] = l
	m.byCode[code] = l
	m.mu.Unlock()

	m.gcOnce.Do(func() { go m.gcLoop() })
	m.log.Infof("created lobby %s with join code %s", l.ID, code)
	return l
}

// Lobby returns the lobby with the given id.
func (m *Manager) Lobby(id uuid.UUID) (*Lobby, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	return l, ok
}

// LobbyByCode looks a lobby up by join code. Codes compare
// case-insensitively so players can type them however they like.
func (m *Manager) LobbyByCode(code string) (*Lobby, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byCode[strings.ToUpper(code)]
	return l, ok
}

// Lobbies snapshots every live lobby, oldest first.
func (m *Manager) Lobbies() []*Lobby {
	m.mu.Lock()
	defer m.mu.Unlock()
	lobbies := make([]*Lobby, 0, len(m.byID))
	for _, l := range m.byID {
		lobbies = append(lobbies, l)
	}
	sort.Slice(lobbies, func(i, j int) bool {
		return lobbies[i].CreatedAt.Before(lobbies[j].CreatedAt)
	})
	return lobbies
}

func (m *Manager) gcLoop() {
	ticker := time.NewTicker(m.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.gcStop:
			return
		case <-ticker.C:
			m.collectGarbage()
		}
	}
}

// collectGarbage reaps lobbies older than the maximum lifespan, and lobbies
// past the minimum lifespan with nobody in them. Reaping frees join codes,
// so a sweep that removed anything lets the mint shrink back.
func (m *Manager) collectGarbage() int {
	now := m.now()
	m.mu.Lock()
	var doomed []*Lobby
	for id, l := range m.byID {
		age := now.Sub(l.CreatedAt)
		if age < m.cfg.MinLobbyLifespan {
			continue
		}
		if age < m.cfg.MaxLobbyLifespan && l.PlayerCount() > 0 {
			continue
		}
		doomed = append(doomed, l)
		delete(m.byID, id)
		delete(m.byCode, l.JoinCode)
	}
	if len(doomed) > 0 {
		m.mint.ResetLen()
	}
	m.mu.Unlock()

	for _, l := range doomed {
		m.log.Infof("reaping lobby %s (join code %s)", l.ID, l.JoinCode)
		l.Shutdown()
	}
	return len(doomed)
}

// Close stops the reaper and shuts every lobby down.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.gcOnce.Do(func() {}) // the reaper must not start after this
		close(m.gcStop)
	})

	m.mu.Lock()
	lobbies := make([]*Lobby, 0, len(m.byID))
	for _, l := range m.byID {
		lobbies = append(lobbies, l)
	}
	m.byID = make(map[uuid.UUID]*Lobby)
	m.byCode = make(map[string]*Lobby)
	m.mu.Unlock()

	for _, l := range lobbies {
		l.Shutdown()
	}
}
