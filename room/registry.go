// room/registry.go
package room

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/footgame/logger"
	"github.com/wfunc/footgame/models"
	"github.com/wfunc/footgame/timer"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidSettings = errors.New("invalid game settings")
)

type pendingRoom struct {
	settings models.GameSettings
	timerID  int64
}

// Manager 管理所有房间。Created settings sit in pending until the first
// join materializes a Room; insert, fetch and remove for one id are atomic
// with respect to each other.
type Manager struct {
	pending map[string]*pendingRoom
	rooms   map[string]*Room
	mutex   sync.RWMutex

	broadcaster Broadcaster
	recorder    Recorder
	timers      *timer.Manager
	pendingTTL  time.Duration
}

// NewManager 创建一个新的房间管理器。timers may be nil; pending settings
// then never expire.
func NewManager(timers *timer.Manager, pendingTTL time.Duration) *Manager {
	return &Manager{
		pending:    make(map[string]*pendingRoom),
		rooms:      make(map[string]*Room),
		timers:     timers,
		pendingTTL: pendingTTL,
	}
}

// SetBroadcaster wires the fan-out implementation; called once at startup
// (the broadcaster itself needs the manager, see package broadcast).
func (m *Manager) SetBroadcaster(b Broadcaster) { m.broadcaster = b }

func (m *Manager) SetRecorder(r Recorder) { m.recorder = r }

// CreateRoom validates the settings, stores them under a fresh
// unpredictable identifier, and returns the identifier.
func (m *Manager) CreateRoom(settings models.GameSettings) (string, error) {
	if err := validateSettings(settings); err != nil {
		return "", err
	}

	id := newRoomID()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	p := &pendingRoom{settings: settings}
	if m.timers != nil && m.pendingTTL > 0 {
		p.timerID = m.timers.AddTimer(m.pendingTTL, 0, func() {
			m.expirePending(id)
		})
	}
	m.pending[id] = p
	return id, nil
}

// Resolve returns the live room for an identifier, materializing it from
// pending settings on first join.
func (m *Manager) Resolve(id string) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if r, exists := m.rooms[id]; exists {
		return r, nil
	}
	p, exists := m.pending[id]
	if !exists {
		return nil, ErrRoomNotFound
	}
	delete(m.pending, id)
	if m.timers != nil && p.timerID != 0 {
		m.timers.RemoveTimer(p.timerID)
	}

	r := NewRoom(id, p.settings, m.broadcaster, m.recorder)
	m.rooms[id] = r
	return r, nil
}

// Get fetches a live room without materializing anything.
func (m *Manager) Get(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[id]
	return r, exists
}

// Has reports whether the identifier is known, live or pending.
func (m *Manager) Has(id string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if _, exists := m.rooms[id]; exists {
		return true
	}
	_, exists := m.pending[id]
	return exists
}

// Remove discards a room once its session closed.
func (m *Manager) Remove(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, id)
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// RoomIDs lists the live room identifiers, for the admin surface.
func (m *Manager) RoomIDs() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}

// AllRooms returns a snapshot of the live rooms.
func (m *Manager) AllRooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (m *Manager) expirePending(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.pending[id]; exists {
		delete(m.pending, id)
		logger.Log.Infow("expired unclaimed room settings", "room", id)
	}
}

// newRoomID 产生 32 字节随机数的 hex 表示，不可预测
func newRoomID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

func validateSettings(s models.GameSettings) error {
	if s.Width <= 0 || s.Height <= 0 {
		return ErrInvalidSettings
	}
	if s.BombCount < 0 {
		return ErrInvalidSettings
	}
	if len(s.StartPositions) < 2 {
		return ErrInvalidSettings
	}
	seen := make(map[[2]int]bool, len(s.StartPositions))
	for _, pos := range s.StartPositions {
		if pos[0] < 0 || pos[0] >= s.Width || pos[1] < 0 || pos[1] >= s.Height {
			return ErrInvalidSettings
		}
		if seen[pos] {
			return ErrInvalidSettings
		}
		seen[pos] = true
	}
	return nil
}
