// room/room.go
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/footgame/game"
	"github.com/wfunc/footgame/logger"
	"github.com/wfunc/footgame/models"
	"github.com/wfunc/footgame/network"
	"github.com/wfunc/footgame/session"
	"github.com/wfunc/footgame/state"
)

var (
	ErrAlreadyStarted = errors.New("match already started")
	ErrAlreadyInRoom  = errors.New("identity already in room")
	ErrRoomClosed     = errors.New("room closed")
)

// RoomStatus 房间业务状态
type RoomStatus int

const (
	StatusLobby RoomStatus = iota
	StatusPlaying
	StatusClosed
)

// Participant is one joined identity: a session reference plus the
// room-level observer flag.
type Participant struct {
	Session  *session.Session
	Observer bool
}

func (p *Participant) UserID() int64 { return p.Session.User.ID }

func (p *Participant) DisplayName() string { return p.Session.User.DisplayName }

func (p *Participant) SendJSON(v interface{}) error { return p.Session.SendJSON(v) }

// Room 是一局游戏的核心结构：名单、房主、引擎与生命周期状态机。
// All commands for one room run under mu, one at a time; different rooms
// never share state.
type Room struct {
	ID           string
	Settings     models.GameSettings
	CreatedAt    time.Time
	StateMachine state.StateMachine

	engine       *game.Engine
	host         *Participant
	participants []*Participant
	status       RoomStatus
	endAnnounced bool

	broadcaster Broadcaster
	recorder    Recorder

	mu       sync.Mutex
	rosterMu sync.RWMutex
	statusMu sync.RWMutex
}

// NewRoom 创建一个新房间（lobby 状态，无引擎）
func NewRoom(id string, settings models.GameSettings, broadcaster Broadcaster, recorder Recorder) *Room {
	r := &Room{
		ID:          id,
		Settings:    settings,
		CreatedAt:   time.Now(),
		broadcaster: broadcaster,
		recorder:    recorder,
		status:      StatusLobby,
	}
	r.StateMachine = state.NewBaseStateMachine(state.NewLobbyState(r))
	return r
}

// --- 实现 state.RoomContext 接口 ---

func (r *Room) GetID() string { return r.ID }

func (r *Room) ChangeState(newState state.State) error {
	return r.StateMachine.ChangeState(newState)
}

// StartMatch handles a START command. Caller holds mu (dispatched from
// HandleMessage).
func (r *Room) StartMatch(requester state.Player) error {
	if r.hostID() != requester.UserID() {
		return requester.SendJSON(network.Warning("你不是房主。"))
	}
	if r.engine != nil {
		return requester.SendJSON(network.Warning("遊戲已經開始了。"))
	}
	if r.activeCount() < 2 {
		return requester.SendJSON(network.Warning("房間人數不足。"))
	}

	cfg := game.Config{
		Width:     r.Settings.Width,
		Height:    r.Settings.Height,
		BombCount: r.Settings.BombCount,
	}
	for _, pos := range r.Settings.StartPositions {
		cfg.StartPositions = append(cfg.StartPositions, game.Coord{X: pos[0], Y: pos[1]})
	}

	var states []*game.PlayerState
	for _, p := range r.recipients() {
		states = append(states, game.NewPlayerState(p.Session.User, p.Observer))
	}

	engine, err := game.NewEngine(cfg, states)
	if err != nil {
		logger.Log.Errorw("engine construction failed", "room", r.ID, "error", err)
		return requester.SendJSON(network.Warning("房間人數不足。"))
	}
	r.engine = engine
	r.setStatus(StatusPlaying)
	if err := r.ChangeState(state.NewPlayingState(r)); err != nil {
		return err
	}

	r.sendTo(requester.UserID(), network.Info("遊戲開始。"))
	r.dispatch(engine.Begin())
	r.pushUpdates()
	return nil
}

// ApplyMove handles a MOVE command. Caller holds mu.
func (r *Room) ApplyMove(p state.Player, target game.Coord, bomb bool) error {
	if r.engine == nil {
		return p.SendJSON(network.Warning("遊戲尚未開始。"))
	}

	events, err := r.engine.Move(p.UserID(), target, bomb)
	if err != nil {
		// 规则违反只回给违反者，房间状态不变
		return p.SendJSON(moveError(err))
	}

	r.dispatch(events)
	r.pushUpdates()
	return nil
}

func moveError(err error) *network.Envelope {
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		return network.Error("當前不是你的回合。")
	case errors.Is(err, game.ErrIllegalDestination):
		return network.Error("無法移動至該處。")
	case errors.Is(err, game.ErrNoBombsLeft):
		return network.Error("地雷不足。")
	case errors.Is(err, game.ErrMatchEnded):
		return network.Error("遊戲已經結束了。")
	default:
		return network.Error("無法移動至該處。")
	}
}

// --- 房间核心逻辑 ---

// Join admits a session into the lobby. Latecomers past capacity become
// observers; joining a running or closed room is rejected.
func (r *Room) Join(sess *session.Session) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getStatus() == StatusClosed {
		return nil, ErrRoomClosed
	}
	if r.engine != nil || r.getStatus() != StatusLobby {
		return nil, ErrAlreadyStarted
	}

	r.rosterMu.Lock()
	for _, p := range r.participants {
		if p.UserID() == sess.User.ID {
			r.rosterMu.Unlock()
			return nil, ErrAlreadyInRoom
		}
	}
	p := &Participant{
		Session:  sess,
		Observer: r.activeCountLocked() >= r.Settings.Capacity(),
	}
	r.participants = append(r.participants, p)
	if r.host == nil {
		r.host = p
	}
	r.rosterMu.Unlock()

	sess.RoomID = r.ID
	r.broadcast(network.Info(sess.User.DisplayName + " 加入遊戲。"))
	r.broadcastRoster()
	return p, nil
}

// HandleMessage runs one inbound control message through the lifecycle
// state machine. Messages of one room are strictly serialized here.
func (r *Room) HandleMessage(p *Participant, msg *network.ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.StateMachine.GetCurrentState().HandleMessage(p, msg); err != nil {
		if errors.Is(err, network.ErrMalformedMessage) {
			logger.Log.Debugw("dropping malformed message", "room", r.ID, "user", p.UserID())
			return
		}
		logger.Log.Errorw("message handling failed",
			"room", r.ID, "user", p.UserID(), "type", msg.Type, "error", err)
	}
}

// Exit removes a participant. Returns true when the room emptied and
// should be discarded by the registry.
func (r *Room) Exit(p *Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rosterMu.Lock()
	for i, other := range r.participants {
		if other == p {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			break
		}
	}
	// 房主离开时顺位给名单上的下一位
	if r.host == p {
		if len(r.participants) > 0 {
			r.host = r.participants[0]
		} else {
			r.host = nil
		}
	}
	empty := len(r.participants) == 0
	r.rosterMu.Unlock()

	p.Session.RoomID = ""

	if r.engine != nil {
		r.dispatch(r.engine.Exit(p.UserID()))
	}

	if empty {
		r.setStatus(StatusClosed)
		return true
	}

	r.broadcast(network.Warning(p.DisplayName() + " 離開遊戲。"))
	r.broadcastRoster()
	if r.engine != nil {
		r.pushUpdates()
	}
	return false
}

// Recipients returns a roster snapshot for fan-out. Safe to call while a
// room command is running.
func (r *Room) Recipients() []*Participant {
	r.rosterMu.RLock()
	defer r.rosterMu.RUnlock()
	out := make([]*Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

func (r *Room) recipients() []*Participant { return r.Recipients() }

func (r *Room) activeCount() int {
	r.rosterMu.RLock()
	defer r.rosterMu.RUnlock()
	return r.activeCountLocked()
}

func (r *Room) activeCountLocked() int {
	n := 0
	for _, p := range r.participants {
		if !p.Observer {
			n++
		}
	}
	return n
}

func (r *Room) hostID() int64 {
	r.rosterMu.RLock()
	defer r.rosterMu.RUnlock()
	if r.host == nil {
		return 0
	}
	return r.host.UserID()
}

func (r *Room) GetStatus() RoomStatus { return r.getStatus() }

func (r *Room) getStatus() RoomStatus {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status
}

func (r *Room) setStatus(s RoomStatus) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.status = s
}

// --- 消息分发 ---

// dispatch delivers engine outcome events: target 0 goes to the room,
// anything else to that user only.
func (r *Room) dispatch(events []game.Event) {
	for _, ev := range events {
		if ev.Target == 0 {
			r.broadcast(ev.Message)
			continue
		}
		r.sendTo(ev.Target, ev.Message)
	}
}

// pushUpdates sends every participant their redacted DATA view, then the
// terminal END broadcast the first time the match is over.
func (r *Room) pushUpdates() {
	for _, p := range r.recipients() {
		if err := p.SendJSON(network.Data(r.engine.BuildUpdate(p.UserID()))); err != nil {
			logger.Log.Debugw("dropping view update", "room", r.ID, "user", p.UserID(), "error", err)
		}
	}

	if r.engine.Ended() && !r.endAnnounced {
		r.endAnnounced = true
		r.broadcast(r.engine.FinishMessage())
		if err := r.ChangeState(state.NewEndedState(r)); err != nil {
			logger.Log.Errorw("transition to ended failed", "room", r.ID, "error", err)
		}
		if r.recorder != nil {
			winnerID := int64(0)
			if w := r.engine.Winner(); w != nil {
				winnerID = w.ID()
			}
			if err := r.recorder.RecordMatch(r.ID, r.engine.Players(), winnerID); err != nil {
				logger.Log.Errorw("recording match failed", "room", r.ID, "error", err)
			}
		}
	}
}

func (r *Room) broadcast(env *network.Envelope) {
	if err := r.broadcaster.BroadcastToRoom(r.ID, env); err != nil {
		logger.Log.Debugw("room broadcast failed", "room", r.ID, "error", err)
	}
}

func (r *Room) broadcastRoster() {
	users := make([]models.User, 0)
	r.rosterMu.RLock()
	for _, p := range r.participants {
		users = append(users, p.Session.User)
	}
	r.rosterMu.RUnlock()
	r.broadcast(network.Roster(r.hostID(), users))
}

func (r *Room) sendTo(userID int64, env *network.Envelope) {
	for _, p := range r.recipients() {
		if p.UserID() == userID {
			if err := p.SendJSON(env); err != nil {
				logger.Log.Debugw("dropping message", "room", r.ID, "user", userID, "error", err)
			}
			return
		}
	}
}
