package state

import (
	"errors"
	"sync"

	"github.com/wfunc/footgame/network"
)

// 房间生命周期状态机：lobby → playing → ended
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

type State interface {
	OnEnter()
	OnExit()
	GetID() string
	HandleMessage(player Player, msg *network.ClientMessage) error
}

// ErrTransitionNotAllowed is returned when a state transition is blocked
// by its guard.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> guard
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	if guards, exists := sm.transitions[currentID]; exists {
		if guard, exists := guards[newID]; exists {
			if guard != nil && !guard() {
				return ErrTransitionNotAllowed
			}
		}
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// RoomStateBase carries the shared fields and default no-op hooks.
type RoomStateBase struct {
	ID   string
	Room RoomContext
}

func (s *RoomStateBase) GetID() string { return s.ID }

func (s *RoomStateBase) OnEnter() {}

func (s *RoomStateBase) OnExit() {}

// NewLobbyState creates the initial lobby state.
func NewLobbyState(room RoomContext) *LobbyState {
	return &LobbyState{
		RoomStateBase: RoomStateBase{ID: "lobby", Room: room},
	}
}

// LobbyState 等待房主开局
type LobbyState struct {
	RoomStateBase
}

func (s *LobbyState) HandleMessage(player Player, msg *network.ClientMessage) error {
	switch msg.Type {
	case network.MsgTypeStart:
		return s.Room.StartMatch(player)
	case network.MsgTypeMove:
		return player.SendJSON(network.Warning("遊戲尚未開始。"))
	default:
		// 未知消息直接丢弃，连接不受影响
		return nil
	}
}
