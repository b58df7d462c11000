package state

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/wfunc/footgame/game"
	"github.com/wfunc/footgame/network"
)

// MockState 用于测试状态机本身
type MockState struct {
	id       string
	entered  bool
	exited   bool
	messages []*network.ClientMessage
}

func (m *MockState) OnEnter()      { m.entered = true }
func (m *MockState) OnExit()       { m.exited = true }
func (m *MockState) GetID() string { return m.id }

func (m *MockState) HandleMessage(player Player, msg *network.ClientMessage) error {
	m.messages = append(m.messages, msg)
	return nil
}

// MockPlayer 记录回执
type MockPlayer struct {
	id   int64
	name string
	Sent []*network.Envelope
}

func (m *MockPlayer) UserID() int64       { return m.id }
func (m *MockPlayer) DisplayName() string { return m.name }

func (m *MockPlayer) SendJSON(v interface{}) error {
	m.Sent = append(m.Sent, v.(*network.Envelope))
	return nil
}

// MockRoomContext 记录状态触发的房间调用
type MockRoomContext struct {
	startCalls int
	lastMover  int64
	lastTarget game.Coord
	lastBomb   bool
}

func (m *MockRoomContext) GetID() string { return "mock-room" }

func (m *MockRoomContext) ChangeState(s State) error { return nil }

func (m *MockRoomContext) StartMatch(requester Player) error {
	m.startCalls++
	return nil
}

func (m *MockRoomContext) ApplyMove(p Player, target game.Coord, bomb bool) error {
	m.lastMover = p.UserID()
	m.lastTarget = target
	m.lastBomb = bomb
	return nil
}

func TestBaseStateMachine_InitialState(t *testing.T) {
	initial := &MockState{id: "initial"}
	machine := NewBaseStateMachine(initial)

	if !initial.entered {
		t.Error("Initial state should get OnEnter")
	}
	if machine.GetCurrentState().GetID() != "initial" {
		t.Errorf("Expected initial state, got %s", machine.GetCurrentState().GetID())
	}
}

func TestBaseStateMachine_ChangeState(t *testing.T) {
	initial := &MockState{id: "initial"}
	next := &MockState{id: "next"}
	machine := NewBaseStateMachine(initial)

	if err := machine.ChangeState(next); err != nil {
		t.Fatalf("ChangeState failed: %v", err)
	}
	if !initial.exited {
		t.Error("Old state should get OnExit")
	}
	if !next.entered {
		t.Error("New state should get OnEnter")
	}
	if machine.GetCurrentState().GetID() != "next" {
		t.Errorf("Expected next state, got %s", machine.GetCurrentState().GetID())
	}
}

func TestBaseStateMachine_GuardBlocksTransition(t *testing.T) {
	initial := &MockState{id: "initial"}
	next := &MockState{id: "next"}
	machine := NewBaseStateMachine(initial)

	machine.AddTransition(initial, next, func() bool { return false })

	if err := machine.ChangeState(next); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("Expected ErrTransitionNotAllowed, got %v", err)
	}
	if machine.GetCurrentState().GetID() != "initial" {
		t.Error("Blocked transition must leave the current state in place")
	}
	if next.entered {
		t.Error("Blocked target must not get OnEnter")
	}
}

func TestBaseStateMachine_GuardAllowsTransition(t *testing.T) {
	initial := &MockState{id: "initial"}
	next := &MockState{id: "next"}
	machine := NewBaseStateMachine(initial)

	machine.AddTransition(initial, next, func() bool { return true })

	if err := machine.ChangeState(next); err != nil {
		t.Fatalf("Expected guarded transition to pass, got %v", err)
	}
}

func TestLobbyState_StartGoesToRoom(t *testing.T) {
	room := &MockRoomContext{}
	lobby := NewLobbyState(room)
	player := &MockPlayer{id: 1, name: "A"}

	if err := lobby.HandleMessage(player, &network.ClientMessage{Type: network.MsgTypeStart}); err != nil {
		t.Fatal(err)
	}
	if room.startCalls != 1 {
		t.Errorf("Expected one StartMatch call, got %d", room.startCalls)
	}
}

func TestLobbyState_MoveRejected(t *testing.T) {
	room := &MockRoomContext{}
	lobby := NewLobbyState(room)
	player := &MockPlayer{id: 1, name: "A"}

	lobby.HandleMessage(player, &network.ClientMessage{
		Type: network.MsgTypeMove,
		Data: json.RawMessage(`{"x":1,"y":0,"bomb":false}`),
	})

	if len(player.Sent) != 1 || player.Sent[0].Type != network.MsgTypeWarning {
		t.Fatalf("Expected a WARNING, got %+v", player.Sent)
	}
	if player.Sent[0].Data != "遊戲尚未開始。" {
		t.Errorf("Unexpected warning text: %v", player.Sent[0].Data)
	}
}

func TestLobbyState_UnknownTypeIgnored(t *testing.T) {
	room := &MockRoomContext{}
	lobby := NewLobbyState(room)
	player := &MockPlayer{id: 1, name: "A"}

	if err := lobby.HandleMessage(player, &network.ClientMessage{Type: "PING"}); err != nil {
		t.Fatalf("Unknown message types must be dropped silently, got %v", err)
	}
	if len(player.Sent) != 0 {
		t.Error("Unknown message types must not produce a reply")
	}
}

func TestPlayingState_MoveDecodesPayload(t *testing.T) {
	room := &MockRoomContext{}
	playing := NewPlayingState(room)
	player := &MockPlayer{id: 7, name: "A"}

	err := playing.HandleMessage(player, &network.ClientMessage{
		Type: network.MsgTypeMove,
		Data: json.RawMessage(`{"x":2,"y":3,"bomb":true}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if room.lastMover != 7 {
		t.Errorf("Expected mover 7, got %d", room.lastMover)
	}
	if room.lastTarget != (game.Coord{X: 2, Y: 3}) || !room.lastBomb {
		t.Errorf("Unexpected move payload: %+v bomb=%v", room.lastTarget, room.lastBomb)
	}
}

func TestPlayingState_MalformedMove(t *testing.T) {
	room := &MockRoomContext{}
	playing := NewPlayingState(room)
	player := &MockPlayer{id: 1, name: "A"}

	err := playing.HandleMessage(player, &network.ClientMessage{
		Type: network.MsgTypeMove,
		Data: json.RawMessage(`{"x":"oops"}`),
	})
	if !errors.Is(err, network.ErrMalformedMessage) {
		t.Fatalf("Expected ErrMalformedMessage, got %v", err)
	}
}

func TestPlayingState_StartRejected(t *testing.T) {
	room := &MockRoomContext{}
	playing := NewPlayingState(room)
	player := &MockPlayer{id: 1, name: "A"}

	playing.HandleMessage(player, &network.ClientMessage{Type: network.MsgTypeStart})

	if len(player.Sent) != 1 || player.Sent[0].Data != "遊戲已經開始了。" {
		t.Fatalf("Expected already-started warning, got %+v", player.Sent)
	}
	if room.startCalls != 0 {
		t.Error("START during a match must not reach the room")
	}
}

func TestEndedState_MoveRejected(t *testing.T) {
	room := &MockRoomContext{}
	ended := NewEndedState(room)
	player := &MockPlayer{id: 1, name: "A"}

	ended.HandleMessage(player, &network.ClientMessage{
		Type: network.MsgTypeMove,
		Data: json.RawMessage(`{"x":1,"y":0,"bomb":false}`),
	})

	if len(player.Sent) != 1 || player.Sent[0].Type != network.MsgTypeError {
		t.Fatalf("Expected an ERROR, got %+v", player.Sent)
	}
	if player.Sent[0].Data != "遊戲已經結束了。" {
		t.Errorf("Unexpected error text: %v", player.Sent[0].Data)
	}
}
