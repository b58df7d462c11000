package state

import (
	"encoding/json"
	"fmt"

	"github.com/wfunc/footgame/game"
	"github.com/wfunc/footgame/network"
)

// NewPlayingState creates the state for a running match.
func NewPlayingState(room RoomContext) *PlayingState {
	return &PlayingState{
		RoomStateBase: RoomStateBase{ID: "playing", Room: room},
	}
}

// PlayingState 对局进行中
type PlayingState struct {
	RoomStateBase
}

func (s *PlayingState) HandleMessage(player Player, msg *network.ClientMessage) error {
	switch msg.Type {
	case network.MsgTypeMove:
		var req network.MoveRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return fmt.Errorf("%w: %v", network.ErrMalformedMessage, err)
		}
		return s.Room.ApplyMove(player, game.Coord{X: req.X, Y: req.Y}, req.Bomb)
	case network.MsgTypeStart:
		return player.SendJSON(network.Warning("遊戲已經開始了。"))
	default:
		return nil
	}
}

// NewEndedState creates the terminal state; the room lingers only until
// everyone leaves.
func NewEndedState(room RoomContext) *EndedState {
	return &EndedState{
		RoomStateBase: RoomStateBase{ID: "ended", Room: room},
	}
}

// EndedState 对局已结束
type EndedState struct {
	RoomStateBase
}

func (s *EndedState) HandleMessage(player Player, msg *network.ClientMessage) error {
	switch msg.Type {
	case network.MsgTypeStart:
		return player.SendJSON(network.Warning("遊戲已經開始了。"))
	case network.MsgTypeMove:
		return player.SendJSON(network.Error("遊戲已經結束了。"))
	default:
		return nil
	}
}
