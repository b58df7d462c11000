// state/interfaces.go
package state

import (
	"github.com/wfunc/footgame/game"
)

// Player is the minimal participant surface a room state needs. It is an
// interface to break the import cycle between state and room.
type Player interface {
	UserID() int64
	DisplayName() string
	SendJSON(v interface{}) error
}

// RoomContext is what a Room must expose to be driven by the lifecycle
// state machine.
type RoomContext interface {
	GetID() string
	ChangeState(newState State) error
	StartMatch(requester Player) error
	ApplyMove(p Player, target game.Coord, bomb bool) error
}
