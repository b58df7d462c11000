package room

import (
	"github.com/wfunc/footgame/game"
	"github.com/wfunc/footgame/network"
)

// Broadcaster fans a message out to every participant of a room. Defined
// here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, env *network.Envelope) error
}

// Recorder persists finished-match results. Optional; a nil recorder
// disables history.
type Recorder interface {
	RecordMatch(roomID string, players []*game.PlayerState, winnerID int64) error
}
