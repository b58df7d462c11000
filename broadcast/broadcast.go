// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/footgame/logger"
	"github.com/wfunc/footgame/monitor"
	"github.com/wfunc/footgame/network"
	"github.com/wfunc/footgame/room"
)

var ErrRoomNotFound = errors.New("room not found")

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, env *network.Envelope) error
	BroadcastToAll(env *network.Envelope) error
}

// RoomBroadcaster fans messages out to every participant of a room.
// Delivery is best effort: a dead connection is counted and skipped, it
// never stalls the rest of the room or the caller.
type RoomBroadcaster struct {
	roomManager *room.Manager
	monitor     *monitor.Monitor
}

// NewRoomBroadcaster 创建房间广播器。monitor may be nil.
func NewRoomBroadcaster(roomManager *room.Manager, monitor *monitor.Monitor) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager: roomManager,
		monitor:     monitor,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, env *network.Envelope) error {
	r, exists := b.roomManager.Get(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, p := range r.Recipients() {
		if err := p.SendJSON(env); err != nil {
			logger.Log.Debugw("broadcast send dropped",
				"room", roomID, "user", p.UserID(), "error", err)
			if b.monitor != nil {
				b.monitor.IncBroadcastFailures()
			}
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(env *network.Envelope) error {
	for _, r := range b.roomManager.AllRooms() {
		if err := b.BroadcastToRoom(r.ID, env); err != nil && !errors.Is(err, ErrRoomNotFound) {
			return err
		}
	}
	return nil
}
