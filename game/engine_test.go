package game

import (
	"errors"
	"testing"

	"github.com/wfunc/footgame/models"
	"github.com/wfunc/footgame/network"
)

func testUser(id int64, name string) models.User {
	return models.User{ID: id, Username: name, DisplayName: name}
}

// newTestEngine builds a 3×3 match with players A (id 1, start 0,0) and
// B (id 2, start 2,2), three bombs each.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Config{
		Width:          3,
		Height:         3,
		BombCount:      3,
		StartPositions: []Coord{{0, 0}, {2, 2}},
	}, []*PlayerState{
		NewPlayerState(testUser(1, "A"), false),
		NewPlayerState(testUser(2, "B"), false),
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func mustMove(t *testing.T, e *Engine, id int64, x, y int, bomb bool) []Event {
	t.Helper()
	events, err := e.Move(id, Coord{X: x, Y: y}, bomb)
	if err != nil {
		t.Fatalf("Move(%d, %d,%d) failed: %v", id, x, y, err)
	}
	return events
}

func hasBroadcastOfType(events []Event, msgType string) bool {
	for _, ev := range events {
		if ev.Target == 0 && ev.Message.Type == msgType {
			return true
		}
	}
	return false
}

func TestNewEngine_TooManyPlayers(t *testing.T) {
	_, err := NewEngine(Config{
		Width: 3, Height: 3, BombCount: 1,
		StartPositions: []Coord{{0, 0}},
	}, []*PlayerState{
		NewPlayerState(testUser(1, "A"), false),
		NewPlayerState(testUser(2, "B"), false),
	})
	if !errors.Is(err, ErrTooManyPlayers) {
		t.Fatalf("Expected ErrTooManyPlayers, got %v", err)
	}
}

func TestNewEngine_PlacesPlayersAndPicksFirstTurn(t *testing.T) {
	e := newTestEngine(t)

	if e.board.Occupant(Coord{0, 0}) != 1 || e.board.Occupant(Coord{2, 2}) != 2 {
		t.Error("Start cells should be owned by their players")
	}
	// 首回合固定给名单上的第一位
	if e.CurrentPlayer() != 1 {
		t.Errorf("Expected player 1 to hold the first turn, got %d", e.CurrentPlayer())
	}

	events := e.Begin()
	if len(events) != 1 || events[0].Target != 1 {
		t.Fatalf("Expected a single turn notice for player 1, got %+v", events)
	}
}

func TestEngine_Move_NotYourTurn(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Move(2, Coord{2, 1}, false)
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("Expected ErrNotYourTurn, got %v", err)
	}
	if e.CurrentPlayer() != 1 {
		t.Error("A rejected move must not advance the turn")
	}
}

func TestEngine_Move_IllegalDestination(t *testing.T) {
	e := newTestEngine(t)

	cases := []Coord{
		{1, 1},  // 斜角
		{0, 2},  // 距离 2
		{0, 0},  // 原地
		{-1, 0}, // 出界
	}
	for _, target := range cases {
		if _, err := e.Move(1, target, false); !errors.Is(err, ErrIllegalDestination) {
			t.Errorf("Move to %v: expected ErrIllegalDestination, got %v", target, err)
		}
	}
}

func TestEngine_Move_NoBombsLeft(t *testing.T) {
	e, err := NewEngine(Config{
		Width: 3, Height: 3, BombCount: 0,
		StartPositions: []Coord{{0, 0}, {2, 2}},
	}, []*PlayerState{
		NewPlayerState(testUser(1, "A"), false),
		NewPlayerState(testUser(2, "B"), false),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Move(1, Coord{0, 1}, true); !errors.Is(err, ErrNoBombsLeft) {
		t.Fatalf("Expected ErrNoBombsLeft, got %v", err)
	}
	// 不放雷仍可移动
	mustMove(t, e, 1, 0, 1, false)
}

func TestEngine_Move_ReturnToOwnFootprint(t *testing.T) {
	e := newTestEngine(t)

	mustMove(t, e, 1, 0, 1, false)
	mustMove(t, e, 2, 2, 1, false)
	// 回到自己的旧足跡：无淘汰，所有权转回
	events := mustMove(t, e, 1, 0, 0, false)

	if hasBroadcastOfType(events, network.MsgTypeError) {
		t.Error("Returning to an own footprint must not eliminate anyone")
	}
	p := e.Player(1)
	if !p.Live || p.X != 0 || p.Y != 0 {
		t.Errorf("Expected player 1 alive at (0,0), got live=%v pos=(%d,%d)", p.Live, p.X, p.Y)
	}
	if e.board.Occupant(Coord{0, 0}) != 1 {
		t.Error("Ownership should transfer back to player 1")
	}
	if e.Ended() {
		t.Error("Match must not end on a footprint return")
	}
}

func TestEngine_Move_StompKill(t *testing.T) {
	e := newTestEngine(t)

	mustMove(t, e, 1, 1, 0, false)
	mustMove(t, e, 2, 2, 1, false)
	mustMove(t, e, 1, 1, 1, false)
	// B 踩上 A 正站着的 (1,1)
	events := mustMove(t, e, 2, 1, 1, false)

	if !hasBroadcastOfType(events, network.MsgTypeError) {
		t.Error("Expected an elimination broadcast")
	}
	if e.Player(1).Live {
		t.Error("Player 1 should be eliminated")
	}
	if e.board.Occupant(Coord{1, 1}) != 2 {
		t.Error("Ownership should transfer to the stomper")
	}
	if !e.Ended() {
		t.Fatal("Match should end with one survivor")
	}
	if w := e.Winner(); w == nil || w.ID() != 2 {
		t.Errorf("Expected player 2 to win, got %+v", w)
	}
	if e.Player(1).Departed() {
		t.Error("An eliminated player is dead, not departed")
	}
}

func TestEngine_Move_BombKill(t *testing.T) {
	e := newTestEngine(t)

	mustMove(t, e, 1, 1, 0, true) // 在 (1,0) 埋雷
	mustMove(t, e, 2, 2, 1, false)
	mustMove(t, e, 1, 1, 1, false)
	mustMove(t, e, 2, 2, 0, false)
	mustMove(t, e, 1, 0, 1, false)
	// B 踩上 A 的地雷
	events, err := e.Move(2, Coord{1, 0}, false)
	if err != nil {
		t.Fatal(err)
	}

	if !hasBroadcastOfType(events, network.MsgTypeError) {
		t.Error("Expected an elimination broadcast")
	}
	if e.Player(2).Live {
		t.Error("Player 2 should be eliminated by the bomb")
	}
	if e.board.HasBomb(Coord{1, 0}) {
		t.Error("Triggered bomb should be consumed")
	}
	if e.board.Occupant(Coord{1, 0}) != 1 {
		t.Error("Ownership must stay with the bomb owner")
	}
	if !e.Ended() || e.Winner() == nil || e.Winner().ID() != 1 {
		t.Error("Player 1 should win the match")
	}
	// 阵亡者的坐标仍然推进
	if p := e.Player(2); p.X != 1 || p.Y != 0 {
		t.Errorf("Mover coordinate should advance even when dying, got (%d,%d)", p.X, p.Y)
	}
}

func TestEngine_Move_OwnBombKills(t *testing.T) {
	e := newTestEngine(t)

	mustMove(t, e, 1, 1, 0, true)
	mustMove(t, e, 2, 2, 1, false)
	mustMove(t, e, 1, 1, 1, false)
	mustMove(t, e, 2, 2, 2, false)
	// A 回头踩上自己的地雷
	mustMove(t, e, 1, 1, 0, false)

	if e.Player(1).Live {
		t.Error("Player 1 should die on their own bomb")
	}
	if !e.Ended() || e.Winner() == nil || e.Winner().ID() != 2 {
		t.Error("Player 2 should win")
	}
}

func TestEngine_Move_FootprintCollision(t *testing.T) {
	e := newTestEngine(t)

	mustMove(t, e, 1, 1, 0, false)
	mustMove(t, e, 2, 2, 1, false)
	mustMove(t, e, 1, 1, 1, false)
	mustMove(t, e, 2, 2, 0, false)
	mustMove(t, e, 1, 0, 1, false)
	// B 踩上 A 已离开的 (1,0) 足跡
	events := mustMove(t, e, 2, 1, 0, false)

	var moverNotified, ownerNotified bool
	for _, ev := range events {
		if ev.Message.Type != network.MsgTypeWarning {
			continue
		}
		switch ev.Target {
		case 2:
			moverNotified = true
		case 1:
			ownerNotified = true
		}
	}
	if !moverNotified || !ownerNotified {
		t.Errorf("Both sides of a footprint collision must be notified, got %+v", events)
	}
	if e.board.Occupant(Coord{1, 0}) != 2 {
		t.Error("Ownership should transfer on a footprint collision")
	}
	if !e.Player(1).Live || !e.Player(2).Live {
		t.Error("Nobody dies in a footprint collision")
	}
	if e.Ended() {
		t.Error("Match should continue")
	}
}

func TestEngine_TurnRotationSkipsDead(t *testing.T) {
	e, err := NewEngine(Config{
		Width: 4, Height: 4, BombCount: 1,
		StartPositions: []Coord{{0, 0}, {3, 0}, {3, 3}},
	}, []*PlayerState{
		NewPlayerState(testUser(1, "A"), false),
		NewPlayerState(testUser(2, "B"), false),
		NewPlayerState(testUser(3, "C"), false),
	})
	if err != nil {
		t.Fatal(err)
	}

	// B 阵亡后回合应从 A 直接跳到 C
	e.Player(2).Live = false
	mustMove(t, e, 1, 0, 1, false)
	if e.CurrentPlayer() != 3 {
		t.Errorf("Expected turn to skip to player 3, got %d", e.CurrentPlayer())
	}
	mustMove(t, e, 3, 3, 2, false)
	if e.CurrentPlayer() != 1 {
		t.Errorf("Expected wrap-around to player 1, got %d", e.CurrentPlayer())
	}
}

func TestEngine_Exit_PassesTurn(t *testing.T) {
	e, err := NewEngine(Config{
		Width: 4, Height: 4, BombCount: 1,
		StartPositions: []Coord{{0, 0}, {3, 0}, {3, 3}},
	}, []*PlayerState{
		NewPlayerState(testUser(1, "A"), false),
		NewPlayerState(testUser(2, "B"), false),
		NewPlayerState(testUser(3, "C"), false),
	})
	if err != nil {
		t.Fatal(err)
	}

	events := e.Exit(1)
	if e.Ended() {
		t.Fatal("Two live players remain, the match goes on")
	}
	if e.CurrentPlayer() != 2 {
		t.Errorf("Expected the turn to pass to player 2, got %d", e.CurrentPlayer())
	}
	if len(events) != 1 || events[0].Target != 2 {
		t.Errorf("Expected a turn notice for player 2, got %+v", events)
	}
}

func TestEngine_Exit_EndsMatch(t *testing.T) {
	e := newTestEngine(t)

	e.Exit(2)
	if !e.Ended() {
		t.Fatal("Match should end when one live player remains")
	}
	if w := e.Winner(); w == nil || w.ID() != 1 {
		t.Errorf("Expected player 1 as winner, got %+v", w)
	}
	if !e.Player(2).Departed() {
		t.Error("A leaver should be marked departed")
	}
	if e.Player(1).Departed() {
		t.Error("The survivor never left")
	}
}

func TestEngine_GenerateMap_FogOfWar(t *testing.T) {
	e := newTestEngine(t)
	mustMove(t, e, 1, 1, 0, true) // A 的雷在 (1,0)

	// B 看不到 A 的足跡，更看不到雷
	viewB := e.GenerateMap(e.Player(2))
	if viewB[1][0].Owner != nil {
		t.Error("Another player's footprint must be hidden")
	}
	if viewB[1][0].HasBomb {
		t.Error("Another player's bomb flag must never leak")
	}
	if viewB[2][2].Owner == nil || viewB[2][2].Owner.ID() != 2 {
		t.Error("A player sees their own footprints")
	}

	// A 看得到自己的雷
	viewA := e.GenerateMap(e.Player(1))
	if viewA[1][0].Owner == nil || !viewA[1][0].HasBomb {
		t.Error("A player sees their own bombs")
	}
	if viewA[2][2].Owner != nil {
		t.Error("B's start cell must be hidden from A")
	}
}

func TestEngine_GenerateMap_FullForObserversDeadAndEnded(t *testing.T) {
	e, err := NewEngine(Config{
		Width: 3, Height: 3, BombCount: 3,
		StartPositions: []Coord{{0, 0}, {2, 2}},
	}, []*PlayerState{
		NewPlayerState(testUser(1, "A"), false),
		NewPlayerState(testUser(2, "B"), false),
		NewPlayerState(testUser(3, "O"), true),
	})
	if err != nil {
		t.Fatal(err)
	}
	mustMove(t, e, 1, 1, 0, true)

	// 观战者看全图
	viewO := e.GenerateMap(e.Player(3))
	if viewO[1][0].Owner == nil || !viewO[1][0].HasBomb {
		t.Error("Observers see the unredacted board")
	}

	// 对局结束后所有人看全图
	e.Exit(2)
	viewB := e.GenerateMap(e.Player(2))
	if viewB[1][0].Owner == nil || !viewB[1][0].HasBomb {
		t.Error("After the match everyone sees the full board")
	}
}

func TestEngine_CheckAround(t *testing.T) {
	e := newTestEngine(t)

	if e.CheckAround(e.Player(1)) {
		t.Error("Nobody is near player 1 at start")
	}

	mustMove(t, e, 1, 1, 0, false)
	mustMove(t, e, 2, 2, 1, false)
	// B 的足跡 (2,1) 与 A 的 (1,0) 呈对角
	if !e.CheckAround(e.Player(1)) {
		t.Error("Player 1 should sense player 2's footprint diagonally")
	}

	if e.CheckAround(e.Player(3)) {
		t.Error("Unknown players never get the hint")
	}
}

func TestEngine_MoveAfterEnd(t *testing.T) {
	e := newTestEngine(t)
	e.Exit(2)

	if _, err := e.Move(1, Coord{0, 1}, false); !errors.Is(err, ErrMatchEnded) {
		t.Fatalf("Expected ErrMatchEnded, got %v", err)
	}
}

func TestEngine_BuildUpdate(t *testing.T) {
	e := newTestEngine(t)

	upd := e.BuildUpdate(1)
	if upd.CurrentPlayer != 1 {
		t.Errorf("Expected current_player 1, got %d", upd.CurrentPlayer)
	}
	if upd.Player == nil || upd.Player.ID() != 1 {
		t.Error("Update must carry the viewer's own state")
	}
	if len(upd.Map) != 3 || len(upd.Map[0]) != 3 {
		t.Errorf("Expected a 3×3 projection, got %dx%d", len(upd.Map), len(upd.Map[0]))
	}
}
