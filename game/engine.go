package game

import (
	"errors"
	"fmt"

	"github.com/wfunc/footgame/models"
	"github.com/wfunc/footgame/network"
)

var (
	ErrMatchEnded         = errors.New("match already ended")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrIllegalDestination = errors.New("illegal destination")
	ErrNoBombsLeft        = errors.New("no bombs left")
	ErrTooManyPlayers     = errors.New("more players than start positions")
	ErrUnknownPlayer      = errors.New("unknown player")
)

// Config 对局设定
type Config struct {
	Width          int
	Height         int
	BombCount      int
	StartPositions []Coord
}

// PlayerState is one participant as the engine sees them, keyed by the
// stable user id. The JSON shape is what DATA payloads carry.
type PlayerState struct {
	User     models.User `json:"user"`
	X        int         `json:"pos_x"`
	Y        int         `json:"pos_y"`
	Bombs    int         `json:"bomb_count"`
	Observer bool        `json:"observer"`
	Live     bool        `json:"live"`
	Steps    int         `json:"count"`

	gone bool
}

func NewPlayerState(user models.User, observer bool) *PlayerState {
	return &PlayerState{User: user, Observer: observer, Live: !observer}
}

func (p *PlayerState) ID() int64 { return p.User.ID }

// Departed reports whether the player left the room mid-match, as opposed
// to being eliminated on the board.
func (p *PlayerState) Departed() bool { return p.gone }

func (p *PlayerState) at(c Coord) bool { return p.X == c.X && p.Y == c.Y }

// Event is an outcome message produced by the engine. Target 0 means the
// whole room; otherwise it goes to that user only. The room fans events
// out, the engine never touches a connection.
type Event struct {
	Target  int64
	Message *network.Envelope
}

func toAll(env *network.Envelope) Event { return Event{Message: env} }

func toPlayer(id int64, env *network.Envelope) Event { return Event{Target: id, Message: env} }

// BlockView is one cell of a (possibly redacted) board projection.
type BlockView struct {
	Owner   *PlayerState `json:"owner"`
	HasBomb bool         `json:"has_bomb"`
}

// Update is the DATA payload sent to a single participant.
type Update struct {
	Map           [][]BlockView `json:"map"`
	CurrentPlayer int64         `json:"current_player"`
	Around        bool          `json:"around"`
	Player        *PlayerState  `json:"player"`
}

// Engine runs one match: board, fixed turn order, elimination, and the
// per-player projection. All relations are stored as user ids, never as
// roster indices into a mutable slice.
type Engine struct {
	board   *Board
	players []*PlayerState
	byID    map[int64]*PlayerState
	// order is the non-observer roster snapshotted at start; departed
	// players are tombstoned, never removed, so relative order is stable.
	order   []int64
	current int
	ended   bool
	winner  *PlayerState
}

// NewEngine places every non-observer on their start position and gives
// the first turn to the first non-observer in join order.
func NewEngine(cfg Config, players []*PlayerState) (*Engine, error) {
	e := &Engine{
		board:   NewBoard(cfg.Width, cfg.Height),
		players: players,
		byID:    make(map[int64]*PlayerState, len(players)),
	}
	for _, p := range players {
		e.byID[p.ID()] = p
		if p.Observer {
			continue
		}
		e.order = append(e.order, p.ID())
	}
	if len(e.order) > len(cfg.StartPositions) {
		return nil, ErrTooManyPlayers
	}
	for i, id := range e.order {
		p := e.byID[id]
		start := cfg.StartPositions[i]
		p.Bombs = cfg.BombCount
		p.X, p.Y = start.X, start.Y
		p.Steps = 1
		e.board.Place(start, id, false)
	}
	return e, nil
}

// Begin announces the first turn without advancing the pointer.
func (e *Engine) Begin() []Event {
	return e.nextRound(false)
}

// Move applies one turn. Rule violations come back as errors and leave the
// match untouched; they are for the mover's eyes only.
func (e *Engine) Move(playerID int64, target Coord, bomb bool) ([]Event, error) {
	if e.ended {
		return nil, ErrMatchEnded
	}
	p, ok := e.byID[playerID]
	if !ok || p.Observer {
		return nil, ErrUnknownPlayer
	}
	if e.order[e.current] != playerID {
		return nil, ErrNotYourTurn
	}
	if !(Coord{X: p.X, Y: p.Y}).Adjacent(target) || !e.board.InBounds(target) {
		return nil, ErrIllegalDestination
	}
	if bomb {
		if p.Bombs == 0 {
			return nil, ErrNoBombsLeft
		}
		p.Bombs--
	}

	p.Steps++
	name := p.User.DisplayName
	events := []Event{toAll(network.Info(
		fmt.Sprintf("%s 移動完成。 第 %d 個 %s 出現了。", name, p.Steps, name)))}

	occ := e.board.Occupant(target)
	switch {
	case occ == 0:
		e.board.Place(target, playerID, bomb)

	case occ == playerID && !e.board.HasBomb(target):
		// 回到自己的足跡，直接接管
		e.board.Place(target, playerID, bomb)

	default:
		owner := e.byID[occ]
		switch {
		case owner != nil && owner.Live && owner.at(target):
			// 踩死站在目标格上的玩家，所有权转移
			owner.Live = false
			events = append(events, toAll(network.Error(
				fmt.Sprintf("%s 被 %s 踩死了。", owner.User.DisplayName, name))))
			e.board.Place(target, playerID, bomb)

		case e.board.HasBomb(target):
			// 地雷引爆：移动者阵亡，所有权不变，地雷消耗
			p.Live = false
			e.board.ClearBomb(target)
			text := fmt.Sprintf("%s 被 %s 炸死了。", name, ownerName(owner))
			if occ == playerID {
				text = fmt.Sprintf("%s 踩到自己的地雷了。", name)
			}
			events = append(events, toAll(network.Error(text)))

		default:
			// 空足跡：双方收到提示，所有权转移
			events = append(events,
				toPlayer(playerID, network.Warning(
					fmt.Sprintf("你踩到 %s 的足跡了。", ownerName(owner)))),
				toPlayer(occ, network.Warning(
					fmt.Sprintf("你的足跡被 %s 踩到了。", name))))
			e.board.Place(target, playerID, bomb)
		}
	}

	p.X, p.Y = target.X, target.Y
	return append(events, e.nextRound(true)...), nil
}

// Exit tombstones a departing player. If they held the turn it passes on
// before anything else; end-of-match is re-evaluated either way.
func (e *Engine) Exit(playerID int64) []Event {
	p, ok := e.byID[playerID]
	if !ok {
		return nil
	}
	if p.Observer || e.ended {
		p.Live = false
		p.gone = true
		return nil
	}
	wasCurrent := e.order[e.current] == playerID
	p.Live = false
	p.gone = true
	if wasCurrent {
		return e.nextRound(true)
	}
	if e.liveCount() <= 1 {
		return e.nextRound(false)
	}
	return nil
}

func ownerName(owner *PlayerState) string {
	if owner == nil {
		return "?"
	}
	return owner.User.DisplayName
}

func (e *Engine) liveCount() int {
	n := 0
	for _, id := range e.order {
		if e.byID[id].Live {
			n++
		}
	}
	return n
}

// nextRound either hands the turn to the next live player (bounded ring
// scan over the start-order snapshot) or ends the match.
func (e *Engine) nextRound(advance bool) []Event {
	if e.liveCount() > 1 {
		if advance {
			for i := 1; i <= len(e.order); i++ {
				idx := (e.current + i) % len(e.order)
				if e.byID[e.order[idx]].Live {
					e.current = idx
					break
				}
			}
		}
		return []Event{toPlayer(e.order[e.current], network.Info("輪到你了。"))}
	}

	e.ended = true
	for _, id := range e.order {
		if e.byID[id].Live {
			e.winner = e.byID[id]
			break
		}
	}
	return nil
}

func (e *Engine) Ended() bool { return e.ended }

func (e *Engine) Winner() *PlayerState { return e.winner }

// CurrentPlayer is the turn holder while running, the winner (or 0) once
// ended.
func (e *Engine) CurrentPlayer() int64 {
	if e.ended {
		if e.winner != nil {
			return e.winner.ID()
		}
		return 0
	}
	return e.order[e.current]
}

func (e *Engine) Player(id int64) *PlayerState { return e.byID[id] }

// Players returns the full roster snapshot, observers included.
func (e *Engine) Players() []*PlayerState { return e.players }

// FinishMessage is the terminal END broadcast.
func (e *Engine) FinishMessage() *network.Envelope {
	if e.winner == nil {
		return network.End("遊戲結束，沒有人獲勝。")
	}
	return network.End(fmt.Sprintf("遊戲結束，獲勝的是 %s。", e.winner.User.DisplayName))
}

// BuildUpdate assembles the DATA payload for one participant, applying the
// visibility rule.
func (e *Engine) BuildUpdate(viewerID int64) *Update {
	viewer := e.byID[viewerID]
	return &Update{
		Map:           e.GenerateMap(viewer),
		CurrentPlayer: e.CurrentPlayer(),
		Around:        e.CheckAround(viewer),
		Player:        viewer,
	}
}

// GenerateMap projects the board for a viewer. Observers, the dead, and
// anyone looking at a finished match see everything; a live player sees
// only their own footprints, and never another player's bomb flag.
func (e *Engine) GenerateMap(viewer *PlayerState) [][]BlockView {
	full := viewer == nil || viewer.Observer || !viewer.Live || e.ended

	view := make([][]BlockView, e.board.Width())
	for x := range view {
		view[x] = make([]BlockView, e.board.Height())
		for y := range view[x] {
			c := Coord{X: x, Y: y}
			occ := e.board.Occupant(c)
			switch {
			case full:
				view[x][y] = BlockView{Owner: e.byID[occ], HasBomb: e.board.HasBomb(c)}
			case occ == viewer.ID():
				view[x][y] = BlockView{Owner: viewer, HasBomb: e.board.HasBomb(c)}
			default:
				view[x][y] = BlockView{}
			}
		}
	}
	return view
}

// CheckAround reports whether any of the viewer's eight neighboring cells
// carries another player's footprint. Delivered alongside each view as the
// "enemy nearby" hint.
func (e *Engine) CheckAround(viewer *PlayerState) bool {
	if viewer == nil || viewer.Observer || !viewer.Live {
		return false
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			c := Coord{X: viewer.X + dx, Y: viewer.Y + dy}
			if !e.board.InBounds(c) {
				continue
			}
			if occ := e.board.Occupant(c); occ != 0 && occ != viewer.ID() {
				return true
			}
		}
	}
	return false
}
