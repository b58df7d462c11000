// models/models.go
package models

import (
	"time"
)

// User 用户基本资料（来自 Discord，经 token 验证后传入核心）
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// GameSettings 建立房间时提交的对局设定
type GameSettings struct {
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	BombCount      int      `json:"bomb_count"`
	StartPositions [][2]int `json:"start_position"`
}

// Capacity is the number of non-observer slots; everyone past it joins as
// an observer.
func (s GameSettings) Capacity() int {
	return len(s.StartPositions)
}

// MatchRecord 对局结果（非断线续传用，仅作历史记录）
type MatchRecord struct {
	RoomID    string                 `json:"room_id"`
	Players   map[string]interface{} `json:"players"`
	WinnerID  int64                  `json:"winner_id"`
	CreatedAt time.Time              `json:"created_at"`
}

// UserStats 玩家统计信息
type UserStats struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
}
