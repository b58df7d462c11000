// services/user_service.go
package services

import (
	"fmt"
	"time"

	"github.com/wfunc/footgame/game"
	"github.com/wfunc/footgame/models"
	"github.com/wfunc/footgame/persistence"
)

type UserService struct {
	db persistence.Database
}

func NewUserService(db persistence.Database) *UserService {
	return &UserService{db: db}
}

// UpsertUser 登录时保存最新的用户资料与 Discord 凭据
func (s *UserService) UpsertUser(user models.User, oauth map[string]interface{}) error {
	return s.db.SaveUser(user, oauth)
}

func (s *UserService) GetUser(userID int64) (models.User, map[string]interface{}, error) {
	return s.db.LoadUser(userID)
}

// GetUserWithStats 获取用户信息和战绩统计
func (s *UserService) GetUserWithStats(userID int64) (map[string]interface{}, error) {
	user, _, err := s.db.LoadUser(userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.db.GetUserStats(userID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"user":  user,
		"stats": stats,
	}, nil
}

// RecordMatch 落库一场结束的对局；实现 room.Recorder。
func (s *UserService) RecordMatch(roomID string, players []*game.PlayerState, winnerID int64) error {
	playerData := make(map[string]interface{}, len(players))
	for _, p := range players {
		playerData[fmt.Sprintf("%d", p.ID())] = map[string]interface{}{
			"display_name": p.User.DisplayName,
			"observer":     p.Observer,
			"live":         p.Live,
			"left":         p.Departed(),
			"steps":        p.Steps,
		}
	}
	return s.db.SaveMatchRecord(&models.MatchRecord{
		RoomID:    roomID,
		Players:   playerData,
		WinnerID:  winnerID,
		CreatedAt: time.Now(),
	})
}
