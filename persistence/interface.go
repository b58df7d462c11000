// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/wfunc/footgame/models"
)

// Database 数据库接口。Implemented twice, on GORM and on raw database/sql;
// the interface stays driver-free so both fit.
type Database interface {
	SaveUser(user models.User, oauth map[string]interface{}) error
	LoadUser(userID int64) (models.User, map[string]interface{}, error)
	SaveMatchRecord(record *models.MatchRecord) error
	GetUserStats(userID int64) (*models.UserStats, error)
	Close() error
}

// 错误定义
var ErrRecordNotFound = errors.New("record not found")
