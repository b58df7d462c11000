// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormUser 用户模型
type GormUser struct {
	gorm.Model
	UserID      int64  `gorm:"uniqueIndex;not null"`
	Username    string `gorm:"not null"`
	DisplayName string
	AvatarURL   string
	// OAuth holds the Discord token set needed for refresh.
	OAuth map[string]interface{} `gorm:"type:jsonb;serializer:json"`
}

// GormMatchRecord 对局记录模型
type GormMatchRecord struct {
	gorm.Model
	RoomID   string                 `gorm:"index;not null"`
	Players  map[string]interface{} `gorm:"type:jsonb;serializer:json;not null"`
	WinnerID int64                  `gorm:"index"`
}
