// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/footgame/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormUser{}, &models.GormMatchRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveUser 保存（新增或更新）用户资料
func (p *GormPostgreSQL) SaveUser(user models.User, oauth map[string]interface{}) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		var existing models.GormUser
		result := tx.Where("user_id = ?", user.ID).First(&existing)

		if result.Error == gorm.ErrRecordNotFound {
			existing = models.GormUser{
				UserID:      user.ID,
				Username:    user.Username,
				DisplayName: user.DisplayName,
				AvatarURL:   user.AvatarURL,
				OAuth:       oauth,
			}
			return tx.Create(&existing).Error
		} else if result.Error != nil {
			return result.Error
		}

		existing.Username = user.Username
		existing.DisplayName = user.DisplayName
		existing.AvatarURL = user.AvatarURL
		if oauth != nil {
			existing.OAuth = oauth
		}
		return tx.Save(&existing).Error
	})
}

// LoadUser 加载用户资料与 OAuth 凭据
func (p *GormPostgreSQL) LoadUser(userID int64) (models.User, map[string]interface{}, error) {
	var record models.GormUser
	if err := p.db.Where("user_id = ?", userID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.User{}, nil, ErrRecordNotFound
		}
		return models.User{}, nil, err
	}

	user := models.User{
		ID:          record.UserID,
		Username:    record.Username,
		DisplayName: record.DisplayName,
		AvatarURL:   record.AvatarURL,
	}
	return user, record.OAuth, nil
}

// SaveMatchRecord 保存对局记录
func (p *GormPostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	row := models.GormMatchRecord{
		RoomID:   record.RoomID,
		Players:  record.Players,
		WinnerID: record.WinnerID,
	}
	return p.db.Create(&row).Error
}

// GetUserStats 统计玩家战绩
func (p *GormPostgreSQL) GetUserStats(userID int64) (*models.UserStats, error) {
	var stats models.UserStats

	err := p.db.Raw(
		`
        SELECT
            COUNT(*) AS total_games,
            COALESCE(SUM(CASE WHEN winner_id = ? THEN 1 ELSE 0 END), 0) AS wins,
            COALESCE(SUM(CASE WHEN winner_id <> ? THEN 1 ELSE 0 END), 0) AS losses
        FROM gorm_match_records
        WHERE players ->> ? IS NOT NULL`,
		userID, userID, fmt.Sprintf("%d", userID),
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
