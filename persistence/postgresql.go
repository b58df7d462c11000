// persistence/postgresql.go
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/footgame/models"
)

// PostgreSQL 基于 database/sql 的实现，schema 与 GORM 实现保持一致
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建PostgreSQL数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	p := &PostgreSQL{db: db}
	if err := p.createTables(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PostgreSQL) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS gorm_users (
			id SERIAL PRIMARY KEY,
			user_id BIGINT UNIQUE NOT NULL,
			username TEXT NOT NULL,
			display_name TEXT,
			avatar_url TEXT,
			o_auth JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS gorm_match_records (
			id SERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			players JSONB NOT NULL,
			winner_id BIGINT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_room ON gorm_match_records (room_id)`,
	}
	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveUser 保存用户资料（UPSERT）
func (p *PostgreSQL) SaveUser(user models.User, oauth map[string]interface{}) error {
	oauthJSON, err := json.Marshal(oauth)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
		INSERT INTO gorm_users (user_id, username, display_name, avatar_url, o_auth, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			o_auth = COALESCE(EXCLUDED.o_auth, gorm_users.o_auth),
			updated_at = NOW()`,
		user.ID, user.Username, user.DisplayName, user.AvatarURL, oauthJSON)
	return err
}

// LoadUser 加载用户资料与 OAuth 凭据
func (p *PostgreSQL) LoadUser(userID int64) (models.User, map[string]interface{}, error) {
	var user models.User
	var oauthJSON []byte

	err := p.db.QueryRow(`
		SELECT user_id, username, display_name, avatar_url, o_auth
		FROM gorm_users WHERE user_id = $1 AND deleted_at IS NULL`,
		userID).Scan(&user.ID, &user.Username, &user.DisplayName, &user.AvatarURL, &oauthJSON)
	if err == sql.ErrNoRows {
		return models.User{}, nil, ErrRecordNotFound
	}
	if err != nil {
		return models.User{}, nil, err
	}

	var oauth map[string]interface{}
	if len(oauthJSON) > 0 {
		if err := json.Unmarshal(oauthJSON, &oauth); err != nil {
			return models.User{}, nil, err
		}
	}
	return user, oauth, nil
}

// SaveMatchRecord 保存对局记录
func (p *PostgreSQL) SaveMatchRecord(record *models.MatchRecord) error {
	playersJSON, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
		INSERT INTO gorm_match_records (room_id, players, winner_id)
		VALUES ($1, $2, $3)`,
		record.RoomID, playersJSON, record.WinnerID)
	return err
}

// GetUserStats 统计玩家战绩
func (p *PostgreSQL) GetUserStats(userID int64) (*models.UserStats, error) {
	var stats models.UserStats

	err := p.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN winner_id = $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN winner_id <> $1 THEN 1 ELSE 0 END), 0)
		FROM gorm_match_records
		WHERE players ->> $2 IS NOT NULL`,
		userID, fmt.Sprintf("%d", userID)).
		Scan(&stats.TotalGames, &stats.Wins, &stats.Losses)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
