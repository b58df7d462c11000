// auth/auth.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wfunc/footgame/config"
	"github.com/wfunc/footgame/models"
	"github.com/wfunc/footgame/services"
)

const discordAPI = "https://discord.com/api"

// Service 处理 Discord OAuth 与 bearer token 的签发、刷新、校验。
// 游戏核心只拿到校验后的 models.User。
type Service struct {
	cfg    config.AuthConfig
	users  *services.UserService
	client *http.Client
}

func NewService(cfg config.AuthConfig, users *services.UserService) *Service {
	return &Service{
		cfg:    cfg,
		users:  users,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// discordOAuth 是 Discord 发回的 token 组。ExpiresIn is rewritten to an
// absolute unix timestamp before persisting.
type discordOAuth struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

type discordUser struct {
	ID         int64   `json:"id,string"`
	Username   string  `json:"username"`
	GlobalName *string `json:"global_name"`
	Avatar     *string `json:"avatar"`
}

// Login exchanges an OAuth authorization code, persists the profile, and
// issues a bearer token.
func (s *Service) Login(ctx context.Context, code string) (*Token, error) {
	oauth, err := s.tokenRequest(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {s.cfg.Discord.RedirectURI},
		"client_id":     {s.cfg.Discord.ClientID},
		"client_secret": {s.cfg.Discord.ClientSecret},
	})
	if err != nil {
		return nil, err
	}

	user, err := s.fetchUser(ctx, oauth)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpsertUser(user, oauthMap(oauth)); err != nil {
		return nil, fmt.Errorf("persisting user: %w", err)
	}
	return s.issue(user)
}

// Refresh re-issues a bearer token, going back to Discord when the stored
// credentials have expired. The presented token may itself be expired.
func (s *Service) Refresh(ctx context.Context, tokenString string) (*Token, error) {
	claims, err := s.parseExpired(tokenString)
	if err != nil {
		return nil, ErrUnauthorized
	}

	_, stored, err := s.users.GetUser(claims.ID)
	if err != nil || stored == nil {
		return nil, ErrUnauthorized
	}
	oauth := oauthFromMap(stored)

	if time.Now().Unix() > oauth.ExpiresIn {
		oauth, err = s.tokenRequest(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {oauth.RefreshToken},
			"client_id":     {s.cfg.Discord.ClientID},
			"client_secret": {s.cfg.Discord.ClientSecret},
		})
		if err != nil {
			return nil, ErrUnauthorized
		}
	}

	user, err := s.fetchUser(ctx, oauth)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if err := s.users.UpsertUser(user, oauthMap(oauth)); err != nil {
		return nil, fmt.Errorf("persisting user: %w", err)
	}
	return s.issue(user)
}

// tokenRequest posts to the Discord token endpoint for both the code and
// refresh grants.
func (s *Service) tokenRequest(ctx context.Context, form url.Values) (*discordOAuth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		discordAPI+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrUnauthorized
	}

	var oauth discordOAuth
	if err := json.NewDecoder(resp.Body).Decode(&oauth); err != nil {
		return nil, fmt.Errorf("decoding discord token: %w", err)
	}
	// 把相对有效期改写成绝对时间戳
	oauth.ExpiresIn += time.Now().Unix()
	return &oauth, nil
}

func (s *Service) fetchUser(ctx context.Context, oauth *discordOAuth) (models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discordAPI+"/users/@me", nil)
	if err != nil {
		return models.User{}, err
	}
	req.Header.Set("Authorization", oauth.TokenType+" "+oauth.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return models.User{}, fmt.Errorf("discord user request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.User{}, ErrUnauthorized
	}

	var du discordUser
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		return models.User{}, fmt.Errorf("decoding discord user: %w", err)
	}

	displayName := du.Username
	if du.GlobalName != nil && *du.GlobalName != "" {
		displayName = *du.GlobalName
	}
	avatarURL := "https://cdn.discordapp.com/embed/avatars/0.png"
	if du.Avatar != nil {
		avatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%d/%s.png", du.ID, *du.Avatar)
	}

	return models.User{
		ID:          du.ID,
		Username:    du.Username,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
	}, nil
}

func oauthMap(o *discordOAuth) map[string]interface{} {
	return map[string]interface{}{
		"token_type":    o.TokenType,
		"access_token":  o.AccessToken,
		"expires_in":    o.ExpiresIn,
		"refresh_token": o.RefreshToken,
		"scope":         o.Scope,
	}
}

func oauthFromMap(m map[string]interface{}) *discordOAuth {
	o := &discordOAuth{}
	if v, ok := m["token_type"].(string); ok {
		o.TokenType = v
	}
	if v, ok := m["access_token"].(string); ok {
		o.AccessToken = v
	}
	if v, ok := m["refresh_token"].(string); ok {
		o.RefreshToken = v
	}
	if v, ok := m["scope"].(string); ok {
		o.Scope = v
	}
	switch v := m["expires_in"].(type) {
	case float64:
		o.ExpiresIn = int64(v)
	case int64:
		o.ExpiresIn = v
	}
	return o
}
