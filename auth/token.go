// auth/token.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wfunc/footgame/models"
)

var ErrUnauthorized = errors.New("unauthorized")

// Token is the body returned from login/refresh.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Claims carries the verified identity inside the bearer token. The core
// never sees credentials, only this.
type Claims struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	jwt.RegisteredClaims
}

func (c *Claims) user() models.User {
	return models.User{
		ID:          c.ID,
		Username:    c.Username,
		DisplayName: c.DisplayName,
		AvatarURL:   c.AvatarURL,
	}
}

func (s *Service) issue(user models.User) (*Token, error) {
	claims := &Claims{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.cfg.TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Key))
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &Token{AccessToken: signed, TokenType: "bearer"}, nil
}

// Verify checks the bearer token and returns the identity it carries.
func (s *Service) Verify(tokenString string) (models.User, error) {
	claims, err := s.parse(tokenString, jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})))
	if err != nil {
		return models.User{}, ErrUnauthorized
	}
	return claims.user(), nil
}

// parseExpired accepts an expired token, used only by the refresh flow.
func (s *Service) parseExpired(tokenString string) (*Claims, error) {
	return s.parse(tokenString, jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation()))
}

func (s *Service) parse(tokenString string, parser *jwt.Parser) (*Claims, error) {
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Key), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
