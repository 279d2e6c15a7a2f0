package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	Roles      []string `json:"roles"`
	TelegramID int64    `json:"tg_id,omitempty"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
}

type JWTUtil interface {
	GenerateAccessToken(userID uuid.UUID, telegramID int64, roles []string) (token string, exp time.Time, jti string, err error)
	GenerateRefreshToken(userID uuid.UUID) (token string, exp time.Time, jti string, err error)
	ValidateAccessToken(token string) (claims AccessClaims, err error)
	ValidateRefreshToken(token string) (claims RefreshClaims, err error)
}
