package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/model"
)

type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) (uuid.UUID, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	GetUserByTelegramID(ctx context.Context, id int64) (model.User, error)

	UpdateUser(ctx context.Context, u model.User) error
}

type TokenRepo interface {
	Store(ctx context.Context, jti string, expiresAt time.Time) error

	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	IsRevoked(ctx context.Context, jti string) (bool, error)

	RevokeAccess(ctx context.Context, jti string, expiresAt time.Time) error

	IsAccessRevoked(ctx context.Context, jti string) (bool, error)
}
