package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	TelegramID   int64     `gorm:"uniqueIndex"`
	Username     string
	FirstName    string
	LastName     string
	PhotoURL     string
	LanguageCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TelegramProfile is the subset of Telegram identity fields the service keeps.
type TelegramProfile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	PhotoURL     string
	LanguageCode string
}

type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	UserId          uuid.UUID
	RefreshTokenJTI string
}
