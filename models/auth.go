package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GoogleAuthSignIn struct {
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

type AppleAuthRequest struct {
	AuthorizationCode string `json:"authorization_code" validate:"required"`
	Platform          string `json:"platform"`
	Name              string `json:"name"`
}

// GuestAuthIn identifies an unauthenticated device so the guest rating rule
// can be enforced server side instead of trusting client storage.
type GuestAuthIn struct {
	DeviceId string `json:"device_id" validate:"required,max=200"`
	Platform string `json:"platform" validate:"required"`
}

type RefreshTokenIn struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UserInfoOut struct {
	Id         uint   `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Tier       Tier   `json:"tier"`
	UsageCount int64  `json:"usage_count"`
	UsageLimit *int64 `json:"usage_limit"`
	AvatarUrl  string `json:"avatar_url"`
}
