package models

import (
	"time"

	"github.com/lib/pq"
)

type UserAccount struct {
	JsonModel
	Name   string `json:"name"`
	Email  string `json:"email" gorm:"unique"`
	Banned bool   `gorm:"default:false" json:"-"`
	LastIp string `json:"-"`
	//"STARTED_AUTH", "FINISHED_AUTH"
	Status              string     `json:"-"`
	GoogleID            string     `json:"-"`
	AppleID             string     `json:"-"`
	Platform            Platform   `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	AvatarURL           string     `json:"avatar_url"`
	ConfirmedDeleteDate *time.Time `json:"-"`

	ReceiveNotifications bool `json:"receive_notifications"`

	Subscription *UserSubscription `gorm:"foreignKey:UserAccountID" json:"subscription"`
	StyleProfile *StyleProfile     `gorm:"foreignKey:UserAccountID" json:"style_profile"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// StyleProfile holds the preference lists folded into analysis prompts.
type StyleProfile struct {
	JsonModel
	UserAccountID   uint        `gorm:"uniqueIndex" json:"-"`
	UserAccount     UserAccount `json:"-"`
	FavoriteColors  pq.StringArray `gorm:"type:text[]" json:"favorite_colors"`
	PreferredStyles pq.StringArray `gorm:"type:text[]" json:"preferred_styles"`
	FavoriteBrands  pq.StringArray `gorm:"type:text[]" json:"favorite_brands"`
}

type StyleProfileIn struct {
	FavoriteColors  []string `json:"favorite_colors" validate:"max=20"`
	PreferredStyles []string `json:"preferred_styles" validate:"max=20"`
	FavoriteBrands  []string `json:"favorite_brands" validate:"max=20"`
}
