package models

import (
	"sort"
	"time"
)

type Tier string

const (
	TierFree      Tier = "free"
	TierStylePlus Tier = "style_plus"
	TierStylePro  Tier = "style_pro"
)

func (t *Tier) Scan(value interface{}) error {
	*t = Tier(value.(string))
	return nil
}

func (t Tier) Value() (string, error) {
	return string(t), nil
}

// UserSubscription is created lazily with TierFree on first authenticated
// access. Usage is never stored on the row: it is recomputed from UsageLog
// rows on every read, so the monthly reset needs no job.
type UserSubscription struct {
	JsonModel
	UserAccountID uint        `gorm:"uniqueIndex" json:"-"`
	UserAccount   UserAccount `json:"-"`
	Tier          Tier        `gorm:"default:free" json:"tier"`
	// RevenueCat app user id that last moved this tier, for webhook audits
	BillingUserID *string `json:"-"`
}

// UsageLog records one billable action. Exactly one of UserAccountID or
// DeviceID is set: rows with DeviceID belong to guests.
type UsageLog struct {
	JsonModel
	UserAccountID *uint   `gorm:"index" json:"-"`
	DeviceID      *string `gorm:"index" json:"-"`
	ActionType    string  `json:"action_type"` // rating, analysis
}

type LogUsageIn struct {
	ActionType string `json:"action_type" validate:"required,oneof=rating analysis"`
}

type SubscriptionOut struct {
	Tier       Tier     `json:"tier"`
	UsageCount int64    `json:"usage_count"`
	UsageLimit *int64   `json:"usage_limit"`
	Features   []string `json:"features"`
}

const (
	FreeMonthlyRatings     int64 = 3
	PlusMonthlyRatings     int64 = 50
	GuestRatingCooldown          = 7 * 24 * time.Hour
	GuestRatingsPerPeriod  int64 = 1
)

// TierLimit returns the monthly rating quota for a tier, nil meaning
// unlimited.
func TierLimit(tier Tier) *int64 {
	switch tier {
	case TierStylePlus:
		limit := PlusMonthlyRatings
		return &limit
	case TierStylePro:
		return nil
	default:
		limit := FreeMonthlyRatings
		return &limit
	}
}

// CanRate reports whether a user on the given tier with the given usage in
// the current window may request another rating.
func CanRate(tier Tier, usageCount int64) bool {
	limit := TierLimit(tier)
	if limit == nil {
		return true
	}
	return usageCount < *limit
}

// featureAccess maps a feature name to the tiers allowed to use it.
var featureAccess = map[string][]Tier{
	"basic_rating":         {TierFree, TierStylePlus, TierStylePro},
	"advisor_modes":        {TierFree, TierStylePlus, TierStylePro},
	"product_suggestions":  {TierFree, TierStylePlus, TierStylePro},
	"save_outfits":         {TierStylePlus, TierStylePro},
	"weather_context":      {TierStylePlus, TierStylePro},
	"calendar_integration": {TierStylePlus, TierStylePro},
	"style_profile":        {TierStylePlus, TierStylePro},
	"color_analysis":       {TierStylePro},
	"outfit_comparison":    {TierStylePro},
}

func CanUseFeature(tier Tier, feature string) bool {
	allowed, ok := featureAccess[feature]
	if !ok {
		return false
	}
	for _, t := range allowed {
		if t == tier {
			return true
		}
	}
	return false
}

// TierFeatures lists every feature the tier unlocks, for the subscription
// read endpoint.
func TierFeatures(tier Tier) []string {
	features := []string{}
	for name := range featureAccess {
		if CanUseFeature(tier, name) {
			features = append(features, name)
		}
	}
	sort.Strings(features)
	return features
}

// UsageWindowStart returns the first instant of the calendar month containing
// now. Usage counts are computed against this boundary on every read.
func UsageWindowStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
