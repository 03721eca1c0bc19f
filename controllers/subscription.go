package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"fitrateapi/models"
)

type SubscriptionController struct {
	// injected so tests can pin the usage window boundary
	Now func() time.Time
}

func (s *SubscriptionController) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CountUsage returns how many billable actions the user logged since the
// start of the current calendar month.
func CountUsage(db *gorm.DB, userID uint, now time.Time) (int64, error) {
	var count int64
	result := db.Model(&models.UsageLog{}).
		Where("user_account_id = ? and created_at >= ?", userID, models.UsageWindowStart(now)).
		Count(&count)
	return count, result.Error
}

// GuestCanRate checks the device against the one rating per seven days rule.
func GuestCanRate(db *gorm.DB, deviceID string, now time.Time) (bool, error) {
	var count int64
	result := db.Model(&models.UsageLog{}).
		Where("device_id = ? and action_type = ? and created_at >= ?",
			deviceID, "rating", now.Add(-models.GuestRatingCooldown)).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count < models.GuestRatingsPerPeriod, nil
}

func LogUsage(db *gorm.DB, userID *uint, deviceID *string, actionType string) error {
	entry := models.UsageLog{
		UserAccountID: userID,
		DeviceID:      deviceID,
		ActionType:    actionType,
	}
	if err := db.Create(&entry).Error; err != nil {
		fmt.Println("Error logging usage", err)
		return err
	}
	return nil
}

func (s *SubscriptionController) SetupRoutes(g *echo.Group) {

	g.GET("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		count, err := CountUsage(db, user.ID, s.now())
		if err != nil {
			fmt.Println("Error counting usage for user", user.ID, err)
			return echo.ErrInternalServerError
		}
		tier := user.Subscription.Tier
		return c.JSON(http.StatusOK, models.SubscriptionOut{
			Tier:       tier,
			UsageCount: count,
			UsageLimit: models.TierLimit(tier),
			Features:   models.TierFeatures(tier),
		})
	})

	g.POST("/usage", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		var in models.LogUsageIn
		if err := c.Bind(&in); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}
		if err := c.Validate(&in); err != nil {
			return err
		}
		if err := LogUsage(db, &user.ID, nil, in.ActionType); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not record usage"})
		}
		count, err := CountUsage(db, user.ID, s.now())
		if err != nil {
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message":     "logged",
			"usage_count": count,
		})
	})

	g.GET("/features/:name", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		name := c.Param("name")
		return c.JSON(http.StatusOK, echo.Map{
			"feature": name,
			"allowed": models.CanUseFeature(user.Subscription.Tier, name),
		})
	})
}
