package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"fitrateapi/models"
)

type StyleProfileController struct {
}

func (p *StyleProfileController) SetupRoutes(g *echo.Group) {

	g.GET("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		if !models.CanUseFeature(user.Subscription.Tier, "style_profile") {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Style profile requires Style+ or above"})
		}
		var profile models.StyleProfile
		result := db.Where("user_account_id = ?", user.ID).First(&profile)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, models.StyleProfile{UserAccountID: user.ID})
		}
		if result.Error != nil {
			fmt.Println("Error fetching style profile", user.ID, result.Error)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, profile)
	})

	g.PUT("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		if !models.CanUseFeature(user.Subscription.Tier, "style_profile") {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Style profile requires Style+ or above"})
		}
		var in models.StyleProfileIn
		if err := c.Bind(&in); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}
		if err := c.Validate(&in); err != nil {
			return err
		}

		var profile models.StyleProfile
		result := db.Where("user_account_id = ?", user.ID).First(&profile)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			profile = models.StyleProfile{UserAccountID: user.ID}
		} else if result.Error != nil {
			fmt.Println("Error fetching style profile", user.ID, result.Error)
			return echo.ErrInternalServerError
		}
		profile.FavoriteColors = in.FavoriteColors
		profile.PreferredStyles = in.PreferredStyles
		profile.FavoriteBrands = in.FavoriteBrands
		if err := db.Save(&profile).Error; err != nil {
			fmt.Println("Error saving style profile", user.ID, err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, profile)
	})
}
