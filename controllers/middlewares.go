package controllers

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"fitrateapi/models"
)

// UserMiddleware resolves the JWT subject into a UserAccount with its
// subscription preloaded. A user without a subscription row gets a free one
// created on first access.
func UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)
		userRaw := c.Get("user")
		if userRaw == nil {
			return echo.ErrUnauthorized
		}
		user := userRaw.(*jwt.Token)
		claims := user.Claims.(jwt.MapClaims)
		userId := claims["sub"]
		if userId == nil || userId == "" {
			log.Println("Error while getting the token information!")
			return echo.ErrUnauthorized
		}

		var currentUser models.UserAccount
		result := db.Preload("Subscription").First(&currentUser, userId)
		if result.Error != nil {
			return echo.ErrUnauthorized
		}
		if currentUser.Banned {
			return echo.ErrForbidden
		}
		if currentUser.Subscription == nil {
			sub := models.UserSubscription{
				UserAccountID: currentUser.ID,
				Tier:          models.TierFree,
			}
			if err := db.Create(&sub).Error; err != nil {
				fmt.Println("Error creating free subscription for user", currentUser.ID, err)
				return echo.ErrInternalServerError
			}
			currentUser.Subscription = &sub
		}
		c.Set("currentUser", currentUser)
		return next(c)
	}
}

// OptionalUserMiddleware attaches currentUser when a valid bearer token is
// present and otherwise lets the request through anonymously. The public
// proxy endpoints serve both guests and subscribers through this.
func OptionalUserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(auth, "Bearer ") {
			return next(c)
		}
		tokenString := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(os.Getenv("JWT_SECRET")), nil
		})
		if err != nil || !token.Valid {
			// anonymous path, an expired token is not an error here
			return next(c)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return next(c)
		}
		userId, ok := claims["sub"].(string)
		if !ok || userId == "" {
			return next(c)
		}

		db := c.Get("__db").(*gorm.DB)
		var currentUser models.UserAccount
		result := db.Preload("Subscription").First(&currentUser, userId)
		if result.Error != nil {
			return next(c)
		}
		if currentUser.Banned {
			return echo.ErrForbidden
		}
		if currentUser.Subscription == nil {
			sub := models.UserSubscription{
				UserAccountID: currentUser.ID,
				Tier:          models.TierFree,
			}
			if err := db.Create(&sub).Error; err == nil {
				currentUser.Subscription = &sub
			}
		}
		c.Set("currentUser", currentUser)
		return next(c)
	}
}
