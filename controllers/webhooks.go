package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"fitrateapi/models"
	"fitrateapi/services"
)

type WebhooksController struct {
	Google      services.GoogleServiceProvider
	FirebaseApp *firebase.App
	// Telegram chat that receives subscription event alerts
	AlertChatID int64
}

func (wc *WebhooksController) sendAlert(bot *tgbotapi.BotAPI, text string) {
	if bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(wc.AlertChatID, text)
	if _, err := bot.Send(msg); err != nil {
		fmt.Println(err)
	}
}

// entitlementTier maps a RevenueCat entitlement set to the internal tier.
func entitlementTier(entitlements map[string]interface{}, now time.Time) (models.Tier, *time.Time) {
	timeLayout := "2006-01-02T15:04:05Z"
	for _, pair := range []struct {
		entitlement string
		tier        models.Tier
	}{
		{"style_pro", models.TierStylePro},
		{"style_plus", models.TierStylePlus},
	} {
		entitlement, ok := entitlements[pair.entitlement].(map[string]interface{})
		if !ok {
			continue
		}
		expires, ok := entitlement["expires_date"].(string)
		if !ok {
			fmt.Println("Error parsing expiration date for", pair.entitlement)
			continue
		}
		t, err := time.Parse(timeLayout, expires)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if t.After(now) {
			return pair.tier, &t
		}
	}
	return models.TierFree, nil
}

func (wc *WebhooksController) SetupRoutes(g *echo.Group) {

	g.POST("/rc-subscription-webhooks", func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Bearer "+os.Getenv("RC_WEBHOOK_TOKEN") {
			fmt.Println("Invalid Authorization header for webhook!")
			fmt.Println("[Malicious] IP: ", c.RealIP(), "User agent: ", c.Request().Header.Get("User-Agent"))
			return echo.ErrUnauthorized
		}

		db, ok := c.Get("__db").(*gorm.DB)
		if !ok {
			fmt.Println("error getting DB for subscription!")
			return echo.ErrInternalServerError
		}

		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			fmt.Println(err)
			return echo.ErrInternalServerError
		}
		var eventData map[string]interface{}
		err = json.NewDecoder(bytes.NewReader(b)).Decode(&eventData)
		if err != nil {
			fmt.Println("error parsing event json!")
			return echo.ErrInternalServerError
		}

		event, ok := eventData["event"].(map[string]interface{})
		if !ok {
			fmt.Println("Cannot parse event!")
			return echo.ErrInternalServerError
		}
		eventType, _ := event["type"].(string)
		if eventType == "TRANSFER" {
			fmt.Println("Transfer skip..")
			return c.JSON(http.StatusOK, echo.Map{
				"message": "OK TRANSFER",
			})
		}
		appUserId, ok := event["app_user_id"].(string)
		if !ok {
			fmt.Println("Cannot parse app user id!")
			return echo.ErrInternalServerError
		}

		bot, err := tgbotapi.NewBotAPI(os.Getenv("TG_TOKEN"))
		if err != nil {
			fmt.Println("Error initializing telegram BOT!")
		}

		if strings.Contains(appUserId, "$RCAnonymousID") {
			appUserId, _ = event["original_app_user_id"].(string)
			if strings.Contains(appUserId, "$RCAnonymousID") {
				fmt.Println("Anonymous ID couldnt verify the user!", appUserId)
				wc.sendAlert(bot, fmt.Sprintf("Unknown user %s event: %s ", appUserId, eventType))
				return c.JSON(http.StatusOK, echo.Map{
					"message": "Error unknown user",
				})
			}
		}

		var user models.UserAccount
		userId, err := strconv.ParseUint(appUserId, 10, 32)
		if err != nil {
			fmt.Println("Cannot parse user id to update sub!", appUserId)
			return echo.ErrInternalServerError
		}
		result := db.Preload("Subscription").First(&user, userId)
		if result.Error != nil {
			fmt.Println("Cannot get user to update sub!", appUserId)
			return echo.ErrInternalServerError
		}
		if user.Subscription == nil {
			sub := models.UserSubscription{UserAccountID: user.ID, Tier: models.TierFree}
			if err := db.Create(&sub).Error; err != nil {
				return echo.ErrInternalServerError
			}
			user.Subscription = &sub
		}

		setTier := func(tier models.Tier) error {
			user.Subscription.Tier = tier
			user.Subscription.BillingUserID = &appUserId
			return db.Save(user.Subscription).Error
		}

		if eventType == "EXPIRATION" {
			reason := event["expiration_reason"]
			if err := setTier(models.TierFree); err != nil {
				return echo.ErrInternalServerError
			}
			wc.sendAlert(bot, fmt.Sprintf("🛑 %s %s reason %v", user.Name, eventType, reason))
			services.SendNotification(wc.FirebaseApp, db, user.ID, "Subscription expired", "Oh, no! Your premium features are off. Subscribe again to keep rating outfits! 🔥", nil)
			return c.JSON(http.StatusOK, echo.Map{
				"message": "expire ok",
			})
		}

		if eventType == "CANCELLATION" {
			reason := event["cancel_reason"]
			wc.sendAlert(bot, fmt.Sprintf("🛑 %s %s reason %v", user.Name, eventType, reason))
			if reason == "BILLING_ERROR" {
				services.SendNotification(wc.FirebaseApp, db, user.ID, "Payment error", "Please update your payment to keep your subscription active! 😮", nil)
			}
			return c.JSON(http.StatusOK, echo.Map{
				"message": "cancel ok",
			})
		}

		// fetch the authoritative entitlement state instead of trusting
		// the event payload
		b, err = wc.Google.GetUserSubscriptionStatus(context.Background(), appUserId)
		if err != nil {
			fmt.Println(err)
			return echo.ErrInternalServerError
		}

		var subData map[string]interface{}
		err = json.NewDecoder(bytes.NewReader(b)).Decode(&subData)
		if err != nil {
			fmt.Println("Error decoding user subscription status", err)
			return echo.ErrInternalServerError
		}
		subscriber, ok := subData["subscriber"].(map[string]interface{})
		if !ok {
			fmt.Println("Error reading sub status of user ", appUserId)
			return echo.ErrInternalServerError
		}
		entitlements, ok := subscriber["entitlements"].(map[string]interface{})
		if !ok {
			fmt.Println("Error reading sub status of user ", appUserId)
			return echo.ErrInternalServerError
		}

		tier, expiresAt := entitlementTier(entitlements, time.Now())
		if err := setTier(tier); err != nil {
			fmt.Println("Error saving subscription tier", err)
			return echo.ErrInternalServerError
		}

		if tier == models.TierFree {
			fmt.Println("No active entitlements found for user, downgraded ", appUserId)
			wc.sendAlert(bot, fmt.Sprintf("⚠️ %s subscription updated : %s %s", user.Name, string(tier), eventType))
			return c.JSON(http.StatusOK, echo.Map{
				"message": "OK",
			})
		}

		if eventType == "INITIAL_PURCHASE" {
			wc.sendAlert(bot, fmt.Sprintf("🎉⚡️🔥 %s subscription update: %s ", user.Name, string(tier)))
		}
		periodType, ok := event["period_type"].(string)
		if ok && periodType == "PROMOTIONAL" && expiresAt != nil {
			services.SendNotification(wc.FirebaseApp, db, user.ID, "Promo activated 🎉", fmt.Sprintf("Your %s subscription is now active until %s", string(tier), expiresAt.Format("2006-01-02")), nil)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": fmt.Sprintf("%s is active", string(tier)),
		})
	})
}
