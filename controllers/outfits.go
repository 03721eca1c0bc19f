package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"fitrateapi/models"
	"fitrateapi/services"
	"fitrateapi/tasks"
)

type CreateOutfitIn struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	FileName    string  `json:"file_name" validate:"required,max=1000"`
}

type OutfitOut struct {
	models.SavedOutfit
	ImageReadURL string          `json:"image_read_url"`
	Analysis     json.RawMessage `json:"analysis,omitempty"`
}

type OutfitsController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	BucketName string
}

func (o *OutfitsController) SetupRoutes(g *echo.Group) {

	g.POST("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		if !models.CanUseFeature(user.Subscription.Tier, "save_outfits") {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Saving outfits requires Style+ or above"})
		}
		var req CreateOutfitIn
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(&req); err != nil {
			return err
		}

		safeFileName := fmt.Sprintf("outfits/%v/%s", user.ID, req.FileName)
		uploadUrl, presignErr := o.AWSService.PresignLink(context.Background(), o.BucketName, safeFileName)
		if presignErr != nil {
			log.Printf("Unable to presign outfit upload for %s, %s", user.Name, presignErr)
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"message": "Error while uploading your outfit, please try again",
			})
		}

		outfit := models.SavedOutfit{
			Name:           req.Name,
			Description:    req.Description,
			OwnerID:        user.ID,
			ImageURL:       &safeFileName,
			ImageStatus:    "draft",
			AnalysisStatus: "idle",
		}
		if err := db.Create(&outfit).Error; err != nil {
			fmt.Println("Error creating outfit for user", user.ID, err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"id":         outfit.ID,
			"upload_url": uploadUrl,
			"file_name":  req.FileName,
		})
	})

	g.GET("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		var outfits []models.SavedOutfit
		result := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&outfits)
		if result.Error != nil {
			fmt.Println("Error listing outfits for user", user.ID, result.Error)
			return echo.ErrInternalServerError
		}

		out := make([]OutfitOut, 0, len(outfits))
		for _, outfit := range outfits {
			var readURL string
			if outfit.ImageURL != nil {
				url, err := o.URLCache.GetReadURL(c.Request().Context(), *outfit.ImageURL)
				if err != nil {
					log.Printf("Could not presign read URL for key '%s': %v", *outfit.ImageURL, err)
					sentry.CaptureException(err)
				}
				readURL = url
			}
			item := OutfitOut{SavedOutfit: outfit, ImageReadURL: readURL}
			if outfit.AnalysisJSON != nil {
				item.Analysis = json.RawMessage(*outfit.AnalysisJSON)
			}
			out = append(out, item)
		}
		return c.JSON(http.StatusOK, echo.Map{"outfits": out})
	})

	g.POST("/:id/uploaded", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		var outfitId uint
		if err := echo.PathParamsBinder(c).Uint("id", &outfitId).BindError(); err != nil {
			return echo.ErrBadRequest
		}
		var outfit models.SavedOutfit
		result := db.Where("id = ? and owner_id = ?", outfitId, user.ID).First(&outfit)
		if result.Error != nil {
			return echo.ErrNotFound
		}
		outfit.ImageStatus = "uploaded"
		if err := db.Save(&outfit).Error; err != nil {
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "ok", "image_status": outfit.ImageStatus})
	})

	g.POST("/:id/analyze", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
		if !ok {
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
		}

		var outfitId uint
		if err := echo.PathParamsBinder(c).Uint("id", &outfitId).BindError(); err != nil {
			return echo.ErrBadRequest
		}
		var outfit models.SavedOutfit
		result := db.Where("id = ? and owner_id = ?", outfitId, user.ID).First(&outfit)
		if result.Error != nil {
			return echo.ErrNotFound
		}
		if outfit.ImageStatus != "uploaded" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Upload the outfit image first"})
		}
		if outfit.AnalysisStatus == "pending" {
			return c.JSON(http.StatusConflict, map[string]string{"error": "Analysis is already running"})
		}

		count, err := CountUsage(db, user.ID, time.Now())
		if err != nil {
			return echo.ErrInternalServerError
		}
		if !models.CanRate(user.Subscription.Tier, count) {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Monthly usage limit reached. Upgrade your plan for more analyses.",
			})
		}

		outfit.AnalysisStatus = "pending"
		outfit.AnalysisErrorMessage = nil
		outfit.AlertWhenProcessed = true
		if err := db.Save(&outfit).Error; err != nil {
			return echo.ErrInternalServerError
		}

		task, err := tasks.NewOutfitAnalysisTask(outfit.ID)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not queue analysis, please try again"})
		}
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("analysis"))
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not queue analysis, please try again"})
		}
		fmt.Printf("[Queue] Outfit analysis task submitted, Outfit ID: %v Task ID %v\n", outfit.ID, info.ID)
		return c.JSON(http.StatusOK, echo.Map{
			"message":         "queued",
			"analysis_status": outfit.AnalysisStatus,
		})
	})

	g.DELETE("/:id", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		var outfitId uint
		if err := echo.PathParamsBinder(c).Uint("id", &outfitId).BindError(); err != nil {
			return echo.ErrBadRequest
		}
		result := db.Where("id = ? and owner_id = ?", outfitId, user.ID).Delete(&models.SavedOutfit{})
		if result.Error != nil {
			return echo.ErrInternalServerError
		}
		if result.RowsAffected == 0 {
			return echo.ErrNotFound
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
	})
}
