package controllers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"fitrateapi/models"
	"fitrateapi/services"
)

type RateOutfitIn struct {
	Image        string `json:"image"`
	Prompt       string `json:"prompt"`
	Mode         string `json:"mode"`
	MediaType    string `json:"mediaType"`
	DetailedMode bool   `json:"detailedMode"`
	DeviceId     string `json:"deviceId"`
}

type RatingController struct {
	Chat services.ChatProvider
	Now  func() time.Time
}

func (r *RatingController) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// checkQuota enforces the tier quota for signed-in users and the device
// cooldown for guests. A nil error means the request may proceed.
func (r *RatingController) checkQuota(c echo.Context, deviceId string) error {
	db := c.Get("__db").(*gorm.DB)
	userRaw := c.Get("currentUser")
	if userRaw != nil {
		user := userRaw.(models.UserAccount)
		count, err := CountUsage(db, user.ID, r.now())
		if err != nil {
			fmt.Println("Error counting usage for user", user.ID, err)
			return echo.ErrInternalServerError
		}
		if !models.CanRate(user.Subscription.Tier, count) {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Monthly rating limit reached. Upgrade your plan for more ratings.",
			})
		}
		return nil
	}
	if deviceId == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Sign in or provide a device id to rate outfits.",
		})
	}
	allowed, err := GuestCanRate(db, deviceId, r.now())
	if err != nil {
		fmt.Println("Error checking guest quota", err)
		return echo.ErrInternalServerError
	}
	if !allowed {
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Guest limit reached. You can rate one outfit per week, sign in for more.",
		})
	}
	return nil
}

func (r *RatingController) recordRating(c echo.Context) {
	db := c.Get("__db").(*gorm.DB)
	userRaw := c.Get("currentUser")
	if userRaw != nil {
		user := userRaw.(models.UserAccount)
		LogUsage(db, &user.ID, nil, "rating")
		return
	}
	// body was consumed by Bind in the handler, deviceId travels on ctx
	if deviceId, ok := c.Get("__deviceid").(string); ok && deviceId != "" {
		LogUsage(db, nil, &deviceId, "rating")
	}
}

func (r *RatingController) SetupRoutes(g *echo.Group) {

	g.POST("/rate-outfit", func(c echo.Context) error {
		var req RateOutfitIn
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}
		if req.Image == "" || req.Prompt == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Image and prompt are required"})
		}
		if !r.Chat.Configured() {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Rating service is not configured"})
		}
		c.Set("__deviceid", req.DeviceId)
		if err := r.checkQuota(c, req.DeviceId); err != nil || c.Response().Committed {
			return err
		}

		envelope, err := r.Chat.Complete(c.Request().Context(), services.ChatRequest{
			Model:       services.RatingModel,
			ImageBase64: req.Image,
			MediaType:   services.NormalizeRatingMediaType(req.MediaType),
			Prompt:      req.Prompt,
			MaxTokens:   services.MaxTokensForMode(req.Mode),
		})
		if err != nil {
			fmt.Println("Rating provider error:", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		r.recordRating(c)
		// the provider envelope is relayed untouched, the client parses
		// content[0].text itself
		return c.JSONBlob(http.StatusOK, envelope)
	})

	g.POST("/rate-outfit-stream", func(c echo.Context) error {
		var req RateOutfitIn
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}
		if req.Image == "" || req.Prompt == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Image and prompt are required"})
		}
		if !r.Chat.Configured() {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Rating service is not configured"})
		}
		c.Set("__deviceid", req.DeviceId)
		if err := r.checkQuota(c, req.DeviceId); err != nil || c.Response().Committed {
			return err
		}

		upstream, err := r.Chat.Stream(c.Request().Context(), services.ChatRequest{
			Model:       services.RatingModel,
			ImageBase64: req.Image,
			MediaType:   services.NormalizeRatingMediaType(req.MediaType),
			Prompt:      req.Prompt,
			MaxTokens:   services.StreamMaxTokens(req.DetailedMode),
		})
		if err != nil {
			// nothing written yet so a JSON error body is still possible
			fmt.Println("Rating stream provider error:", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		defer upstream.Close()

		resp := c.Response()
		resp.Header().Set(echo.HeaderContentType, "text/event-stream")
		resp.Header().Set("Cache-Control", "no-cache")
		resp.Header().Set("Connection", "keep-alive")
		resp.Header().Set("X-Accel-Buffering", "no")
		resp.WriteHeader(http.StatusOK)

		reframer := services.NewStreamReframer()
		writeEvents := func(events []services.ClientEvent) error {
			for _, event := range events {
				if _, err := fmt.Fprintf(resp, "data: %s\n\n", event.Payload); err != nil {
					return err
				}
			}
			resp.Flush()
			return nil
		}

		buf := make([]byte, 4096)
		for {
			n, readErr := upstream.Read(buf)
			if n > 0 {
				events, done := reframer.Feed(buf[:n])
				if err := writeEvents(events); err != nil {
					// client went away, abandon the upstream read
					fmt.Println("Client disconnected mid-stream:", err)
					reframer.Close()
					return nil
				}
				if done {
					reframer.Close()
					r.recordRating(c)
					return nil
				}
			}
			if readErr == io.EOF {
				// upstream ended without message_stop
				reframer.Close()
				r.recordRating(c)
				return nil
			}
			if readErr != nil {
				fmt.Println("Upstream stream fault:", readErr)
				sentry.CaptureException(readErr)
				writeEvents(reframer.Fault("Stream interrupted"))
				return nil
			}
		}
	})
}
