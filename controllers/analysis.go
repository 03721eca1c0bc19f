package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"

	"fitrateapi/models"
	"fitrateapi/services"
)

type AnalyzeOutfitIn struct {
	Image           string                    `json:"image"`
	MediaType       string                    `json:"mediaType"`
	UserPreferences *services.UserPreferences `json:"userPreferences"`
}

type AnalysisController struct {
	Analysis services.AnalysisProvider
}

func (a *AnalysisController) SetupRoutes(g *echo.Group) {

	g.POST("/analyze-outfit", func(c echo.Context) error {
		var req AnalyzeOutfitIn
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}
		if req.Image == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Image is required"})
		}
		if !a.Analysis.Configured() {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Analysis service is not configured"})
		}

		prompt := services.BuildAnalysisPrompt(req.UserPreferences)
		result, err := a.Analysis.AnalyzeOutfit(
			c.Request().Context(),
			req.Image,
			services.NormalizeAnalysisMediaType(req.MediaType),
			prompt,
		)
		if err != nil {
			fmt.Println("Analysis provider error:", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}

		cleaned := services.StripMarkdownFences(result.Response)
		var analysis models.OutfitAnalysis
		if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
			// raw text stays in logs only, the caller gets a generic message
			fmt.Println("Analysis parse error:", err, "raw:", result.Response)
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not parse analysis response"})
		}
		if !analysis.Valid() {
			fmt.Println("Analysis scores out of range, raw:", cleaned)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not parse analysis response"})
		}

		return c.JSON(http.StatusOK, echo.Map{
			"success":  true,
			"analysis": analysis,
			"usage": echo.Map{
				"input_tokens":  result.InputTokenCount,
				"output_tokens": result.OutputTokenCount,
				"total_tokens":  result.TotalTokenCount,
			},
		})
	})
}
