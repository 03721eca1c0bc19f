package controllers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"fitrateapi/services"
)

type WeatherController struct {
	Weather services.WeatherProvider
}

func (w *WeatherController) SetupRoutes(g *echo.Group) {

	g.GET("/weather", func(c echo.Context) error {
		lat := c.QueryParam("lat")
		lon := c.QueryParam("lon")
		q := c.QueryParam("q")
		if q == "" && (lat == "" || lon == "") {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Provide lat and lon, or q"})
		}
		if !w.Weather.Configured() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Weather service is not configured"})
		}

		payload, err := w.Weather.Current(c.Request().Context(), lat, lon, q)
		if err != nil {
			fmt.Println("Weather provider error:", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		// upstream status and body pass through untouched
		return c.JSONBlob(payload.StatusCode, payload.Body)
	})

	g.GET("/weather-suggestions", func(c echo.Context) error {
		q := c.QueryParam("q")
		if q == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query is required"})
		}
		if !w.Weather.Configured() {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Weather service is not configured"})
		}

		suggestions, err := w.Weather.Geocode(c.Request().Context(), q)
		if err != nil {
			fmt.Println("Geocoding error:", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, suggestions)
	})
}
