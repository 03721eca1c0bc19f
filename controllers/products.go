package controllers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"fitrateapi/services"
)

type ProductsController struct {
	Search services.ProductSearchProvider
}

func (p *ProductsController) SetupRoutes(g *echo.Group) {

	g.POST("/search-products", func(c echo.Context) error {
		var req services.ProductQuery
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		}
		if req.Query == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query is required"})
		}

		result, err := p.Search.Search(c.Request().Context(), req)
		if err != nil {
			// the provider already downgrades upstream failures, anything
			// surfacing here is a programming error
			fmt.Println("Product search error:", err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"success":      true,
			"products":     result.Products,
			"source":       result.Source,
			"totalResults": result.TotalResults,
		})
	})
}
