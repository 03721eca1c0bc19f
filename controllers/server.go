package controllers

import (
	"context"
	"log"
	"net/http"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"fitrateapi/models"
	"fitrateapi/services"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// CORSMiddleware allows any origin and answers preflight with 200. The
// browser clients treat a non-200 preflight as a failure.
func CORSMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := c.Response()
		resp.Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		resp.Header().Set(echo.HeaderAccessControlAllowHeaders, "Origin, Content-Type, Accept, Authorization")
		resp.Header().Set(echo.HeaderAccessControlAllowMethods, "GET, POST, PUT, DELETE, OPTIONS")
		resp.Header().Set(echo.HeaderAccessControlAllowCredentials, "true")
		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusOK)
		}
		return next(c)
	}
}

type Providers struct {
	Chat     services.ChatProvider
	Analysis services.AnalysisProvider
	Search   services.ProductSearchProvider
	Weather  services.WeatherProvider
	Google   services.GoogleServiceProvider
	AWS      services.AWSServiceProvider
	URLCache services.URLCacheServiceProvider
	Firebase *firebase.App
}

func SetupServer(
	db *gorm.DB,
	cfg *services.Config,
	providers Providers,
	asynqClient *asynq.Client,
) *echo.Echo {

	if providers.AWS != nil {
		err := providers.AWS.InitPresignClient(context.Background())
		if err != nil {
			log.Fatal("Failed to initialize AWS provider: S3")
		}
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			return next(c)
		}
	})
	e.Use(CORSMiddleware)

	authGroup := e.Group("/auth")
	authController := AuthController{Google: providers.Google, FirebaseApp: providers.Firebase}
	authController.SetupRoutes(authGroup)

	// public proxy endpoints, guests included
	apiGroup := e.Group("/api", OptionalUserMiddleware)

	ratingController := RatingController{Chat: providers.Chat}
	ratingController.SetupRoutes(apiGroup)

	analysisController := AnalysisController{Analysis: providers.Analysis}
	analysisController.SetupRoutes(apiGroup)

	productsController := ProductsController{Search: providers.Search}
	productsController.SetupRoutes(apiGroup)

	weatherController := WeatherController{Weather: providers.Weather}
	weatherController.SetupRoutes(apiGroup)

	jwtMiddleware := echojwt.JWT([]byte(os.Getenv("JWT_SECRET")))

	subscriptionController := SubscriptionController{}
	subscriptionGroup := e.Group("/api/subscription", jwtMiddleware, UserMiddleware)
	subscriptionController.SetupRoutes(subscriptionGroup)

	outfitsController := OutfitsController{
		AWSService: providers.AWS,
		URLCache:   providers.URLCache,
		BucketName: cfg.R2BucketName,
	}
	outfitsGroup := e.Group("/api/outfits", jwtMiddleware, UserMiddleware)
	outfitsController.SetupRoutes(outfitsGroup)

	profileController := StyleProfileController{}
	profileGroup := e.Group("/api/style-profile", jwtMiddleware, UserMiddleware)
	profileController.SetupRoutes(profileGroup)

	webhooksController := WebhooksController{
		Google:      providers.Google,
		FirebaseApp: providers.Firebase,
		AlertChatID: -1002078967836,
	}
	webhookGroup := e.Group("/webhooks")
	webhooksController.SetupRoutes(webhookGroup)

	return e
}
