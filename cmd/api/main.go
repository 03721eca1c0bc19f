package main

import (
	"context"
	"log"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4/middleware"

	"fitrateapi/controllers"
	"fitrateapi/dbhelper"
	"fitrateapi/services"
)

func main() {
	rcToken := os.Getenv("RC_WEBHOOK_TOKEN")
	if rcToken == "" {
		log.Fatal("RC_WEBHOOK_TOKEN environment variable is not set!")
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("SENTRY_DSN"),
		Environment:      services.GetEnv("ENV", "local"),
		Release:          "fitrateapi@1.0.0",
		Debug:            false,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	cfg := services.LoadConfig()
	db := dbhelper.SetupDB()

	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
		return
	}
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")})

	chat := services.NewAnthropicService(cfg)

	// Gemini carries the structured analysis when a key is present, the chat
	// provider covers it otherwise.
	var analysis services.AnalysisProvider
	if cfg.GoogleAPIKey != "" {
		analysis = services.NewGeminiAnalysisService(cfg)
	} else {
		analysis = &services.AnthropicAnalysisService{Chat: chat}
	}

	// Without a RapidAPI key product search serves deterministic mock results.
	var search services.ProductSearchProvider
	if cfg.RapidAPIKey != "" {
		search = services.NewRapidProductSearch(cfg)
	} else {
		search = &services.MockProductSearch{}
	}

	awsService := services.NewAWSService(cfg)
	urlCache, err := services.NewURLCacheService(awsService, cfg.R2BucketName)
	if err != nil {
		log.Fatal("Failed to initialize URL cache service")
	}

	e := controllers.SetupServer(db, cfg, controllers.Providers{
		Chat:     chat,
		Analysis: analysis,
		Search:   search,
		Weather:  services.NewOpenWeatherService(cfg),
		Google:   services.GoogleService{},
		AWS:      awsService,
		URLCache: urlCache,
		Firebase: app,
	}, asynqClient)
	e.Debug = true
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(3)))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	e.Logger.Fatal(e.Start(":8083"))
}
