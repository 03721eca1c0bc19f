package main

import (
	"context"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"

	"fitrateapi/dbhelper"
	"fitrateapi/services"
	"fitrateapi/tasks"
)

func main() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"analysis": 7,
		}},
	)
	cfg := services.LoadConfig()
	awsService := services.NewAWSService(cfg)
	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	var analyzer services.AnalysisProvider
	if cfg.GoogleAPIKey != "" {
		analyzer = services.NewGeminiAnalysisService(cfg)
	} else {
		analyzer = &services.AnthropicAnalysisService{Chat: services.NewAnthropicService(cfg)}
	}
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
		return
	}
	mux := asynq.NewServeMux()
	db := dbhelper.SetupDB()
	mux.HandleFunc(tasks.TypeOutfitAnalysis, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleOutfitAnalysisTask(ctx, t, db, analyzer, awsService, app)
	})

	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
