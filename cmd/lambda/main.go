package main

import (
	"fmt"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/config"
	"github.com/kjstillabower/weather-record-service/internal/handler"
	"github.com/kjstillabower/weather-record-service/internal/lambda"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/store"
)

// The store and its connector are built once per execution environment; warm
// invocations reuse the cached connection.
func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	weatherStore, err := store.Open(cfg.StoreOptions(), logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	adapter := lambda.NewAdapter(handler.New(weatherStore, logger), logger)
	awslambda.Start(adapter.Handle)
}
