package main

import (
	"context"
	"log"

	"wedding-backend/infrastructure/config"
	"wedding-backend/infrastructure/di"
	"wedding-backend/infrastructure/stream"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var container *di.Container

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

// Handler consumes a table stream batch. A returned error makes Lambda retry
// the whole batch, so only publish failures are surfaced.
func Handler(ctx context.Context, event events.DynamoDBEvent) error {
	changes := stream.FromRecords(event.Records, container.Logger)
	if len(changes) == 0 {
		return nil
	}

	if err := container.Processor.Process(ctx, changes); err != nil {
		container.Logger.Error("Failed to process change batch",
			zap.Int("records", len(event.Records)),
			zap.Int("changes", len(changes)),
			zap.Error(err))
		return err
	}

	container.Metrics.RecordCount(ctx, "ChangeEventsProcessed", "Function", "stream-processor", float64(len(changes)))
	container.Logger.Debug("Processed change batch",
		zap.Int("records", len(event.Records)),
		zap.Int("changes", len(changes)))
	return nil
}

func main() {
	lambda.Start(Handler)
}
