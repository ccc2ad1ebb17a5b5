package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"wedding-backend/domain/events"
	"wedding-backend/infrastructure/config"
	"wedding-backend/infrastructure/di"

	lambdaevents "github.com/aws/aws-lambda-go/events"
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

// Handler receives one EventBridge delivery of a change event.
func Handler(ctx context.Context, event lambdaevents.CloudWatchEvent) error {
	var change events.ChangeEvent
	if err := json.Unmarshal(event.Detail, &change); err != nil {
		// Retrying a malformed detail cannot succeed.
		container.Logger.Error("Dropping undecodable event",
			zap.String("id", event.ID),
			zap.String("detailType", event.DetailType),
			zap.Error(err))
		return nil
	}

	sent, err := container.Notifier.Handle(ctx, change)
	if err != nil {
		return fmt.Errorf("notify %s: %w", change.EventID, err)
	}
	if sent {
		container.Metrics.RecordCount(ctx, "ConfirmationsSent", "Function", "notifier", 1)
	}
	return nil
}

func main() {
	lambda.Start(Handler)
}
