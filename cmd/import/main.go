package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"wedding-backend/application/commands"
	"wedding-backend/infrastructure/config"
	"wedding-backend/infrastructure/di"
	"wedding-backend/pkg/auth"

	"go.uber.org/zap"
)

func main() {
	var (
		eventID    = flag.String("event", "", "event to import guests into (defaults to DEFAULT_EVENT_ID)")
		file       = flag.String("file", "", "CSV file with a header row naming at least name and email")
		issueToken = flag.Bool("issue-admin-token", false, "print a dashboard token for -subject and exit")
		subject    = flag.String("subject", "admin", "subject of the issued admin token")
		tokenTTL   = flag.Duration("token-ttl", 24*time.Hour, "lifetime of the issued admin token")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *issueToken {
		gen, err := auth.NewJWTGenerator(auth.JWTConfig{
			SecretKey: cfg.JWTSecret,
			Issuer:    cfg.JWTIssuer,
			Audience:  cfg.JWTAudience,
		}, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to create token generator: %v", err)
		}
		token, err := gen.GenerateToken(*subject, "", []string{auth.RoleAdmin})
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *eventID == "" {
		*eventID = cfg.DefaultEventID
	}

	body, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	ctx := context.Background()
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer func() { _ = container.Logger.Sync() }()

	report, err := container.CommandBus.Send(ctx, commands.ImportGuestsCommand{EventID: *eventID, CSV: body})
	if err != nil {
		container.Logger.Error("Import failed", zap.String("eventId", *eventID), zap.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}
