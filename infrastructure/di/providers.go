package di

import (
	"context"
	"time"

	"wedding-backend/application/commands"
	"wedding-backend/application/commands/bus"
	commands_handlers "wedding-backend/application/commands/handlers"
	"wedding-backend/application/ports"
	"wedding-backend/application/queries"
	querybus "wedding-backend/application/queries/bus"
	queries_handlers "wedding-backend/application/queries/handlers"
	"wedding-backend/application/services"
	domainconfig "wedding-backend/domain/config"
	"wedding-backend/domain/events"
	"wedding-backend/infrastructure/config"
	"wedding-backend/infrastructure/messaging/eventbridge"
	"wedding-backend/infrastructure/messaging/local"
	"wedding-backend/infrastructure/notification"
	"wedding-backend/infrastructure/persistence/dynamodb"
	"wedding-backend/infrastructure/persistence/memory"
	"wedding-backend/pkg/auth"
	"wedding-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	metricsNamespace    = "WeddingRSVP"
	serviceName         = "wedding-rsvp"
	idempotencyTTL      = 7 * 24 * time.Hour
	localEventQueueSize = 1024
	adminTokenLeeway    = 30 * time.Second
	slowQueryThreshold  = 2 * time.Second
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

// ProvideAWSConfig creates AWS configuration. SDK calls are traced when
// tracing is enabled.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.EnableTracing {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideClock provides the wall clock.
func ProvideClock() ports.Clock {
	return ports.SystemClock{}
}

// ProvideDomainRules provides the business rules.
func ProvideDomainRules(cfg *config.Config) *domainconfig.DomainConfig {
	return cfg.DomainRules()
}

// ProvideBreaker creates the storage circuit breaker.
func ProvideBreaker(logger *zap.Logger) *gobreaker.CircuitBreaker {
	return dynamodb.NewBreaker(dynamodb.DefaultBreakerConfig(), logger)
}

// ProvideStore selects the in-memory store for local runs, the DynamoDB
// gateway otherwise.
func ProvideStore(
	client *awsdynamodb.Client,
	breaker *gobreaker.CircuitBreaker,
	cfg *config.Config,
	logger *zap.Logger,
) ports.Store {
	if cfg.UseMemoryStore {
		logger.Warn("Using in-memory store, data is lost on exit")
		return memory.NewStore()
	}
	return dynamodb.NewGateway(client, dynamodb.GatewayConfig{
		TableName:  cfg.TableName,
		IndexNames: cfg.IndexNames(),
		Timeout:    cfg.StorageTimeout,
	}, breaker, logger)
}

// ProvideIdempotencyStore creates the dedupe store for confirmations.
func ProvideIdempotencyStore(client *awsdynamodb.Client, cfg *config.Config) ports.IdempotencyStore {
	if cfg.UseMemoryStore {
		return memory.NewIdempotencyStore(idempotencyTTL)
	}
	return dynamodb.NewIdempotencyStore(client, cfg.TableName, idempotencyTTL)
}

// ProvideCollector creates the Prometheus collector.
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("wedding")
}

// ProvideMetrics creates the CloudWatch metrics recorder. It is a no-op
// unless metrics are enabled.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableMetrics {
		return observability.NewMetrics(metricsNamespace, nil, logger)
	}
	return observability.NewMetrics(metricsNamespace, client, logger)
}

// ProvideTracer creates the X-Ray tracer.
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideGroupCoordinator creates the group coordinator.
func ProvideGroupCoordinator(store ports.Store, clock ports.Clock, rules *domainconfig.DomainConfig, logger *zap.Logger) *services.GroupCoordinator {
	return services.NewGroupCoordinator(store, clock, rules, logger)
}

// ProvideRSVPWriter creates the RSVP writer.
func ProvideRSVPWriter(
	store ports.Store,
	clock ports.Clock,
	groups *services.GroupCoordinator,
	rules *domainconfig.DomainConfig,
	collector *observability.Collector,
	logger *zap.Logger,
) *services.RSVPWriter {
	return services.NewRSVPWriter(store, clock, groups, rules, collector, logger)
}

// ProvideInvitationValidator creates the invitation validator.
func ProvideInvitationValidator(store ports.Store, clock ports.Clock, collector *observability.Collector, logger *zap.Logger) *services.InvitationValidator {
	return services.NewInvitationValidator(store, clock, collector, logger)
}

// ProvideAdminQueryService creates the dashboard read service.
func ProvideAdminQueryService(store ports.Store, clock ports.Clock, logger *zap.Logger) *services.AdminQueryService {
	return services.NewAdminQueryService(store, clock, logger)
}

// ProvideEventService creates the event service.
func ProvideEventService(store ports.Store, clock ports.Clock, stats *services.AdminQueryService, logger *zap.Logger) *services.EventService {
	return services.NewEventService(store, clock, stats, logger)
}

// ProvideGuestAdmin creates the guest administration service.
func ProvideGuestAdmin(
	store ports.Store,
	clock ports.Clock,
	writer *services.RSVPWriter,
	groups *services.GroupCoordinator,
	rules *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.GuestAdmin {
	return services.NewGuestAdmin(store, clock, writer, groups, rules, logger)
}

// ProvideImporter creates the guest list importer.
func ProvideImporter(
	store ports.Store,
	clock ports.Clock,
	groups *services.GroupCoordinator,
	rules *domainconfig.DomainConfig,
	logger *zap.Logger,
) *services.Importer {
	return services.NewImporter(store, clock, groups, rules, logger)
}

// ProvideEventPublisher creates the EventBridge publisher. Local runs have
// none: their change events are delivered in-process by ProvideLocalEvents.
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.UseMemoryStore || cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewEventBridgePublisher(client, cfg.EventBusName, logger)
}

// ProvideChangeProcessor creates the change processor.
func ProvideChangeProcessor(publisher ports.EventPublisher, events *services.EventService, logger *zap.Logger) *services.ChangeProcessor {
	return services.NewChangeProcessor(publisher, events, logger)
}

// ProvideMailer creates the SendGrid mailer.
func ProvideMailer(cfg *config.Config, logger *zap.Logger) ports.Mailer {
	return notification.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName, logger)
}

// ProvideNotifier creates the confirmation notifier.
func ProvideNotifier(
	claims ports.IdempotencyStore,
	mailer ports.Mailer,
	events *services.EventService,
	logger *zap.Logger,
) *services.Notifier {
	return services.NewNotifier(claims, mailer, events, logger)
}

// ProvideLocalEvents feeds the in-memory store's writes to the change
// processor and the notifier. It returns nil on DynamoDB, where the table
// stream does this. The caller runs the returned publisher.
func ProvideLocalEvents(
	store ports.Store,
	processor *services.ChangeProcessor,
	notifier *services.Notifier,
	logger *zap.Logger,
) *local.Publisher {
	mem, ok := store.(*memory.Store)
	if !ok {
		return nil
	}
	publisher := local.NewPublisher(localEventQueueSize, logger, processor.Process, notifier.HandleBatch)
	mem.Subscribe(func(e events.ChangeEvent) {
		_ = publisher.Publish(context.Background(), e)
	})
	return publisher
}

// ProvideRateLimiter creates the per-IP limiter of the public endpoints.
// Lambda instances share counters through the table.
func ProvideRateLimiter(client *awsdynamodb.Client, cfg *config.Config) *auth.IPRateLimiter {
	if cfg.UseMemoryStore {
		return auth.NewIPRateLimiter(cfg.RateLimitPerMinute)
	}
	return auth.NewIPRateLimiterWith(auth.NewDistributedIPRateLimiter(client, cfg.TableName, cfg.RateLimitPerMinute))
}

// ProvideJWTValidator creates the admin token validator. Without a secret it
// returns nil and every admin request is refused.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, admin endpoints are disabled")
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		Leeway:    adminTokenLeeway,
	})
}

// ProvideCommandBus creates and configures the command bus
func ProvideCommandBus(
	store ports.Store,
	clock ports.Clock,
	validator *services.InvitationValidator,
	writer *services.RSVPWriter,
	groups *services.GroupCoordinator,
	eventService *services.EventService,
	guestAdmin *services.GuestAdmin,
	importer *services.Importer,
	rules *domainconfig.DomainConfig,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	)

	submit := commands_handlers.NewSubmitRSVPHandler(store, clock, validator, writer, eventService, rules, tracer, logger)
	updateGuest := commands_handlers.NewUpdateGuestHandler(guestAdmin)
	upsertEvent := commands_handlers.NewUpsertEventHandler(eventService)
	recompute := commands_handlers.NewRecomputeGroupHandler(groups)
	refresh := commands_handlers.NewRefreshEventCountsHandler(eventService)
	importGuests := commands_handlers.NewImportGuestsHandler(importer)

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.SubmitRSVPCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return submit.Handle(ctx, cmd.(commands.SubmitRSVPCommand))
		})},
		{commands.UpdateGuestCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return updateGuest.Handle(ctx, cmd.(commands.UpdateGuestCommand))
		})},
		{commands.UpsertEventCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return upsertEvent.Handle(ctx, cmd.(commands.UpsertEventCommand))
		})},
		{commands.RecomputeGroupCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return recompute.Handle(ctx, cmd.(commands.RecomputeGroupCommand))
		})},
		{commands.RefreshEventCountsCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return nil, refresh.Handle(ctx, cmd.(commands.RefreshEventCountsCommand))
		})},
		{commands.ImportGuestsCommand{}, bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			return importGuests.Handle(ctx, cmd.(commands.ImportGuestsCommand))
		})},
	}
	for _, r := range registrations {
		if err := commandBus.Register(r.cmd, r.handler); err != nil {
			return nil, err
		}
	}
	return commandBus, nil
}

// ProvideQueryBus creates and configures the query bus
func ProvideQueryBus(
	validator *services.InvitationValidator,
	admin *services.AdminQueryService,
	eventService *services.EventService,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.SlowQueryMiddleware(logger, slowQueryThreshold))

	validate := queries_handlers.NewValidateInvitationHandler(validator)
	dashboard := queries_handlers.NewAdminQueryHandler(admin, eventService, tracer, logger)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.ValidateInvitationQuery{}, querybus.QueryHandlerFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return validate.Handle(ctx, q.(queries.ValidateInvitationQuery))
		})},
		{queries.GetStatsQuery{}, querybus.QueryHandlerFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return dashboard.Stats(ctx, q.(queries.GetStatsQuery))
		})},
		{queries.ListGuestsQuery{}, querybus.QueryHandlerFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return dashboard.ListGuests(ctx, q.(queries.ListGuestsQuery))
		})},
		{queries.GetGuestHistoryQuery{}, querybus.QueryHandlerFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return dashboard.GuestHistory(ctx, q.(queries.GetGuestHistoryQuery))
		})},
		{queries.GetEventQuery{}, querybus.QueryHandlerFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return dashboard.Event(ctx, q.(queries.GetEventQuery))
		})},
		{queries.RecentResponsesQuery{}, querybus.QueryHandlerFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return dashboard.RecentResponses(ctx, q.(queries.RecentResponsesQuery))
		})},
	}
	for _, r := range registrations {
		if err := queryBus.Register(r.query, r.handler); err != nil {
			return nil, err
		}
	}
	return queryBus, nil
}
