package di

import (
	"wedding-backend/application/commands/bus"
	"wedding-backend/application/ports"
	querybus "wedding-backend/application/queries/bus"
	"wedding-backend/application/services"
	"wedding-backend/infrastructure/config"
	"wedding-backend/infrastructure/messaging/local"
	"wedding-backend/pkg/auth"
	"wedding-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Clock       ports.Clock
	Store       ports.Store
	Idempotency ports.IdempotencyStore
	Publisher   ports.EventPublisher
	LocalEvents *local.Publisher // set only on the in-memory store

	Validator  *services.InvitationValidator
	Writer     *services.RSVPWriter
	Groups     *services.GroupCoordinator
	Admin      *services.AdminQueryService
	Events     *services.EventService
	GuestAdmin *services.GuestAdmin
	Importer   *services.Importer
	Processor  *services.ChangeProcessor
	Notifier   *services.Notifier

	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus

	Collector   *observability.Collector
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
	RateLimiter *auth.IPRateLimiter
	JWT         *auth.JWTValidator
}
