// Package registry assembles the command and query buses with their handlers,
// access rules and middleware chains.
package registry

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/admin"
	"staybook/internal/app/handlers/availability"
	"staybook/internal/app/handlers/reservations"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
)

// Deps are the collaborators the buses need. Nil optional fields fall back to
// defaults.
type Deps struct {
	Factory        uow.UoWFactory
	Idempotency    middleware.IdempotencyStore
	Validator      middleware.Validator
	Logger         *slog.Logger
	Tracer         trace.Tracer
	Encoder        outbox.EventEncoder
	IdempotencyTTL time.Duration
	MaxDays        int
	Retry          []middleware.RetryOption
	Clock          func() time.Time
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
	Policy   *policies.AccessPolicy
}

// AccessRules maps every bus key to who may send it.
func AccessRules() map[string]policies.Rule {
	admins := policies.Rule{Roles: []policies.Role{policies.RoleAdmin, policies.RoleSystem}}
	payments := policies.Rule{Roles: []policies.Role{policies.RolePayments, policies.RoleAdmin, policies.RoleSystem}}
	authenticated := policies.Rule{}
	public := policies.Rule{Public: true}
	return map[string]policies.Rule{
		reservations.CommitKey:      authenticated,
		reservations.GuestCommitKey: public,
		reservations.ConfirmKey:     payments,
		reservations.CancelKey:      authenticated,
		reservations.CompleteKey:    admins,
		reservations.GetKey:         authenticated,
		reservations.ListMineKey:    authenticated,
		availability.WindowKey:      public,
		availability.CheckKey:       public,
		availability.SearchKey:      public,
		admin.UpsertResourceKey:     admins,
		admin.AddBlocksKey:          admins,
		admin.RemoveBlocksKey:       admins,
		admin.SetPricesKey:          admins,
		admin.ClearPricesKey:        admins,
	}
}

// Build registers every handler and wraps the buses in the middleware chain:
// logging, tracing, validation, authorization, idempotency, retry, then the
// transaction for commands.
func Build(d Deps) Buses {
	if d.Factory == nil {
		panic("registry: uow factory required")
	}
	if d.Idempotency == nil {
		panic("registry: idempotency store required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := d.Tracer
	if tracer == nil {
		tracer = otel.Tracer("staybook/app")
	}
	encoder := d.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}

	writer := reservations.Writer{Encoder: encoder, Logger: logger, MaxDays: d.MaxDays, Clock: d.Clock}
	lifecycle := &reservations.LifecycleHandler{Encoder: encoder, Logger: logger, Clock: d.Clock}
	adminHandler := &admin.Handler{Encoder: encoder, Logger: logger, MaxDays: d.MaxDays, Clock: d.Clock}

	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler[reservations.CommitCommand, dto.ReservationResult](cmdBus, reservations.CommitKey, &reservations.CommitHandler{Writer: writer})
	commands.RegisterHandler[reservations.GuestCommitCommand, dto.ReservationResult](cmdBus, reservations.GuestCommitKey, &reservations.GuestCommitHandler{Writer: writer})
	commands.RegisterHandler(cmdBus, reservations.ConfirmKey, commands.HandlerFunc[reservations.ConfirmCommand, dto.Reservation](lifecycle.Confirm))
	commands.RegisterHandler(cmdBus, reservations.CancelKey, commands.HandlerFunc[reservations.CancelCommand, dto.Reservation](lifecycle.Cancel))
	commands.RegisterHandler(cmdBus, reservations.CompleteKey, commands.HandlerFunc[reservations.CompleteCommand, dto.Reservation](lifecycle.Complete))
	commands.RegisterHandler(cmdBus, admin.UpsertResourceKey, commands.HandlerFunc[admin.UpsertResourceCommand, dto.Resource](adminHandler.UpsertResource))
	commands.RegisterHandler(cmdBus, admin.AddBlocksKey, commands.HandlerFunc[admin.AddBlocksCommand, dto.DateRangeChange](adminHandler.AddBlocks))
	commands.RegisterHandler(cmdBus, admin.RemoveBlocksKey, commands.HandlerFunc[admin.RemoveBlocksCommand, dto.DateRangeChange](adminHandler.RemoveBlocks))
	commands.RegisterHandler(cmdBus, admin.SetPricesKey, commands.HandlerFunc[admin.SetPricesCommand, dto.DateRangeChange](adminHandler.SetPrices))
	commands.RegisterHandler(cmdBus, admin.ClearPricesKey, commands.HandlerFunc[admin.ClearPricesCommand, dto.DateRangeChange](adminHandler.ClearPrices))

	availabilityHandler := &availability.Handler{UoWFactory: d.Factory, MaxDays: d.MaxDays}
	reservationQueries := &reservations.QueryHandler{UoWFactory: d.Factory}

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, availability.WindowKey, queries.HandlerFunc[availability.WindowQuery, dto.Window](availabilityHandler.Window))
	queries.RegisterHandler(queryBus, availability.CheckKey, queries.HandlerFunc[availability.CheckQuery, dto.AvailabilityCheck](availabilityHandler.Check))
	queries.RegisterHandler(queryBus, availability.SearchKey, queries.HandlerFunc[availability.SearchQuery, dto.SearchResult](availabilityHandler.Search))
	queries.RegisterHandler(queryBus, reservations.GetKey, queries.HandlerFunc[reservations.GetQuery, dto.Reservation](reservationQueries.Get))
	queries.RegisterHandler(queryBus, reservations.ListMineKey, queries.HandlerFunc[reservations.ListMineQuery, dto.ReservationCollection](reservationQueries.ListMine))

	policy := policies.NewAccessPolicy(AccessRules())
	retryOpts := append([]middleware.RetryOption{middleware.WithRetryLogger(logger)}, d.Retry...)

	return Buses{
		Commands: middleware.ChainCommands(cmdBus,
			middleware.Logging(logger),
			middleware.Tracing(tracer),
			middleware.Validation(d.Validator),
			middleware.Authorization(policy),
			middleware.Idempotency(d.Idempotency, middleware.JSONResultCodec{}, d.IdempotencyTTL),
			middleware.Retry(retryOpts...),
			middleware.Transaction(d.Factory, nil),
		),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryLogging(logger),
			middleware.QueryTracing(tracer),
			middleware.QueryValidation(d.Validator),
			middleware.QueryAuthorization(policy),
		),
		Policy: policy,
	}
}
