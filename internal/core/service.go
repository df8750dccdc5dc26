// Package core exposes the registry service: transactional adds with dry-run
// twins, indexed lookups, provenance traces, journal verification and snapshot
// archiving, layered over a domain.PersistentStore.
package core

import (
	"context"
	"errors"
	"time"

	"icetrace/internal/event"
	"icetrace/internal/infra/persistence/memory"
	"icetrace/pkg/domain"
)

// Service coordinates registry operations against a persistent store and
// reports each one to the configured logger, tracer, metrics and audit sinks.
type Service struct {
	store   PersistentStore
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	events  EventPublisher
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newService(store, o)
}

// NewInMemoryService creates a service over a fresh in-memory store. The
// store stamps records with the service clock.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newService(memory.NewStore(engine, memory.WithNow(o.clock.Now)), o)
}

func newService(store PersistentStore, o serviceOptions) *Service {
	return &Service{
		store:   store,
		clock:   o.clock,
		logger:  o.logger,
		audit:   o.audit,
		metrics: o.metrics,
		tracer:  o.tracer,
		events:  o.events,
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// observe runs fn inside a span and reports its outcome to metrics and the logger.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error) (time.Duration, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	switch {
	case err == nil:
		s.logger.Debug("registry operation completed", "operation", op, "duration", duration)
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Debug("registry lookup missed", "operation", op, "error", err)
	default:
		s.logger.Error("registry operation failed", "operation", op, "error", err)
	}
	return duration, err
}

func (s *Service) recordAuditSuccess(ctx context.Context, op string, kind EntityType, id uint64, duration time.Duration) {
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    kind,
		Action:    ActionCreate,
		EntityID:  id,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, op string, kind EntityType, err error, duration time.Duration) {
	s.audit.Record(ctx, AuditEntry{
		Operation: op,
		Entity:    kind,
		Action:    ActionCreate,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) logViolations(op string, res Result) {
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
	}
}

func (s *Service) publishAdded(kind EntityType, id uint64, rec any) {
	if s.events == nil {
		return
	}
	typ := event.AddedType(kind)
	accepted := s.events.PublishAsync(typ, event.Event{
		Type:      typ,
		Timestamp: s.clock.Now(),
		Data:      event.EntityAdded{Entity: kind, ID: id, Record: rec},
	})
	if !accepted {
		s.logger.Warn("added event dropped", "entity", kind, "entity_id", id)
	}
}
