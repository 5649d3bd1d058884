// Package ingestion records events submitted by tracked websites.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/metrics"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const auditTimeout = 2 * time.Second

// Notifier is told about every persisted event. A failing notifier never
// changes the outcome of Record.
type Notifier interface {
	Notify(ctx context.Context, event *domain.Event) error
	Name() string
}

type IngestionUseCase interface {
	// Record decodes the tracking code, checks it against the registered
	// application and persists one event named name.
	Record(ctx context.Context, name, trackingCode string) (*domain.Event, error)
}

type ingestionUseCase struct {
	applications domain.ApplicationRepository
	events       domain.EventRepository
	audit        domain.IngestionAuditRepository
	notifiers    []Notifier
	metrics      *metrics.Metrics
	logger       logging.Logger
}

type Option func(*ingestionUseCase)

func WithNotifiers(notifiers ...Notifier) Option {
	return func(uc *ingestionUseCase) {
		uc.notifiers = append(uc.notifiers, notifiers...)
	}
}

func WithAuditLog(audit domain.IngestionAuditRepository) Option {
	return func(uc *ingestionUseCase) {
		uc.audit = audit
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *ingestionUseCase) {
		uc.metrics = m
	}
}

func NewIngestionUseCase(
	applications domain.ApplicationRepository,
	events domain.EventRepository,
	logger logging.Logger,
	opts ...Option,
) IngestionUseCase {
	uc := &ingestionUseCase{
		applications: applications,
		events:       events,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ingestionUseCase) Record(ctx context.Context, name, trackingCode string) (*domain.Event, error) {
	ctx, span := tracing.GetTracer("ingestion").Start(ctx, "ingestion.Record",
		trace.WithAttributes(attribute.String("event.name", name)))
	defer span.End()

	appID, err := domain.DecodeApplicationID(trackingCode)
	if err != nil {
		uc.reject(ctx, 0, name, trackingCode, domain.OutcomeMalformed, err)
		return nil, err
	}

	app, err := uc.applications.GetByID(ctx, appID)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			uc.reject(ctx, appID, name, trackingCode, domain.OutcomeUnregistered, err)
			return nil, err
		}
		uc.reject(ctx, appID, name, trackingCode, domain.OutcomePersistenceError, err)
		return nil, fmt.Errorf("failed to load application %d: %w", appID, err)
	}

	if !domain.ValidateTrackingCode(trackingCode, app) {
		uc.reject(ctx, appID, name, trackingCode, domain.OutcomeMismatch, domain.ErrTrackingCodeMismatch)
		return nil, domain.ErrTrackingCodeMismatch
	}

	event, err := domain.NewEvent(app, name)
	if err != nil {
		uc.reject(ctx, appID, name, trackingCode, domain.OutcomeInvalid, err)
		return nil, err
	}

	if err := uc.events.Create(ctx, event); err != nil {
		uc.reject(ctx, appID, name, trackingCode, domain.OutcomePersistenceError, err)
		return nil, fmt.Errorf("failed to save event: %w", err)
	}

	uc.count(ctx, domain.OutcomeRecorded)
	uc.writeAudit(ctx, domain.NewRecordedLog(event, trackingCode))
	uc.notify(ctx, event)

	uc.logger.Debug(logging.General, logging.Ingestion, "event recorded", map[logging.ExtraKey]any{
		logging.ApplicationID: app.ID,
		logging.EventName:     event.Name,
	})

	return event, nil
}

func (uc *ingestionUseCase) reject(ctx context.Context, appID int64, name, trackingCode string, outcome domain.IngestionOutcome, cause error) {
	uc.count(ctx, outcome)
	uc.writeAudit(ctx, domain.NewRejectedLog(appID, name, trackingCode, outcome, cause.Error()))

	extra := map[logging.ExtraKey]any{
		logging.Outcome:      string(outcome),
		logging.ErrorMessage: cause.Error(),
	}
	if appID != 0 {
		extra[logging.ApplicationID] = appID
	}

	if outcome == domain.OutcomePersistenceError {
		uc.logger.Error(logging.Database, logging.Ingestion, "event could not be stored", extra)
		return
	}
	uc.logger.Info(logging.Validation, logging.Ingestion, "event rejected", extra)
}

func (uc *ingestionUseCase) count(ctx context.Context, outcome domain.IngestionOutcome) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("ingestion.outcome", string(outcome)))
	if uc.metrics != nil {
		uc.metrics.EventsIngested.WithLabelValues(string(outcome)).Inc()
	}
}

func (uc *ingestionUseCase) writeAudit(ctx context.Context, entry *domain.IngestionAuditLog) {
	if uc.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := uc.audit.Log(ctx, entry); err != nil {
		uc.logger.Warn(logging.MongoDB, logging.Ingestion, "failed to write ingestion audit log", map[logging.ExtraKey]any{
			logging.Outcome:      string(entry.Outcome),
			logging.ErrorMessage: err.Error(),
		})
	}
}

func (uc *ingestionUseCase) notify(ctx context.Context, event *domain.Event) {
	for _, n := range uc.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			if uc.metrics != nil {
				uc.metrics.NotifierFailures.WithLabelValues(n.Name()).Inc()
			}
			uc.logger.Warn(logging.General, logging.Publish, "failed to notify about recorded event", map[logging.ExtraKey]any{
				"notifier":            n.Name(),
				logging.ApplicationID: event.ApplicationID,
				logging.ErrorMessage:  err.Error(),
			})
		}
	}
}
