package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type IngestionOutcome string

const (
	OutcomeRecorded         IngestionOutcome = "recorded"
	OutcomeMalformed        IngestionOutcome = "malformed_tracking_code"
	OutcomeUnregistered     IngestionOutcome = "unregistered_application"
	OutcomeMismatch         IngestionOutcome = "tracking_code_mismatch"
	OutcomeInvalid          IngestionOutcome = "invalid_event"
	OutcomePersistenceError IngestionOutcome = "persistence_error"
)

// ParseIngestionOutcome reports whether s names a known outcome.
func ParseIngestionOutcome(s string) (IngestionOutcome, bool) {
	switch o := IngestionOutcome(s); o {
	case OutcomeRecorded, OutcomeMalformed, OutcomeUnregistered, OutcomeMismatch, OutcomeInvalid, OutcomePersistenceError:
		return o, true
	}
	return "", false
}

// IngestionAuditLog records one event submission, accepted or not.
type IngestionAuditLog struct {
	ID            string           `bson:"_id" json:"id"`
	ApplicationID int64            `bson:"application_id,omitempty" json:"applicationId,omitempty"`
	EventID       int64            `bson:"event_id,omitempty" json:"eventId,omitempty"`
	EventName     string           `bson:"event_name" json:"eventName"`
	TrackingCode  string           `bson:"tracking_code" json:"trackingCode"`
	Outcome       IngestionOutcome `bson:"outcome" json:"outcome"`
	Timestamp     time.Time        `bson:"timestamp" json:"timestamp"`
	Metadata      map[string]any   `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type IngestionAuditRepository interface {
	Log(ctx context.Context, log *IngestionAuditLog) error
	GetByApplicationID(ctx context.Context, applicationID int64, limit int) ([]IngestionAuditLog, error)
	GetByOutcome(ctx context.Context, applicationID int64, outcome IngestionOutcome, from, to time.Time) ([]IngestionAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

func NewRecordedLog(event *Event, trackingCode string) *IngestionAuditLog {
	return &IngestionAuditLog{
		ID:            uuid.NewString(),
		ApplicationID: event.ApplicationID,
		EventID:       event.ID,
		EventName:     event.Name,
		TrackingCode:  trackingCode,
		Outcome:       OutcomeRecorded,
		Timestamp:     time.Now(),
	}
}

func NewRejectedLog(applicationID int64, name, trackingCode string, outcome IngestionOutcome, reason string) *IngestionAuditLog {
	return &IngestionAuditLog{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		EventName:     name,
		TrackingCode:  trackingCode,
		Outcome:       outcome,
		Timestamp:     time.Now(),
		Metadata: map[string]any{
			"reason": reason,
		},
	}
}
