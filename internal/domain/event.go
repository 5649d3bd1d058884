package domain

import (
	"context"
	"time"

	"github.com/hilthontt/cheahlytics/internal/infrastructure/validate"
)

// Event is a named occurrence recorded for an application. Events are never
// mutated after creation.
type Event struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null;index:idx_events_application_name,priority:2" json:"name"`
	ApplicationID int64     `gorm:"column:registered_application_id;not null;index:idx_events_application_name,priority:1" json:"registeredApplicationId"`
	CreatedAt     time.Time `gorm:"not null;index" json:"createdAt"`
}

// EventGroup is the dashboard projection of events sharing a name.
type EventGroup struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	ListByApplication(ctx context.Context, applicationID int64, limit int) ([]Event, error)
	GroupByName(ctx context.Context, applicationID int64) ([]EventGroup, error)
	CountByApplication(ctx context.Context, applicationID int64) (int64, error)
}

func NewEvent(app *Application, name string) (*Event, error) {
	if app == nil {
		return nil, ErrApplicationNotFound
	}

	errs := validate.Errors{}
	errs.Check("name", name, validate.Required(), validate.MaxLength(255))
	if err := newValidationError("event", errs); err != nil {
		return nil, err
	}

	return &Event{
		Name:          name,
		ApplicationID: app.ID,
	}, nil
}
