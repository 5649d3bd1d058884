package repository

import (
	"context"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"gorm.io/gorm"
)

const defaultEventListLimit = 100

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) domain.EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) ListByApplication(ctx context.Context, applicationID int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = defaultEventListLimit
	}

	events := make([]domain.Event, 0)
	err := r.db.WithContext(ctx).
		Where("registered_application_id = ?", applicationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *eventRepository) GroupByName(ctx context.Context, applicationID int64) ([]domain.EventGroup, error) {
	groups := make([]domain.EventGroup, 0)
	err := r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Select("name, COUNT(*) AS count").
		Where("registered_application_id = ?", applicationID).
		Group("name").
		Order("count DESC, name ASC").
		Scan(&groups).Error
	return groups, err
}

func (r *eventRepository) CountByApplication(ctx context.Context, applicationID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("registered_application_id = ?", applicationID).
		Count(&count).Error
	return count, err
}
