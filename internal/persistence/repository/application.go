package repository

import (
	"context"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"gorm.io/gorm"
)

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) domain.ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *domain.Application) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *applicationRepository) GetByID(ctx context.Context, id int64) (*domain.Application, error) {
	var app domain.Application
	if err := r.db.WithContext(ctx).First(&app, id).Error; err != nil {
		return nil, translateNotFound(err, domain.ErrApplicationNotFound)
	}
	return &app, nil
}

func (r *applicationRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Application, error) {
	apps := make([]domain.Application, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) Update(ctx context.Context, app *domain.Application) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ?", app.ID).
		Updates(map[string]any{
			"name": app.Name,
			"url":  app.URL,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrApplicationNotFound
	}
	return nil
}

func (r *applicationRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("registered_application_id = ?", id).Delete(&domain.Event{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&domain.Application{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrApplicationNotFound
		}
		return nil
	})
}
