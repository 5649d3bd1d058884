package repository

import (
	"context"
	"time"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultAuditLogRetention is how long Mongo keeps ingestion audit entries
// when no retention is configured.
const DefaultAuditLogRetention = 30 * 24 * time.Hour

type ingestionAuditLogRepository struct {
	db        *mongo.Database
	retention time.Duration
}

func NewIngestionAuditLogRepository(db *mongo.Database, retention time.Duration) domain.IngestionAuditRepository {
	if retention <= 0 {
		retention = DefaultAuditLogRetention
	}

	return &ingestionAuditLogRepository{
		db:        db,
		retention: retention,
	}
}

func (r *ingestionAuditLogRepository) collection() *mongo.Collection {
	return r.db.Collection(db.IngestionAuditLogsCollection)
}

func (r *ingestionAuditLogRepository) Log(ctx context.Context, log *domain.IngestionAuditLog) error {
	_, err := r.collection().InsertOne(ctx, log)
	return err
}

func (r *ingestionAuditLogRepository) GetByApplicationID(ctx context.Context, applicationID int64, limit int) ([]domain.IngestionAuditLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return r.find(ctx, applicationFilter(applicationID), opts)
}

func (r *ingestionAuditLogRepository) GetByOutcome(ctx context.Context, applicationID int64, outcome domain.IngestionOutcome, from, to time.Time) ([]domain.IngestionAuditLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return r.find(ctx, outcomeFilter(applicationID, outcome, from, to), opts)
}

func (r *ingestionAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) error {
	_, err := r.collection().DeleteMany(ctx, olderThanFilter(before))
	return err
}

func (r *ingestionAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "application_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "application_id", Value: 1},
				{Key: "outcome", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(r.retention.Seconds())),
		},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *ingestionAuditLogRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.IngestionAuditLog, error) {
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := make([]domain.IngestionAuditLog, 0)
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func applicationFilter(applicationID int64) bson.M {
	return bson.M{"application_id": applicationID}
}

func outcomeFilter(applicationID int64, outcome domain.IngestionOutcome, from, to time.Time) bson.M {
	return bson.M{
		"application_id": applicationID,
		"outcome":        outcome,
		"timestamp": bson.M{
			"$gte": from,
			"$lte": to,
		},
	}
}

func olderThanFilter(before time.Time) bson.M {
	return bson.M{
		"timestamp": bson.M{
			"$lt": before,
		},
	}
}
