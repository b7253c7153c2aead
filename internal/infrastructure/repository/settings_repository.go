package repository

import (
	"context"
	"errors"
	"time"

	"store-sync-engine/internal/ports"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const syncSettingsKey = "sync"

// MongoSettingsDoc holds application-wide settings edited from the admin UI
type MongoSettingsDoc struct {
	Key                 string    `bson:"_id"`
	DefaultSyncInterval int       `bson:"defaultSyncInterval"` // Minutes
	UpdatedAt           time.Time `bson:"updatedAt"`
}

// MongoSettingsRepository implements SettingsProvider using the settings collection.
// The configured default applies when no interval was saved.
type MongoSettingsRepository struct {
	collection *mongo.Collection
	fallback   time.Duration
	logger     zerolog.Logger
}

// NewMongoSettingsRepository creates a new MongoDB settings repository
func NewMongoSettingsRepository(db *mongo.Database, fallback time.Duration, logger zerolog.Logger) ports.SettingsProvider {
	return &MongoSettingsRepository{
		collection: db.Collection(settingsCollection),
		fallback:   fallback,
		logger:     logger,
	}
}

// DefaultSyncInterval returns the interval used by stores without their own sync_interval
func (r *MongoSettingsRepository) DefaultSyncInterval(ctx context.Context) time.Duration {
	var doc MongoSettingsDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": syncSettingsKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.fallback
	}
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to read sync settings, using configured default")
		return r.fallback
	}
	if doc.DefaultSyncInterval <= 0 {
		return r.fallback
	}
	return time.Duration(doc.DefaultSyncInterval) * time.Minute
}
