package entity

import (
	"time"

	"store-sync-engine/internal/domain"
)

// MongoSyncLogDoc represents one run log in MongoDB
type MongoSyncLogDoc struct {
	ID              string              `bson:"_id"`
	StoreID         string              `bson:"storeId"`
	Domain          string              `bson:"domain"`
	Direction       string              `bson:"direction"`
	Trigger         string              `bson:"trigger"`
	Status          string              `bson:"status"`
	StartedAt       time.Time           `bson:"startedAt"`
	FinishedAt      *time.Time          `bson:"finishedAt"`
	RecordsSuccess  int                 `bson:"recordsSuccess"`
	RecordsFailed   int                 `bson:"recordsFailed"`
	PagesFetched    int                 `bson:"pagesFetched"`
	Errors          []MongoSyncErrorDoc `bson:"errors"`
	ErrorsTruncated bool                `bson:"errorsTruncated,omitempty"`
	Message         string              `bson:"message,omitempty"`
}

// MongoSyncErrorDoc is one per-record failure
type MongoSyncErrorDoc struct {
	ExternalID string `bson:"externalId"`
	Message    string `bson:"message"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoSyncLogDoc) ToDomain() *domain.SyncLog {
	errs := make([]domain.SyncError, 0, len(d.Errors))
	for _, e := range d.Errors {
		errs = append(errs, domain.SyncError{ExternalID: e.ExternalID, Message: e.Message})
	}
	return &domain.SyncLog{
		ID:              d.ID,
		StoreID:         d.StoreID,
		Domain:          domain.SyncDomain(d.Domain),
		Direction:       domain.Direction(d.Direction),
		Trigger:         domain.Trigger(d.Trigger),
		Status:          domain.SyncStatus(d.Status),
		StartedAt:       d.StartedAt,
		FinishedAt:      d.FinishedAt,
		RecordsSuccess:  d.RecordsSuccess,
		RecordsFailed:   d.RecordsFailed,
		PagesFetched:    d.PagesFetched,
		Errors:          errs,
		ErrorsTruncated: d.ErrorsTruncated,
		Message:         d.Message,
	}
}

// MongoSyncLogDocFromDomain converts a domain entity to a MongoDB document
func MongoSyncLogDocFromDomain(log *domain.SyncLog) *MongoSyncLogDoc {
	errs := make([]MongoSyncErrorDoc, 0, len(log.Errors))
	for _, e := range log.Errors {
		errs = append(errs, MongoSyncErrorDoc{ExternalID: e.ExternalID, Message: e.Message})
	}
	return &MongoSyncLogDoc{
		ID:              log.ID,
		StoreID:         log.StoreID,
		Domain:          string(log.Domain),
		Direction:       string(log.Direction),
		Trigger:         string(log.Trigger),
		Status:          string(log.Status),
		StartedAt:       log.StartedAt,
		FinishedAt:      log.FinishedAt,
		RecordsSuccess:  log.RecordsSuccess,
		RecordsFailed:   log.RecordsFailed,
		PagesFetched:    log.PagesFetched,
		Errors:          errs,
		ErrorsTruncated: log.ErrorsTruncated,
		Message:         log.Message,
	}
}
