package domain

import "time"

// SyncStatus is the lifecycle state of a SyncLog
type SyncStatus string

const (
	SyncStatusRunning             SyncStatus = "running"
	SyncStatusCompleted           SyncStatus = "completed"
	SyncStatusCompletedWithErrors SyncStatus = "completed_with_errors"
	SyncStatusIncomplete          SyncStatus = "incomplete"   // Network failure or page guard; resumes next interval
	SyncStatusRateLimited         SyncStatus = "rate_limited" // Remote asked us to back off
	SyncStatusFailed              SyncStatus = "failed"       // Authentication failure; needs re-authentication
	SyncStatusCancelled           SyncStatus = "cancelled"
)

// StatusForHalt maps the kind that stopped a run to its final status
func StatusForHalt(kind ErrorKind) SyncStatus {
	switch kind {
	case KindAuth:
		return SyncStatusFailed
	case KindRateLimit:
		return SyncStatusRateLimited
	case KindCancelled:
		return SyncStatusCancelled
	default:
		return SyncStatusIncomplete
	}
}

// Trigger records what started a run
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerWebhook   Trigger = "webhook"
)

// SyncError is one per-record failure of a run
type SyncError struct {
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
}

// SyncLog is the record of one orchestration run. It belongs to the run that created it
// until FinishedAt is set and is never modified afterwards.
type SyncLog struct {
	ID              string      `json:"id"`
	StoreID         string      `json:"store_id"`
	Domain          SyncDomain  `json:"domain"`
	Direction       Direction   `json:"direction"`
	Trigger         Trigger     `json:"trigger"`
	Status          SyncStatus  `json:"status"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
	RecordsSuccess  int         `json:"records_success"`
	RecordsFailed   int         `json:"records_failed"`
	PagesFetched    int         `json:"pages_fetched"`
	Errors          []SyncError `json:"errors"`
	ErrorsTruncated bool        `json:"errors_truncated,omitempty"`
	Message         string      `json:"message,omitempty"`
}

// NewSyncLog starts a running log
func NewSyncLog(id, storeID string, d SyncDomain, dir Direction, trigger Trigger, now time.Time) *SyncLog {
	return &SyncLog{
		ID:        id,
		StoreID:   storeID,
		Domain:    d,
		Direction: dir,
		Trigger:   trigger,
		Status:    SyncStatusRunning,
		StartedAt: now,
		Errors:    []SyncError{},
	}
}

// IsFinalized reports whether the run has ended
func (l *SyncLog) IsFinalized() bool {
	return l.FinishedAt != nil
}

// Total is the number of records processed by the run
func (l *SyncLog) Total() int {
	return l.RecordsSuccess + l.RecordsFailed
}

// Finalize closes the log with the given status
func (l *SyncLog) Finalize(status SyncStatus, message string, now time.Time) error {
	if l.IsFinalized() {
		return ErrSyncLogFinalized
	}
	if status == SyncStatusCompleted && l.RecordsFailed > 0 {
		status = SyncStatusCompletedWithErrors
	}
	l.Status = status
	l.Message = message
	l.FinishedAt = &now
	return nil
}
