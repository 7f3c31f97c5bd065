package domain

import (
	"context"
	"time"
)

// ProgressRecord is the stored per (user, activity type) streak and time rollup.
// TotalTimeSpent is in minutes.
type ProgressRecord struct {
	ID             string
	UserID         string
	ActivityType   string
	Streak         int
	LastCompleted  time.Time
	TotalTimeSpent int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProgressSummary is a derived, non-persisted reduction of the progress records of one
// activity type. ID, CreatedAt and UpdatedAt are generated per report.
type ProgressSummary struct {
	ID             string
	UserID         string
	ActivityType   string
	Streak         int
	TotalTimeSpent int
	LastCompleted  time.Time
	RecordCount    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProgressUpdate carries the fields written by a read-modify-write update.
type ProgressUpdate struct {
	Streak         int
	TotalTimeSpent int
	LastCompleted  time.Time
	UpdatedAt      time.Time
}

// ProgressIncrement is applied by ProgressRepository.Upsert in a single atomic step.
type ProgressIncrement struct {
	NewID        string // used only when no record exists yet
	UserID       string
	ActivityType string
	Minutes      int
	CompletedAt  time.Time
	Now          time.Time
}

// ProgressRepository captures progress persistence operations.
// Find returns (nil, nil) when no record exists for the pair.
type ProgressRepository interface {
	Find(ctx context.Context, userID, activityType string) (*ProgressRecord, error)
	Insert(ctx context.Context, record ProgressRecord) error
	UpdateFields(ctx context.Context, id string, update ProgressUpdate) error
	// Upsert increments the record for (UserID, ActivityType) or creates it with
	// streak 1, serialised per pair. The bool reports whether a record was created.
	Upsert(ctx context.Context, inc ProgressIncrement) (*ProgressRecord, bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]ProgressRecord, error)
}
