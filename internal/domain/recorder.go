package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/menta/internal/observability"
)

// RecorderStrategy selects how the recorder performs find-or-create.
type RecorderStrategy string

const (
	// StrategyAtomic delegates find-or-create to ProgressRepository.Upsert.
	StrategyAtomic RecorderStrategy = "atomic"
	// StrategyLegacy reads, decides and writes in separate calls. Two concurrent
	// first-touch calls for the same pair can both insert.
	StrategyLegacy RecorderStrategy = "legacy"
)

// ParseRecorderStrategy maps a config value onto a strategy.
func ParseRecorderStrategy(value string) (RecorderStrategy, error) {
	switch RecorderStrategy(strings.ToLower(strings.TrimSpace(value))) {
	case "", StrategyAtomic:
		return StrategyAtomic, nil
	case StrategyLegacy:
		return StrategyLegacy, nil
	default:
		return "", fmt.Errorf("unknown recorder strategy %q", value)
	}
}

// RecordInput describes one completed activity contributing to progress.
type RecordInput struct {
	UserID       string
	ActivityType string
	Duration     int
	Unit         DurationUnit
	CompletedAt  time.Time // zero means now
}

// ProgressRecorder maintains the progress record for (user, activity type).
// Every call increments the streak by exactly one; there is no calendar-gap check.
type ProgressRecorder struct {
	repo     ProgressRepository
	strategy RecorderStrategy
	now      func() time.Time
	newID    func() string
}

// RecorderOption configures a ProgressRecorder.
type RecorderOption func(*ProgressRecorder)

// WithStrategy overrides the default atomic strategy.
func WithStrategy(strategy RecorderStrategy) RecorderOption {
	return func(r *ProgressRecorder) { r.strategy = strategy }
}

// WithRecorderClock overrides time.Now.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *ProgressRecorder) { r.now = now }
}

// NewProgressRecorder constructs a ProgressRecorder.
func NewProgressRecorder(repo ProgressRepository, opts ...RecorderOption) *ProgressRecorder {
	r := &ProgressRecorder{
		repo:     repo,
		strategy: StrategyAtomic,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record applies one completed activity to the user's progress for its type.
func (r *ProgressRecorder) Record(ctx context.Context, in RecordInput) (*ProgressRecord, error) {
	minutes, err := in.Unit.ToMinutes(in.Duration)
	if err != nil {
		return nil, err
	}

	now := r.now()
	completedAt := in.CompletedAt
	if completedAt.IsZero() {
		completedAt = now
	}

	var (
		record  *ProgressRecord
		created bool
	)
	switch r.strategy {
	case StrategyLegacy:
		record, created, err = r.findThenWrite(ctx, in.UserID, in.ActivityType, minutes, completedAt.UTC(), now)
	default:
		record, created, err = r.repo.Upsert(ctx, ProgressIncrement{
			NewID:        r.newID(),
			UserID:       in.UserID,
			ActivityType: in.ActivityType,
			Minutes:      minutes,
			CompletedAt:  completedAt.UTC(),
			Now:          now,
		})
	}
	if err != nil {
		observability.RecordProgressFailure(string(r.strategy))
		return nil, err
	}

	observability.RecordProgressWrite(string(r.strategy), created)
	return record, nil
}

func (r *ProgressRecorder) findThenWrite(ctx context.Context, userID, activityType string, minutes int, completedAt, now time.Time) (*ProgressRecord, bool, error) {
	existing, err := r.repo.Find(ctx, userID, activityType)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		record := ProgressRecord{
			ID:             r.newID(),
			UserID:         userID,
			ActivityType:   activityType,
			Streak:         1,
			LastCompleted:  completedAt,
			TotalTimeSpent: minutes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := r.repo.Insert(ctx, record); err != nil {
			return nil, false, err
		}
		return &record, true, nil
	}

	update := ProgressUpdate{
		Streak:         existing.Streak + 1,
		TotalTimeSpent: existing.TotalTimeSpent + minutes,
		LastCompleted:  completedAt,
		UpdatedAt:      now,
	}
	if err := r.repo.UpdateFields(ctx, existing.ID, update); err != nil {
		return nil, false, err
	}

	record := *existing
	record.Streak = update.Streak
	record.TotalTimeSpent = update.TotalTimeSpent
	record.LastCompleted = update.LastCompleted
	record.UpdatedAt = update.UpdatedAt
	return &record, false, nil
}
