package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"example.com/menta/internal/observability"
)

// DefaultProgressFetchLimit caps how many records Aggregate reads per user.
const DefaultProgressFetchLimit = 100

// ProgressAggregator answers "what is this user's progress per activity type".
type ProgressAggregator struct {
	repo  ProgressRepository
	limit int
	now   func() time.Time
	newID func() string
}

// NewProgressAggregator constructs a ProgressAggregator. A non-positive limit
// falls back to DefaultProgressFetchLimit.
func NewProgressAggregator(repo ProgressRepository, limit int) *ProgressAggregator {
	if limit <= 0 {
		limit = DefaultProgressFetchLimit
	}
	return &ProgressAggregator{
		repo:  repo,
		limit: limit,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Aggregate reads up to the fetch limit of the user's progress records and reduces
// them to one summary per activity type. Unknown users yield an empty slice.
func (a *ProgressAggregator) Aggregate(ctx context.Context, userID string) ([]ProgressSummary, error) {
	start := time.Now()

	records, err := a.repo.ListByUser(ctx, userID, a.limit)
	if err != nil {
		return nil, err
	}

	summaries := ReduceProgress(records, a.now(), a.newID)
	observability.RecordAggregation(time.Since(start), len(records), len(summaries))
	return summaries, nil
}

// ReduceProgress groups records by activity type taking the max streak, the sum of
// time spent and the latest completion. Duplicate records for one type are folded
// rather than rejected, so their time is counted once per record. Output is sorted
// by activity type.
func ReduceProgress(records []ProgressRecord, now time.Time, newID func() string) []ProgressSummary {
	groups := make(map[string]*ProgressSummary)
	order := make([]string, 0)

	for _, rec := range records {
		summary, ok := groups[rec.ActivityType]
		if !ok {
			summary = &ProgressSummary{
				UserID:        rec.UserID,
				ActivityType:  rec.ActivityType,
				Streak:        rec.Streak,
				LastCompleted: rec.LastCompleted,
			}
			groups[rec.ActivityType] = summary
			order = append(order, rec.ActivityType)
		}
		if rec.Streak > summary.Streak {
			summary.Streak = rec.Streak
		}
		if rec.LastCompleted.After(summary.LastCompleted) {
			summary.LastCompleted = rec.LastCompleted
		}
		summary.TotalTimeSpent += rec.TotalTimeSpent
		summary.RecordCount++
	}

	sort.Strings(order)
	out := make([]ProgressSummary, 0, len(order))
	for _, activityType := range order {
		summary := groups[activityType]
		summary.ID = newID()
		summary.CreatedAt = now
		summary.UpdatedAt = now
		out = append(out, *summary)
	}
	return out
}
