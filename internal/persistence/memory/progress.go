package memory

import (
	"context"
	"sync"

	"example.com/menta/internal/domain"
)

// ProgressRepository stores progress records in insertion order. Like the
// Postgres schema it does not forbid two records for one (user, activity type).
type ProgressRepository struct {
	mu      sync.RWMutex
	records []domain.ProgressRecord
}

// NewProgressRepository constructs an empty ProgressRepository.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{}
}

// Find returns the first stored record for the pair.
func (r *ProgressRepository) Find(ctx context.Context, userID, activityType string) (*domain.ProgressRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.UserID == userID && rec.ActivityType == activityType {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

// Insert implements domain.ProgressRepository.
func (r *ProgressRepository) Insert(ctx context.Context, record domain.ProgressRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)
	return nil
}

// UpdateFields implements domain.ProgressRepository. Unknown ids are ignored.
func (r *ProgressRepository) UpdateFields(ctx context.Context, id string, update domain.ProgressUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.records {
		if r.records[i].ID == id {
			r.records[i].Streak = update.Streak
			r.records[i].TotalTimeSpent = update.TotalTimeSpent
			r.records[i].LastCompleted = update.LastCompleted
			r.records[i].UpdatedAt = update.UpdatedAt
			return nil
		}
	}
	return nil
}

// Upsert increments the most recently updated record for the pair, or inserts one,
// under the repository lock.
func (r *ProgressRepository) Upsert(ctx context.Context, inc domain.ProgressIncrement) (*domain.ProgressRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, rec := range r.records {
		if rec.UserID != inc.UserID || rec.ActivityType != inc.ActivityType {
			continue
		}
		if idx == -1 || rec.UpdatedAt.After(r.records[idx].UpdatedAt) {
			idx = i
		}
	}

	if idx == -1 {
		rec := domain.ProgressRecord{
			ID:             inc.NewID,
			UserID:         inc.UserID,
			ActivityType:   inc.ActivityType,
			Streak:         1,
			LastCompleted:  inc.CompletedAt,
			TotalTimeSpent: inc.Minutes,
			CreatedAt:      inc.Now,
			UpdatedAt:      inc.Now,
		}
		r.records = append(r.records, rec)
		return &rec, true, nil
	}

	rec := &r.records[idx]
	rec.Streak++
	rec.TotalTimeSpent += inc.Minutes
	rec.LastCompleted = inc.CompletedAt
	rec.UpdatedAt = inc.Now
	out := *rec
	return &out, false, nil
}

// ListByUser implements domain.ProgressRepository.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ProgressRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ProgressRecord, 0)
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}
