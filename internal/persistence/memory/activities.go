package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"example.com/menta/internal/domain"
	"example.com/menta/internal/observability"
)

// ActivityRepository stores activities in memory.
type ActivityRepository struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
}

// NewActivityRepository constructs an empty ActivityRepository.
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{activities: make(map[string]domain.Activity)}
}

// Insert implements domain.ActivityRepository.
func (r *ActivityRepository) Insert(ctx context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activities[activity.ID] = cloneActivity(activity)
	observability.RecordActivityPersisted(activity.CreatedAt)
	return nil
}

// FindByID implements domain.ActivityRepository.
func (r *ActivityRepository) FindByID(ctx context.Context, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[activityID]
	if !ok {
		return nil, nil
	}
	out := cloneActivity(activity)
	return &out, nil
}

// ListByUser implements domain.ActivityRepository.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	return r.list(func(a domain.Activity) bool { return a.UserID == userID }, cursor, limit)
}

// ListAll implements domain.ActivityRepository.
func (r *ActivityRepository) ListAll(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	return r.list(func(domain.Activity) bool { return true }, cursor, limit)
}

// AppendComment implements domain.ActivityRepository.
func (r *ActivityRepository) AppendComment(ctx context.Context, activityID string, comment domain.Comment) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[activityID]
	if !ok {
		return nil, nil
	}
	activity.Comments = append(slices.Clone(activity.Comments), comment)
	activity.UpdatedAt = comment.CreatedAt
	r.activities[activityID] = activity

	out := cloneActivity(activity)
	return &out, nil
}

func (r *ActivityRepository) list(match func(domain.Activity) bool, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]domain.Activity, 0)
	for _, activity := range r.activities {
		if !match(activity) {
			continue
		}
		if cursor != nil && !before(activity, *cursor) {
			continue
		}
		candidates = append(candidates, activity)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return before(candidates[j], domain.Cursor{CreatedAt: candidates[i].CreatedAt, ID: candidates[i].ID})
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]domain.Activity, 0, len(candidates))
	for _, activity := range candidates {
		results = append(results, cloneActivity(activity))
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// before reports whether a sorts after the cursor position in newest-first order.
func before(a domain.Activity, c domain.Cursor) bool {
	if a.CreatedAt.Equal(c.CreatedAt) {
		return a.ID < c.ID
	}
	return a.CreatedAt.Before(c.CreatedAt)
}

func cloneActivity(a domain.Activity) domain.Activity {
	a.Images = slices.Clone(a.Images)
	a.Comments = slices.Clone(a.Comments)
	return a
}
