package domain

import (
	"context"
	"time"
)

// PrivacyType classifies who may see an activity. It is stored but not enforced on reads.
type PrivacyType string

const (
	PrivacyEveryone  PrivacyType = "everyone"
	PrivacyFollowers PrivacyType = "followers"
	PrivacyOnlyYou   PrivacyType = "only_you"
)

// Activity is a single logged workout or study session.
type Activity struct {
	ID                   string
	UserID               string
	Title                string
	Description          string
	ActivityType         string
	StartedAt            time.Time
	EndedAt              time.Time
	DurationSeconds      int
	PrivateNotes         string
	PrivacyType          PrivacyType
	PerceivedPerformance int
	Images               []string
	Comments             []Comment
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Date is the calendar date the activity started on.
func (a Activity) Date() string {
	return a.StartedAt.Format("2006-01-02")
}

// Comment is appended to an activity; comments are never edited or removed.
type Comment struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Cursor models the pagination token for newest-first activity listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ActivityRepository captures activity persistence operations.
// Lookups that miss return (nil, nil).
type ActivityRepository interface {
	Insert(ctx context.Context, activity Activity) error
	FindByID(ctx context.Context, activityID string) (*Activity, error)
	ListByUser(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	ListAll(ctx context.Context, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	AppendComment(ctx context.Context, activityID string, comment Comment) (*Activity, error)
}

// DurationUnit names the unit a caller reports activity duration in.
type DurationUnit string

const (
	DurationSeconds DurationUnit = "seconds"
	DurationMinutes DurationUnit = "minutes"
)

// MaxDurationSeconds bounds a single activity to one week.
const MaxDurationSeconds = 7 * 24 * 60 * 60

// ToSeconds converts value to seconds. An empty unit means seconds. Values
// outside [0, MaxDurationSeconds] after conversion are rejected.
func (u DurationUnit) ToSeconds(value int) (int, error) {
	if value < 0 {
		return 0, ErrInvalidDuration
	}
	switch u {
	case "", DurationSeconds:
		if value > MaxDurationSeconds {
			return 0, ErrInvalidDuration
		}
		return value, nil
	case DurationMinutes:
		if value > MaxDurationSeconds/60 {
			return 0, ErrInvalidDuration
		}
		return value * 60, nil
	default:
		return 0, ErrInvalidDuration
	}
}

// ToMinutes converts value to whole minutes, flooring seconds.
func (u DurationUnit) ToMinutes(value int) (int, error) {
	seconds, err := u.ToSeconds(value)
	if err != nil {
		return 0, err
	}
	switch u {
	case "", DurationSeconds:
		return seconds / 60, nil
	case DurationMinutes:
		return value, nil
	default:
		return 0, ErrInvalidDuration
	}
}
