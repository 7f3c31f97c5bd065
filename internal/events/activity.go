// Package events defines the event payloads written to the outbox and published to Kafka.
package events

import "time"

// Event types carried in the outbox and in the event_type Kafka header.
const (
	TypeActivityCreated   = "activity.created"
	TypeActivityCommented = "activity.commented"
	TypeProgressRecorded  = "progress.recorded"
)

// Topics events are routed to.
const (
	TopicActivityEvents   = "activity_events"
	TopicActivityComments = "activity_comments"
	TopicProgressEvents   = "progress_events"
)

// ActivityCreated represents the message emitted when a new activity is stored.
type ActivityCreated struct {
	ActivityID      string    `json:"activity_id"`
	UserID          string    `json:"user_id"`
	ActivityType    string    `json:"activity_type"`
	Title           string    `json:"title"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int       `json:"duration_seconds"`
	PrivacyType     string    `json:"privacy_type"`
	CreatedAt       time.Time `json:"created_at"`
}

// ActivityCommented is emitted for every appended comment.
type ActivityCommented struct {
	ActivityID  string    `json:"activity_id"`
	OwnerID     string    `json:"owner_id"`
	AuthorID    string    `json:"author_id"`
	Text        string    `json:"text"`
	CommentedAt time.Time `json:"commented_at"`
}
