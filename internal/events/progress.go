package events

import "time"

// ProgressRecorded is emitted whenever the recorder creates or increments a progress record.
type ProgressRecorded struct {
	RecordID       string    `json:"record_id"`
	UserID         string    `json:"user_id"`
	ActivityType   string    `json:"activity_type"`
	Streak         int       `json:"streak"`
	TotalTimeSpent int       `json:"total_time_spent"`
	LastCompleted  time.Time `json:"last_completed"`
	Created        bool      `json:"created"`
	RecordedAt     time.Time `json:"recorded_at"`
}
