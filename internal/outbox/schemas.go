package outbox

import "example.com/menta/internal/events"

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "title": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"},
    "ended_at": {"type": "string", "format": "date-time"},
    "duration_seconds": {"type": "integer", "minimum": 0},
    "privacy_type": {"type": "string", "enum": ["everyone", "followers", "only_you"]},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "activity_type", "started_at", "ended_at", "duration_seconds", "privacy_type", "created_at"],
  "additionalProperties": false
}`

const activityCommentedSchema = `{
  "type": "object",
  "title": "ActivityCommented",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "author_id": {"type": "string"},
    "text": {"type": "string"},
    "commented_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "author_id", "text", "commented_at"],
  "additionalProperties": false
}`

const progressRecordedSchema = `{
  "type": "object",
  "title": "ProgressRecorded",
  "properties": {
    "record_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "streak": {"type": "integer", "minimum": 1},
    "total_time_spent": {"type": "integer", "minimum": 0},
    "last_completed": {"type": "string", "format": "date-time"},
    "created": {"type": "boolean"},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["record_id", "user_id", "activity_type", "streak", "total_time_spent", "last_completed", "created", "recorded_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityCreated:   {Schema: activityCreatedSchema},
	events.TypeActivityCommented: {Schema: activityCommentedSchema},
	events.TypeProgressRecorded:  {Schema: progressRecordedSchema},
}
