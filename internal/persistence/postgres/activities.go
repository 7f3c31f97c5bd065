// Package postgres provides pgx-backed repositories and the transactional outbox writer.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/menta/internal/domain"
	"example.com/menta/internal/events"
	"example.com/menta/internal/observability"
)

const activityColumns = `activity_id, user_id, title, description, activity_type, started_at, ended_at, duration_seconds,
        private_notes, privacy_type, perceived_performance, images, comments, created_at, updated_at`

// ActivityRepository persists activities and records their outbox events.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Insert persists the activity and its activity.created event inside a single transaction.
func (r *ActivityRepository) Insert(ctx context.Context, activity domain.Activity) error {
	comments, err := json.Marshal(nonNilComments(activity.Comments))
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	if _, err := tx.Exec(ctx, stmt,
		activity.ID,
		activity.UserID,
		activity.Title,
		activity.Description,
		activity.ActivityType,
		activity.StartedAt,
		activity.EndedAt,
		activity.DurationSeconds,
		activity.PrivateNotes,
		string(activity.PrivacyType),
		activity.PerceivedPerformance,
		nonNilStrings(activity.Images),
		comments,
		activity.CreatedAt,
		activity.UpdatedAt,
	); err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, outboxEvent{
		AggregateType: "activity",
		AggregateID:   activity.ID,
		EventType:     events.TypeActivityCreated,
		PartitionKey:  activity.UserID,
		DedupeKey:     fmt.Sprintf("%s:%s", activity.ID, events.TypeActivityCreated),
		Payload: events.ActivityCreated{
			ActivityID:      activity.ID,
			UserID:          activity.UserID,
			ActivityType:    activity.ActivityType,
			Title:           activity.Title,
			StartedAt:       activity.StartedAt,
			EndedAt:         activity.EndedAt,
			DurationSeconds: activity.DurationSeconds,
			PrivacyType:     string(activity.PrivacyType),
			CreatedAt:       activity.CreatedAt,
		},
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.CreatedAt)
	return nil
}

// FindByID retrieves an activity by ID.
func (r *ActivityRepository) FindByID(ctx context.Context, activityID string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1`, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// ListByUser returns a user's activities newest first.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []any{limit, userID}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$2`
	if cursor != nil {
		query += ` AND (created_at, activity_id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, activity_id DESC LIMIT $1`
	return r.list(ctx, query, args, limit)
}

// ListAll returns every activity newest first.
func (r *ActivityRepository) ListAll(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []any{limit}
	query := `SELECT ` + activityColumns + ` FROM activities`
	if cursor != nil {
		query += ` WHERE (created_at, activity_id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, activity_id DESC LIMIT $1`
	return r.list(ctx, query, args, limit)
}

// AppendComment pushes the comment onto the activity in one statement and records an
// activity.commented event. A missing activity yields (nil, nil).
func (r *ActivityRepository) AppendComment(ctx context.Context, activityID string, comment domain.Comment) (*domain.Activity, error) {
	body, err := json.Marshal([]domain.Comment{comment})
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE activities SET comments = comments || $2::jsonb, updated_at = $3
          WHERE activity_id = $1
      RETURNING `+activityColumns,
		activityID, body, comment.CreatedAt,
	)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := insertOutbox(ctx, tx, outboxEvent{
		AggregateType: "activity",
		AggregateID:   activity.ID,
		EventType:     events.TypeActivityCommented,
		PartitionKey:  activity.ID,
		DedupeKey:     fmt.Sprintf("%s:%s:%d", activity.ID, events.TypeActivityCommented, len(activity.Comments)),
		Payload: events.ActivityCommented{
			ActivityID:  activity.ID,
			OwnerID:     activity.UserID,
			AuthorID:    comment.AuthorID,
			Text:        comment.Text,
			CommentedAt: comment.CreatedAt,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return activity, nil
}

func (r *ActivityRepository) list(ctx context.Context, query string, args []any, limit int) ([]domain.Activity, *domain.Cursor, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var (
		a        domain.Activity
		privacy  string
		comments []byte
	)
	if err := row.Scan(
		&a.ID, &a.UserID, &a.Title, &a.Description, &a.ActivityType, &a.StartedAt, &a.EndedAt, &a.DurationSeconds,
		&a.PrivateNotes, &privacy, &a.PerceivedPerformance, &a.Images, &comments, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.PrivacyType = domain.PrivacyType(privacy)
	if err := json.Unmarshal(comments, &a.Comments); err != nil {
		return nil, fmt.Errorf("decode comments for activity %s: %w", a.ID, err)
	}
	a.Images = nonNilStrings(a.Images)
	a.Comments = nonNilComments(a.Comments)
	a.StartedAt = a.StartedAt.UTC()
	a.EndedAt = a.EndedAt.UTC()
	return &a, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilComments(values []domain.Comment) []domain.Comment {
	if values == nil {
		return []domain.Comment{}
	}
	return values
}
