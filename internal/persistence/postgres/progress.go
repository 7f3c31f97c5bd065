package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/menta/internal/domain"
	"example.com/menta/internal/events"
)

const progressColumns = `progress_id, user_id, activity_type, streak, last_completed, total_time_spent, created_at, updated_at`

// ProgressRepository persists progress records.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository constructs a ProgressRepository.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// Find returns the oldest record for the pair, or (nil, nil).
func (r *ProgressRepository) Find(ctx context.Context, userID, activityType string) (*domain.ProgressRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM progress_records
          WHERE user_id=$1 AND activity_type=$2
          ORDER BY created_at, progress_id
          LIMIT 1`,
		userID, activityType,
	)
	rec, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// Insert stores a new record and its progress.recorded event.
func (r *ProgressRepository) Insert(ctx context.Context, record domain.ProgressRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertProgress(ctx, tx, record); err != nil {
		return err
	}
	if err := recordProgressEvent(ctx, tx, record, true); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateFields overwrites the rollup fields of the record. Unknown ids are ignored.
func (r *ProgressRepository) UpdateFields(ctx context.Context, id string, update domain.ProgressUpdate) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE progress_records
            SET streak=$2, total_time_spent=$3, last_completed=$4, updated_at=$5
          WHERE progress_id=$1
      RETURNING `+progressColumns,
		id, update.Streak, update.TotalTimeSpent, update.LastCompleted, update.UpdatedAt,
	)
	rec, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tx.Commit(ctx)
		}
		return err
	}
	if err := recordProgressEvent(ctx, tx, *rec, false); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Upsert increments the most recently updated record for the pair or inserts one.
// A transaction-scoped advisory lock on the pair serialises concurrent callers.
func (r *ProgressRepository) Upsert(ctx context.Context, inc domain.ProgressIncrement) (*domain.ProgressRecord, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("progress:%s:%s", inc.UserID, inc.ActivityType)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return nil, false, err
	}

	row := tx.QueryRow(ctx,
		`UPDATE progress_records
            SET streak = streak + 1,
                total_time_spent = total_time_spent + $3,
                last_completed = $4,
                updated_at = $5
          WHERE progress_id = (
                SELECT progress_id FROM progress_records
                 WHERE user_id=$1 AND activity_type=$2
                 ORDER BY updated_at DESC, progress_id DESC
                 LIMIT 1)
      RETURNING `+progressColumns,
		inc.UserID, inc.ActivityType, inc.Minutes, inc.CompletedAt, inc.Now,
	)

	created := false
	rec, err := scanProgress(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		created = true
		rec = &domain.ProgressRecord{
			ID:             inc.NewID,
			UserID:         inc.UserID,
			ActivityType:   inc.ActivityType,
			Streak:         1,
			LastCompleted:  inc.CompletedAt,
			TotalTimeSpent: inc.Minutes,
			CreatedAt:      inc.Now,
			UpdatedAt:      inc.Now,
		}
		if err := insertProgress(ctx, tx, *rec); err != nil {
			return nil, false, err
		}
	case err != nil:
		return nil, false, err
	}

	if err := recordProgressEvent(ctx, tx, *rec, created); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return rec, created, nil
}

// ListByUser returns up to limit records for the user in insertion order.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ProgressRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM progress_records
          WHERE user_id=$1
          ORDER BY created_at, progress_id
          LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ProgressRecord, 0)
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

func insertProgress(ctx context.Context, tx pgx.Tx, record domain.ProgressRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO progress_records (`+progressColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		record.ID, record.UserID, record.ActivityType, record.Streak, record.LastCompleted,
		record.TotalTimeSpent, record.CreatedAt, record.UpdatedAt,
	)
	return err
}

func recordProgressEvent(ctx context.Context, tx pgx.Tx, record domain.ProgressRecord, created bool) error {
	return insertOutbox(ctx, tx, outboxEvent{
		AggregateType: "progress",
		AggregateID:   record.ID,
		EventType:     events.TypeProgressRecorded,
		PartitionKey:  record.UserID + ":" + record.ActivityType,
		DedupeKey:     fmt.Sprintf("%s:%s:%d", record.ID, events.TypeProgressRecorded, record.Streak),
		Payload: events.ProgressRecorded{
			RecordID:       record.ID,
			UserID:         record.UserID,
			ActivityType:   record.ActivityType,
			Streak:         record.Streak,
			TotalTimeSpent: record.TotalTimeSpent,
			LastCompleted:  record.LastCompleted,
			Created:        created,
			RecordedAt:     record.UpdatedAt,
		},
	})
}

func scanProgress(row pgx.Row) (*domain.ProgressRecord, error) {
	var rec domain.ProgressRecord
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.ActivityType, &rec.Streak, &rec.LastCompleted,
		&rec.TotalTimeSpent, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.LastCompleted = rec.LastCompleted.UTC()
	return &rec, nil
}
