package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/menta/internal/domain"
)

const userColumns = `user_id, email, first_name, last_name, dob, interests, profile_picture, location, bio,
        clubs, followers, following, created_at, updated_at`

// UserRepository persists profiles.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByEmail looks a profile up by its lower-cased email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(email)))
}

// FindByID looks a profile up by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, id)
}

// Insert stores a new profile. Unique violations map to domain errors.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	user.Normalize()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		user.ID, user.Email, user.FirstName, user.LastName, user.DOB, user.Interests,
		user.ProfilePicture, user.Location, user.Bio, user.Clubs, user.Followers, user.Following,
		user.CreatedAt, user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if pgErr.ConstraintName == "users_email_key" {
			return domain.ErrEmailTaken
		}
		return domain.ErrProfileExists
	}
	return err
}

// UpdateFields overwrites the non-nil fields of update and returns the stored profile.
func (r *UserRepository) UpdateFields(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error) {
	return r.findOne(ctx,
		`UPDATE users SET
                first_name      = COALESCE($2, first_name),
                last_name       = COALESCE($3, last_name),
                dob             = COALESCE($4, dob),
                interests       = COALESCE($5::text[], interests),
                profile_picture = COALESCE($6, profile_picture),
                location        = COALESCE($7, location),
                bio             = COALESCE($8, bio),
                clubs           = COALESCE($9::text[], clubs),
                updated_at      = $10
          WHERE user_id = $1
      RETURNING `+userColumns,
		id, update.FirstName, update.LastName, update.DOB, update.Interests,
		update.ProfilePicture, update.Location, update.Bio, update.Clubs, update.UpdatedAt,
	)
}

// SetFollow updates both sides of the follow edge in one transaction.
func (r *UserRepository) SetFollow(ctx context.Context, followerID, targetID string, follow bool) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var stmts [2]string
	if follow {
		stmts = [2]string{
			`UPDATE users SET following = array_append(following, $2), updated_at = NOW() WHERE user_id = $1 AND NOT ($2 = ANY(following))`,
			`UPDATE users SET followers = array_append(followers, $2), updated_at = NOW() WHERE user_id = $1 AND NOT ($2 = ANY(followers))`,
		}
	} else {
		stmts = [2]string{
			`UPDATE users SET following = array_remove(following, $2), updated_at = NOW() WHERE user_id = $1`,
			`UPDATE users SET followers = array_remove(followers, $2), updated_at = NOW() WHERE user_id = $1`,
		}
	}

	if _, err := tx.Exec(ctx, stmts[0], followerID, targetID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, stmts[1], targetID, followerID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.DOB, &u.Interests, &u.ProfilePicture, &u.Location, &u.Bio,
		&u.Clubs, &u.Followers, &u.Following, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Normalize()
	return &u, nil
}
