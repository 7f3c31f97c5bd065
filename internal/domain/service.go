// Package domain defines the business logic for activities, profiles and progress.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrUserNotFound is returned when a profile cannot be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrProfileExists is returned when the caller already has a profile.
	ErrProfileExists = errors.New("profile already exists")
	// ErrEmailTaken is returned when another profile owns the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidDuration is returned for negative durations or unknown units.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidSchedule is returned when date or start time cannot be parsed.
	ErrInvalidSchedule = errors.New("invalid activity date or start time")
	// ErrEmptyComment is returned for blank comment text.
	ErrEmptyComment = errors.New("comment text is required")
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrProgressNotRecorded wraps recorder failures after the activity was stored.
	ErrProgressNotRecorded = errors.New("activity stored but progress not recorded")
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// ActivityService orchestrates activity workflows and feeds the progress recorder.
type ActivityService struct {
	repo     ActivityRepository
	recorder *ProgressRecorder
	now      func() time.Time
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo ActivityRepository, recorder *ProgressRecorder) *ActivityService {
	return &ActivityService{
		repo:     repo,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	Title                string
	Description          string
	ActivityType         string
	Date                 string // YYYY-MM-DD
	StartTime            string // HH:MM, UTC
	Duration             int
	DurationUnit         DurationUnit
	PrivateNotes         string
	PrivacyType          PrivacyType
	PerceivedPerformance int
	Images               []string
	CompletedAt          *time.Time // nil means now
}

// CreateActivity stores the activity and then records progress for its owner.
// A progress failure leaves the activity in place and is returned wrapped in
// ErrProgressNotRecorded together with the stored activity.
func (s *ActivityService) CreateActivity(ctx context.Context, input CreateActivityInput, ownerID string) (*Activity, error) {
	seconds, err := input.DurationUnit.ToSeconds(input.Duration)
	if err != nil {
		return nil, err
	}

	startedAt, err := parseStart(input.Date, input.StartTime)
	if err != nil {
		return nil, err
	}

	privacy := input.PrivacyType
	if privacy == "" {
		privacy = PrivacyEveryone
	}

	images := input.Images
	if images == nil {
		images = []string{}
	}

	now := s.now()
	activity := Activity{
		ID:                   uuid.NewString(),
		UserID:               ownerID,
		Title:                input.Title,
		Description:          input.Description,
		ActivityType:         input.ActivityType,
		StartedAt:            startedAt,
		EndedAt:              startedAt.Add(time.Duration(seconds) * time.Second),
		DurationSeconds:      seconds,
		PrivateNotes:         input.PrivateNotes,
		PrivacyType:          privacy,
		PerceivedPerformance: input.PerceivedPerformance,
		Images:               images,
		Comments:             []Comment{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Insert(ctx, activity); err != nil {
		return nil, err
	}

	completedAt := now
	if input.CompletedAt != nil {
		completedAt = input.CompletedAt.UTC()
	}
	if _, err := s.recorder.Record(ctx, RecordInput{
		UserID:       ownerID,
		ActivityType: activity.ActivityType,
		Duration:     seconds,
		Unit:         DurationSeconds,
		CompletedAt:  completedAt,
	}); err != nil {
		return &activity, fmt.Errorf("%w: activity %s: %w", ErrProgressNotRecorded, activity.ID, err)
	}

	return &activity, nil
}

// GetActivity fetches by ID.
func (s *ActivityService) GetActivity(ctx context.Context, activityID string) (*Activity, error) {
	activity, err := s.repo.FindByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListActivitiesByUser fetches a user's activities newest first with cursor pagination.
func (s *ActivityService) ListActivitiesByUser(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.repo.ListByUser(ctx, userID, cursor, limit)
}

// Feed lists every activity newest first. Privacy is not filtered.
func (s *ActivityService) Feed(ctx context.Context, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.repo.ListAll(ctx, cursor, limit)
}

// AddComment appends a comment and returns the updated activity, or (nil, nil)
// when the activity does not exist.
func (s *ActivityService) AddComment(ctx context.Context, activityID, authorID, text string) (*Activity, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	return s.repo.AppendComment(ctx, activityID, Comment{
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: s.now(),
	})
}

func parseStart(date, start string) (time.Time, error) {
	if start == "" {
		t, err := time.ParseInLocation(dateLayout, date, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		return t, nil
	}
	t, err := time.ParseInLocation(dateTimeLayout, date+" "+start, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return t, nil
}
