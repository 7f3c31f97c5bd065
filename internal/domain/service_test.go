package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/menta/internal/domain"
	"example.com/menta/internal/persistence/memory"
)

type failingActivityRepo struct {
	*memory.ActivityRepository
	err error
}

func (f *failingActivityRepo) Insert(ctx context.Context, activity domain.Activity) error {
	return f.err
}

type countingProgressRepo struct {
	*memory.ProgressRepository
	calls   int
	failErr error
}

func (c *countingProgressRepo) Upsert(ctx context.Context, inc domain.ProgressIncrement) (*domain.ProgressRecord, bool, error) {
	c.calls++
	if c.failErr != nil {
		return nil, false, c.failErr
	}
	return c.ProgressRepository.Upsert(ctx, inc)
}

func newActivityService(activities domain.ActivityRepository, progress domain.ProgressRepository) *domain.ActivityService {
	return domain.NewActivityService(activities, domain.NewProgressRecorder(progress))
}

func TestCreateActivityDerivesEndTimeAndRecordsProgress(t *testing.T) {
	ctx := context.Background()
	activities := memory.NewActivityRepository()
	progress := memory.NewProgressRepository()
	svc := newActivityService(activities, progress)

	activity, err := svc.CreateActivity(ctx, domain.CreateActivityInput{
		Title:        "Morning run",
		ActivityType: "running",
		Date:         "2025-06-14",
		StartTime:    "07:15",
		Duration:     1800,
	}, "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", activity.UserID)
	require.Equal(t, "2025-06-14", activity.Date())
	require.Equal(t, time.Date(2025, time.June, 14, 7, 45, 0, 0, time.UTC), activity.EndedAt)
	require.Equal(t, domain.PrivacyEveryone, activity.PrivacyType)
	require.NotNil(t, activity.Comments)

	stored, err := activities.FindByID(ctx, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	rec, err := progress.Find(ctx, "u1", "running")
	require.NoError(t, err)
	require.Equal(t, 1, rec.Streak)
	require.Equal(t, 30, rec.TotalTimeSpent)
}

func TestCreateActivityLegacyMinutes(t *testing.T) {
	svc := newActivityService(memory.NewActivityRepository(), memory.NewProgressRepository())

	activity, err := svc.CreateActivity(context.Background(), domain.CreateActivityInput{
		ActivityType: "reading",
		Date:         "2025-06-14",
		StartTime:    "20:00",
		Duration:     25,
		DurationUnit: domain.DurationMinutes,
	}, "u1")
	require.NoError(t, err)
	require.Equal(t, 1500, activity.DurationSeconds)
	require.Equal(t, "20:25", activity.EndedAt.Format("15:04"))
}

func TestCreateActivityEndTimeWrapsMidnight(t *testing.T) {
	svc := newActivityService(memory.NewActivityRepository(), memory.NewProgressRepository())

	activity, err := svc.CreateActivity(context.Background(), domain.CreateActivityInput{
		ActivityType: "gaming",
		Date:         "2025-06-14",
		StartTime:    "23:30",
		Duration:     3600,
	}, "u1")
	require.NoError(t, err)
	require.Equal(t, "00:30", activity.EndedAt.Format("15:04"))
	require.Equal(t, "2025-06-15", activity.EndedAt.Format("2006-01-02"))
	require.Equal(t, "2025-06-14", activity.Date())
}

func TestCreateActivityInsertFailureSkipsProgress(t *testing.T) {
	storeErr := errors.New("disk full")
	progress := &countingProgressRepo{ProgressRepository: memory.NewProgressRepository()}
	svc := newActivityService(&failingActivityRepo{ActivityRepository: memory.NewActivityRepository(), err: storeErr}, progress)

	_, err := svc.CreateActivity(context.Background(), domain.CreateActivityInput{ActivityType: "running", Date: "2025-06-14", StartTime: "07:00", Duration: 60}, "u1")
	require.ErrorIs(t, err, storeErr)
	require.Zero(t, progress.calls)
}

func TestCreateActivityProgressFailureKeepsActivity(t *testing.T) {
	ctx := context.Background()
	progressErr := errors.New("progress store down")
	activities := memory.NewActivityRepository()
	progress := &countingProgressRepo{ProgressRepository: memory.NewProgressRepository(), failErr: progressErr}
	svc := newActivityService(activities, progress)

	activity, err := svc.CreateActivity(ctx, domain.CreateActivityInput{ActivityType: "running", Date: "2025-06-14", StartTime: "07:00", Duration: 60}, "u1")
	require.ErrorIs(t, err, domain.ErrProgressNotRecorded)
	require.ErrorIs(t, err, progressErr)
	require.NotNil(t, activity)
	require.Equal(t, 1, progress.calls)

	stored, err := activities.FindByID(ctx, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestCreateActivityRejectsBadInput(t *testing.T) {
	svc := newActivityService(memory.NewActivityRepository(), memory.NewProgressRepository())

	_, err := svc.CreateActivity(context.Background(), domain.CreateActivityInput{ActivityType: "running", Date: "14/06/2025", StartTime: "07:00"}, "u1")
	require.ErrorIs(t, err, domain.ErrInvalidSchedule)

	_, err = svc.CreateActivity(context.Background(), domain.CreateActivityInput{ActivityType: "running", Date: "2025-06-14", StartTime: "07:00", Duration: -5}, "u1")
	require.ErrorIs(t, err, domain.ErrInvalidDuration)
}

func TestCreateActivityRejectsOversizedDurationBeforeStoring(t *testing.T) {
	cases := map[string]domain.CreateActivityInput{
		"seconds": {ActivityType: "running", Date: "2025-06-14", StartTime: "07:00", Duration: 20_000_000_000},
		"minutes": {ActivityType: "running", Date: "2025-06-14", StartTime: "07:00", Duration: 1 << 60, DurationUnit: domain.DurationMinutes},
		"minutes just over cap": {ActivityType: "running", Date: "2025-06-14", StartTime: "07:00", Duration: domain.MaxDurationSeconds/60 + 1, DurationUnit: domain.DurationMinutes},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			activities := memory.NewActivityRepository()
			progress := &countingProgressRepo{ProgressRepository: memory.NewProgressRepository()}
			svc := newActivityService(activities, progress)

			activity, err := svc.CreateActivity(ctx, input, "u1")
			require.ErrorIs(t, err, domain.ErrInvalidDuration)
			require.NotErrorIs(t, err, domain.ErrProgressNotRecorded)
			require.Nil(t, activity)
			require.Zero(t, progress.calls)

			stored, _, err := activities.ListAll(ctx, nil, 10)
			require.NoError(t, err)
			require.Empty(t, stored)
		})
	}
}

func TestCreateActivityAcceptsDurationAtCap(t *testing.T) {
	svc := newActivityService(memory.NewActivityRepository(), memory.NewProgressRepository())

	activity, err := svc.CreateActivity(context.Background(), domain.CreateActivityInput{
		ActivityType: "running",
		Date:         "2025-06-14",
		StartTime:    "00:00",
		Duration:     domain.MaxDurationSeconds / 60,
		DurationUnit: domain.DurationMinutes,
	}, "u1")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.June, 21, 0, 0, 0, 0, time.UTC), activity.EndedAt)
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	svc := newActivityService(memory.NewActivityRepository(), memory.NewProgressRepository())

	missing, err := svc.AddComment(ctx, "does-not-exist", "u2", "nice")
	require.NoError(t, err)
	require.Nil(t, missing)

	activity, err := svc.CreateActivity(ctx, domain.CreateActivityInput{ActivityType: "running", Date: "2025-06-14", StartTime: "07:00", Duration: 60}, "u1")
	require.NoError(t, err)

	updated, err := svc.AddComment(ctx, activity.ID, "u2", "  great pace  ")
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)
	require.Equal(t, "u2", updated.Comments[0].AuthorID)
	require.Equal(t, "great pace", updated.Comments[0].Text)
	require.False(t, updated.Comments[0].CreatedAt.IsZero())

	_, err = svc.AddComment(ctx, activity.ID, "u2", "   ")
	require.ErrorIs(t, err, domain.ErrEmptyComment)
}

func TestGetActivityNotFound(t *testing.T) {
	svc := newActivityService(memory.NewActivityRepository(), memory.NewProgressRepository())
	_, err := svc.GetActivity(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
}

func TestFeedPagination(t *testing.T) {
	ctx := context.Background()
	svc := newActivityService(memory.NewActivityRepository(), memory.NewProgressRepository())
	for _, owner := range []string{"u1", "u2", "u1"} {
		_, err := svc.CreateActivity(ctx, domain.CreateActivityInput{ActivityType: "running", Date: "2025-06-14", StartTime: "07:00", Duration: 60}, owner)
		require.NoError(t, err)
	}

	page, next, err := svc.Feed(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)

	rest, next, err := svc.Feed(ctx, next, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Nil(t, next)

	mine, _, err := svc.ListActivitiesByUser(ctx, "u1", nil, 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
}
