package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"example.com/menta/internal/auth"
	"example.com/menta/internal/domain"
	"example.com/menta/internal/persistence/memory"
)

var testAuth = auth.Config{Secret: "test-secret", Issuer: "menta.identity"}

type testServer struct {
	handler  http.Handler
	progress domain.ProgressRepository
}

func newTestServer(t *testing.T, progress domain.ProgressRepository, cfg RouterConfig) testServer {
	t.Helper()
	if progress == nil {
		progress = memory.NewProgressRepository()
	}
	recorder := domain.NewProgressRecorder(progress)
	h := NewHandler(
		domain.NewActivityService(memory.NewActivityRepository(), recorder),
		domain.NewProgressAggregator(progress, domain.DefaultProgressFetchLimit),
		domain.NewUserService(memory.NewUserRepository()),
	)
	return testServer{handler: NewRouter(cfg, h, auth.NewMiddleware(testAuth)), progress: progress}
}

func bearer(t *testing.T, subject string, scopes ...string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    subject,
		"email":  subject + "@example.com",
		"iss":    testAuth.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": scopes,
	}).SignedString([]byte(testAuth.Secret))
	require.NoError(t, err)
	return "Bearer " + token
}

func (s testServer) do(t *testing.T, method, path, authz string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func activityBody(activityType string, seconds int) map[string]any {
	return map[string]any{
		"title":         "Morning " + activityType,
		"activity_type": activityType,
		"date":          "2025-03-14",
		"start_time":    "07:30",
		"duration":      seconds,
		"privacy_type":  "followers",
	}
}

func TestHealthzAndMetricsArePublic(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{})

	rr := srv.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthErrors(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{})

	rr := srv.do(t, http.MethodPost, "/v1/activities", "", activityBody("running", 1800))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(t, http.MethodPost, "/v1/activities", bearer(t, "user-1", auth.ScopeActivitiesRead), activityBody("running", 1800))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", decode[map[string]string](t, rr)["type"])

	rr = srv.do(t, http.MethodGet, "/v1/progress/user-1", bearer(t, "user-1", auth.ScopeActivitiesRead), nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreateActivityFeedsProgress(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{})
	writer := bearer(t, "user-1", auth.ScopeActivitiesWrite)

	rr := srv.do(t, http.MethodPost, "/v1/activities", writer, activityBody("running", 1800))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	view := decode[ActivityView](t, rr)
	require.Equal(t, "user-1", view.UserID)
	require.Equal(t, "2025-03-14", view.Date)
	require.Equal(t, "07:30", view.StartTime)
	require.Equal(t, "08:00", view.EndTime)
	require.Equal(t, "followers", view.PrivacyType)
	require.Empty(t, view.Comments)

	legacy := activityBody("running", 45)
	legacy["duration_unit"] = "minutes"
	rr = srv.do(t, http.MethodPost, "/v1/activities", writer, legacy)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPost, "/v1/activities", writer, activityBody("yoga", 59))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodGet, "/v1/progress/user-1", bearer(t, "someone-else", auth.ScopeProgressRead), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	report := decode[ProgressResponse](t, rr)
	require.Equal(t, "user-1", report.UserID)
	require.Len(t, report.Items, 2)

	running := report.Items[0]
	require.Equal(t, "running", running.ActivityType)
	require.Equal(t, 2, running.Streak)
	require.Equal(t, 75, running.TotalTimeSpent)
	require.Equal(t, 1, running.RecordCount)

	yoga := report.Items[1]
	require.Equal(t, "yoga", yoga.ActivityType)
	require.Equal(t, 1, yoga.Streak)
	require.Equal(t, 0, yoga.TotalTimeSpent)
}

func TestProgressForUnknownUserIsEmpty(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{})

	rr := srv.do(t, http.MethodGet, "/v1/progress/nobody", bearer(t, "user-1", auth.ScopeProgressRead), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"user_id":"nobody","items":[]}`, rr.Body.String())
}

func TestCreateActivityValidation(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{})
	writer := bearer(t, "user-1", auth.ScopeActivitiesWrite)

	cases := map[string]func(map[string]any){
		"missing title":      func(b map[string]any) { delete(b, "title") },
		"bad date":           func(b map[string]any) { b["date"] = "14/03/2025" },
		"bad start":          func(b map[string]any) { b["start_time"] = "7h30" },
		"negative duration":  func(b map[string]any) { b["duration"] = -1 },
		"missing duration":   func(b map[string]any) { delete(b, "duration") },
		"oversized duration": func(b map[string]any) { b["duration"] = 20_000_000_000 },
		"unknown unit":       func(b map[string]any) { b["duration_unit"] = "hours" },
		"unknown privacy":    func(b map[string]any) { b["privacy_type"] = "friends" },
		"oversized minutes": func(b map[string]any) {
			b["duration"] = 1 << 60
			b["duration_unit"] = "minutes"
		},
		"minutes over cap": func(b map[string]any) {
			b["duration"] = domain.MaxDurationSeconds/60 + 1
			b["duration_unit"] = "minutes"
		},
		"too many images": func(b map[string]any) {
			b["images"] = []string{"https://a/1", "https://a/2", "https://a/3", "https://a/4", "https://a/5", "https://a/6"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := activityBody("running", 60)
			mutate(body)
			rr := srv.do(t, http.MethodPost, "/v1/activities", writer, body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			require.Equal(t, "validation_failed", decode[map[string]string](t, rr)["type"])
		})
	}

	rr := srv.do(t, http.MethodGet, "/v1/progress/user-1", bearer(t, "user-1", auth.ScopeProgressRead), nil)
	require.JSONEq(t, `{"user_id":"user-1","items":[]}`, rr.Body.String())

	rr = srv.do(t, http.MethodGet, "/v1/activities?user_id=user-1", bearer(t, "user-1", auth.ScopeActivitiesRead), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decode[ListActivitiesResponse](t, rr).Items)
}

func TestCreateActivityProgressFailure(t *testing.T) {
	srv := newTestServer(t, failingProgressRepo{}, RouterConfig{})

	rr := srv.do(t, http.MethodPost, "/v1/activities", bearer(t, "user-1", auth.ScopeActivitiesWrite), activityBody("running", 600))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "progress_not_recorded", decode[map[string]string](t, rr)["type"])

	rr = srv.do(t, http.MethodGet, "/v1/activities?user_id=user-1", bearer(t, "user-1", auth.ScopeActivitiesRead), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ListActivitiesResponse](t, rr).Items, 1)
}

func TestGetActivityAndComments(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{})
	writer := bearer(t, "user-1", auth.ScopeActivitiesWrite)

	rr := srv.do(t, http.MethodGet, "/v1/activities/missing", writer, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodPost, "/v1/activities/missing/comments", writer, map[string]string{"text": "nice"})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodPost, "/v1/activities", writer, activityBody("cycling", 3600))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[ActivityView](t, rr).ActivityID

	rr = srv.do(t, http.MethodPost, "/v1/activities/"+id+"/comments", bearer(t, "user-2", auth.ScopeActivitiesWrite), map[string]string{"text": "  great ride  "})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	view := decode[ActivityView](t, rr)
	require.Len(t, view.Comments, 1)
	require.Equal(t, "user-2", view.Comments[0].AuthorID)
	require.Equal(t, "great ride", view.Comments[0].Text)

	rr = srv.do(t, http.MethodPost, "/v1/activities/"+id+"/comments", writer, map[string]string{"text": "   "})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/v1/activities/"+id, bearer(t, "user-3", auth.ScopeActivitiesRead), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ActivityView](t, rr).Comments, 1)
}

func TestFeedPagination(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{})

	for _, user := range []string{"user-1", "user-2", "user-3"} {
		rr := srv.do(t, http.MethodPost, "/v1/activities", bearer(t, user, auth.ScopeActivitiesWrite), activityBody("swimming", 900))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	reader := bearer(t, "user-1", auth.ScopeActivitiesRead)
	rr := srv.do(t, http.MethodGet, "/v1/feed?limit=2", reader, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	first := decode[ListActivitiesResponse](t, rr)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	rr = srv.do(t, http.MethodGet, "/v1/feed?limit=2&cursor="+first.NextCursor, reader, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[ListActivitiesResponse](t, rr)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	seen := map[string]bool{}
	for _, item := range append(first.Items, second.Items...) {
		seen[item.UserID] = true
	}
	require.Len(t, seen, 3)

	rr = srv.do(t, http.MethodGet, "/v1/feed?cursor=bm90LWEtY3Vyc29y", reader, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProfiles(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{})
	alice := bearer(t, "alice", auth.ScopeProfileRead, auth.ScopeProfileWrite)
	bob := bearer(t, "bob", auth.ScopeProfileRead, auth.ScopeProfileWrite)

	rr := srv.do(t, http.MethodGet, "/v1/users/me", alice, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	profile := map[string]any{"first_name": "Alice", "last_name": "Liddell", "dob": "1990-05-04", "interests": []string{"running"}}
	rr = srv.do(t, http.MethodPost, "/v1/users", alice, profile)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "alice@example.com", decode[UserView](t, rr).Email)

	rr = srv.do(t, http.MethodPost, "/v1/users", alice, profile)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(t, http.MethodPost, "/v1/users", bob, map[string]any{"first_name": "Bob", "last_name": "Builder"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPatch, "/v1/users/bob", alice, map[string]any{"bio": "hijack"})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = srv.do(t, http.MethodPatch, "/v1/users/alice", alice, map[string]any{"bio": "runner"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[UserView](t, rr)
	require.NotNil(t, updated.Bio)
	require.Equal(t, "runner", *updated.Bio)
	require.Equal(t, "Alice", updated.FirstName)

	rr = srv.do(t, http.MethodPost, "/v1/users/bob/follow", alice, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = srv.do(t, http.MethodGet, "/v1/users/bob", alice, nil)
	require.Equal(t, []string{"alice"}, decode[UserView](t, rr).Followers)

	rr = srv.do(t, http.MethodPost, "/v1/users/alice/follow", alice, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodPost, "/v1/users/ghost/follow", alice, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodDelete, "/v1/users/bob/follow", alice, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = srv.do(t, http.MethodGet, "/v1/users/me", alice, nil)
	require.Empty(t, decode[UserView](t, rr).Following)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, nil, RouterConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute})

	rr := srv.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

type failingProgressRepo struct{}

var errProgressStore = errors.New("progress store unavailable")

func (failingProgressRepo) Find(context.Context, string, string) (*domain.ProgressRecord, error) {
	return nil, errProgressStore
}

func (failingProgressRepo) Insert(context.Context, domain.ProgressRecord) error {
	return errProgressStore
}

func (failingProgressRepo) UpdateFields(context.Context, string, domain.ProgressUpdate) error {
	return errProgressStore
}

func (failingProgressRepo) Upsert(context.Context, domain.ProgressIncrement) (*domain.ProgressRecord, bool, error) {
	return nil, false, errProgressStore
}

func (failingProgressRepo) ListByUser(context.Context, string, int) ([]domain.ProgressRecord, error) {
	return nil, errProgressStore
}
