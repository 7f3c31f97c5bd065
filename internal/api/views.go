package api

import (
	"time"

	"example.com/menta/internal/domain"
	"example.com/menta/internal/persistence"
)

// CreateActivityRequest is the payload for POST /v1/activities.
// Duration is in seconds unless duration_unit is "minutes". The lte bound
// mirrors domain.MaxDurationSeconds; the minutes cap is enforced by the domain.
type CreateActivityRequest struct {
	Title                string     `json:"title" validate:"required,max=200"`
	Description          string     `json:"description" validate:"max=5000"`
	ActivityType         string     `json:"activity_type" validate:"required,max=64"`
	Date                 string     `json:"date" validate:"required,calendar_date"`
	StartTime            string     `json:"start_time" validate:"omitempty,clock_time"`
	Duration             *int       `json:"duration" validate:"required,gte=0,lte=604800"`
	DurationUnit         string     `json:"duration_unit" validate:"omitempty,oneof=seconds minutes"`
	PrivateNotes         string     `json:"private_notes" validate:"max=5000"`
	PrivacyType          string     `json:"privacy_type" validate:"omitempty,oneof=everyone followers only_you"`
	PerceivedPerformance int        `json:"perceived_performance" validate:"gte=0,lte=10"`
	Images               []string   `json:"images" validate:"max=5,dive,url"`
	CompletedAt          *time.Time `json:"completed_at"`
}

func (r CreateActivityRequest) toInput() domain.CreateActivityInput {
	return domain.CreateActivityInput{
		Title:                r.Title,
		Description:          r.Description,
		ActivityType:         r.ActivityType,
		Date:                 r.Date,
		StartTime:            r.StartTime,
		Duration:             *r.Duration,
		DurationUnit:         domain.DurationUnit(r.DurationUnit),
		PrivateNotes:         r.PrivateNotes,
		PrivacyType:          domain.PrivacyType(r.PrivacyType),
		PerceivedPerformance: r.PerceivedPerformance,
		Images:               r.Images,
		CompletedAt:          r.CompletedAt,
	}
}

// AddCommentRequest is the payload for POST /v1/activities/{id}/comments.
type AddCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// CommentView is one comment on an activity.
type CommentView struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID           string        `json:"activity_id"`
	UserID               string        `json:"user_id"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	ActivityType         string        `json:"activity_type"`
	Date                 string        `json:"date"`
	StartTime            string        `json:"start_time"`
	EndTime              string        `json:"end_time"`
	DurationSeconds      int           `json:"duration_seconds"`
	PrivateNotes         string        `json:"private_notes,omitempty"`
	PrivacyType          string        `json:"privacy_type"`
	PerceivedPerformance int           `json:"perceived_performance"`
	Images               []string      `json:"images"`
	Comments             []CommentView `json:"comments"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ProgressSummaryView is one activity type in a progress report.
// TotalTimeSpent is in minutes.
type ProgressSummaryView struct {
	ID             string    `json:"id"`
	ActivityType   string    `json:"activity_type"`
	Streak         int       `json:"streak"`
	TotalTimeSpent int       `json:"total_time_spent"`
	LastCompleted  time.Time `json:"last_completed"`
	RecordCount    int       `json:"record_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProgressResponse is the body of GET /v1/progress/{userID}.
type ProgressResponse struct {
	UserID string                `json:"user_id"`
	Items  []ProgressSummaryView `json:"items"`
}

// CreateProfileRequest is the payload for POST /v1/users. The email claim of the
// token wins over the body when present.
type CreateProfileRequest struct {
	Email          string   `json:"email" validate:"omitempty,email"`
	FirstName      string   `json:"first_name" validate:"required,max=100"`
	LastName       string   `json:"last_name" validate:"required,max=100"`
	DOB            string   `json:"dob" validate:"omitempty,calendar_date"`
	Interests      []string `json:"interests" validate:"max=50,dive,required,max=64"`
	ProfilePicture *string  `json:"profile_picture" validate:"omitempty,url"`
	Location       *string  `json:"location" validate:"omitempty,max=200"`
	Bio            *string  `json:"bio" validate:"omitempty,max=2000"`
}

// UpdateProfileRequest is the payload for PATCH /v1/users/{id}; omitted fields are kept.
type UpdateProfileRequest struct {
	FirstName      *string   `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName       *string   `json:"last_name" validate:"omitempty,min=1,max=100"`
	DOB            *string   `json:"dob" validate:"omitempty,calendar_date"`
	Interests      *[]string `json:"interests" validate:"omitempty,max=50,dive,required,max=64"`
	ProfilePicture *string   `json:"profile_picture" validate:"omitempty,url"`
	Location       *string   `json:"location" validate:"omitempty,max=200"`
	Bio            *string   `json:"bio" validate:"omitempty,max=2000"`
	Clubs          *[]string `json:"clubs" validate:"omitempty,max=50,dive,required,max=64"`
}

func (r UpdateProfileRequest) toUpdate() domain.UserUpdate {
	return domain.UserUpdate{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		DOB:            r.DOB,
		Interests:      r.Interests,
		ProfilePicture: r.ProfilePicture,
		Location:       r.Location,
		Bio:            r.Bio,
		Clubs:          r.Clubs,
	}
}

// UserView is the public profile representation.
type UserView struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DOB            string    `json:"dob"`
	Interests      []string  `json:"interests"`
	ProfilePicture *string   `json:"profile_picture"`
	Location       *string   `json:"location"`
	Bio            *string   `json:"bio"`
	Clubs          []string  `json:"clubs"`
	Followers      []string  `json:"followers"`
	Following      []string  `json:"following"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toActivityView(a domain.Activity) ActivityView {
	comments := make([]CommentView, 0, len(a.Comments))
	for _, c := range a.Comments {
		comments = append(comments, CommentView{AuthorID: c.AuthorID, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	images := a.Images
	if images == nil {
		images = []string{}
	}
	return ActivityView{
		ActivityID:           a.ID,
		UserID:               a.UserID,
		Title:                a.Title,
		Description:          a.Description,
		ActivityType:         a.ActivityType,
		Date:                 a.Date(),
		StartTime:            a.StartedAt.Format("15:04"),
		EndTime:              a.EndedAt.Format("15:04"),
		DurationSeconds:      a.DurationSeconds,
		PrivateNotes:         a.PrivateNotes,
		PrivacyType:          string(a.PrivacyType),
		PerceivedPerformance: a.PerceivedPerformance,
		Images:               images,
		Comments:             comments,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func toListResponse(activities []domain.Activity, next *domain.Cursor) ListActivitiesResponse {
	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	return ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	}
}

func toProgressView(s domain.ProgressSummary) ProgressSummaryView {
	return ProgressSummaryView{
		ID:             s.ID,
		ActivityType:   s.ActivityType,
		Streak:         s.Streak,
		TotalTimeSpent: s.TotalTimeSpent,
		LastCompleted:  s.LastCompleted,
		RecordCount:    s.RecordCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toUserView(u domain.User) UserView {
	u.Normalize()
	return UserView{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		DOB:            u.DOB,
		Interests:      u.Interests,
		ProfilePicture: u.ProfilePicture,
		Location:       u.Location,
		Bio:            u.Bio,
		Clubs:          u.Clubs,
		Followers:      u.Followers,
		Following:      u.Following,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
