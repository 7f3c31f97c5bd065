package domain

import (
	"context"
	"strings"
	"time"
)

// User is the profile of an authenticated identity. Credentials live with the
// identity provider and are not stored here.
type User struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	DOB            string
	Interests      []string
	ProfilePicture *string
	Location       *string
	Bio            *string
	Clubs          []string
	Followers      []string
	Following      []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Normalize fills optional list fields with empty slices.
func (u *User) Normalize() {
	if u.Interests == nil {
		u.Interests = []string{}
	}
	if u.Clubs == nil {
		u.Clubs = []string{}
	}
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}
}

// UserUpdate lists profile fields to overwrite; nil fields are left untouched.
type UserUpdate struct {
	FirstName      *string
	LastName       *string
	DOB            *string
	Interests      *[]string
	ProfilePicture *string
	Location       *string
	Bio            *string
	Clubs          *[]string
	UpdatedAt      time.Time
}

// UserRepository captures identity store operations. Lookups that miss return (nil, nil).
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Insert(ctx context.Context, user User) error
	UpdateFields(ctx context.Context, id string, update UserUpdate) (*User, error)
	// SetFollow adds or removes targetID from followerID's following list and
	// followerID from targetID's followers list.
	SetFollow(ctx context.Context, followerID, targetID string, follow bool) error
}

// UserService orchestrates profile workflows.
type UserService struct {
	repo UserRepository
	now  func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// CreateProfileInput is the profile of an identity that has already been authenticated.
type CreateProfileInput struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	DOB            string
	Interests      []string
	ProfilePicture *string
	Location       *string
	Bio            *string
}

// CreateProfile stores the profile for an authenticated identity.
func (s *UserService) CreateProfile(ctx context.Context, input CreateProfileInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	existing, err := s.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrProfileExists
	}

	byEmail, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if byEmail != nil {
		return nil, ErrEmailTaken
	}

	now := s.now()
	user := User{
		ID:             input.ID,
		Email:          email,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		DOB:            input.DOB,
		Interests:      input.Interests,
		ProfilePicture: input.ProfilePicture,
		Location:       input.Location,
		Bio:            input.Bio,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	user.Normalize()

	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser fetches by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile applies a partial update.
func (s *UserService) UpdateProfile(ctx context.Context, id string, update UserUpdate) (*User, error) {
	update.UpdatedAt = s.now()
	user, err := s.repo.UpdateFields(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Follow makes followerID follow targetID. Following twice is a no-op.
func (s *UserService) Follow(ctx context.Context, followerID, targetID string) error {
	return s.setFollow(ctx, followerID, targetID, true)
}

// Unfollow reverses Follow.
func (s *UserService) Unfollow(ctx context.Context, followerID, targetID string) error {
	return s.setFollow(ctx, followerID, targetID, false)
}

func (s *UserService) setFollow(ctx context.Context, followerID, targetID string, follow bool) error {
	if followerID == targetID {
		return ErrSelfFollow
	}
	for _, id := range []string{followerID, targetID} {
		user, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
	}
	return s.repo.SetFollow(ctx, followerID, targetID, follow)
}
