// Package memory provides in-process repositories for local development and tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"example.com/menta/internal/domain"
)

// UserRepository stores profiles in memory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewUserRepository constructs an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]domain.User)}
}

// FindByEmail implements domain.UserRepository.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, user := range r.users {
		if user.Email == normalized {
			out := cloneUser(user)
			return &out, nil
		}
	}
	return nil, nil
}

// FindByID implements domain.UserRepository.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	out := cloneUser(user)
	return &out, nil
}

// Insert implements domain.UserRepository.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return domain.ErrProfileExists
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	user.Normalize()
	r.users[user.ID] = cloneUser(user)
	return nil
}

// UpdateFields implements domain.UserRepository.
func (r *UserRepository) UpdateFields(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.DOB != nil {
		user.DOB = *update.DOB
	}
	if update.Interests != nil {
		user.Interests = slices.Clone(*update.Interests)
	}
	if update.ProfilePicture != nil {
		user.ProfilePicture = update.ProfilePicture
	}
	if update.Location != nil {
		user.Location = update.Location
	}
	if update.Bio != nil {
		user.Bio = update.Bio
	}
	if update.Clubs != nil {
		user.Clubs = slices.Clone(*update.Clubs)
	}
	if !update.UpdatedAt.IsZero() {
		user.UpdatedAt = update.UpdatedAt
	}
	user.Normalize()
	r.users[id] = user

	out := cloneUser(user)
	return &out, nil
}

// SetFollow implements domain.UserRepository.
func (r *UserRepository) SetFollow(ctx context.Context, followerID, targetID string, follow bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	follower, ok := r.users[followerID]
	if !ok {
		return domain.ErrUserNotFound
	}
	target, ok := r.users[targetID]
	if !ok {
		return domain.ErrUserNotFound
	}

	if follow {
		follower.Following = addUnique(follower.Following, targetID)
		target.Followers = addUnique(target.Followers, followerID)
	} else {
		follower.Following = remove(follower.Following, targetID)
		target.Followers = remove(target.Followers, followerID)
	}
	r.users[followerID] = follower
	r.users[targetID] = target
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.Interests = slices.Clone(u.Interests)
	u.Clubs = slices.Clone(u.Clubs)
	u.Followers = slices.Clone(u.Followers)
	u.Following = slices.Clone(u.Following)
	return u
}

func addUnique(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(slices.Clone(list), id)
}

func remove(list []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(v string) bool { return v == id })
}
