package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/casehub/internal/domain/user"
)

type UsersRepo struct {
	mu       sync.RWMutex
	items    map[string]user.User
	byMobile map[string]string
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:    make(map[string]user.User),
		byMobile: make(map[string]string),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byMobile[u.Mobile]; taken {
		return user.ErrMobileAlreadyUsed
	}
	r.items[u.ID] = u
	r.byMobile[u.Mobile] = u.ID
	return nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByMobile(_ context.Context, mobile string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byMobile[mobile]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *user.User) {
		u.LastLogin = &at
	})
}

func (r *UsersRepo) UpdatePIN(_ context.Context, id, pinHash string, at time.Time) error {
	return r.mutate(id, func(u *user.User) {
		u.PINHash = pinHash
		u.UpdatedAt = at
	})
}

func (r *UsersRepo) UpdateName(_ context.Context, id, name string) (user.User, error) {
	var out user.User
	err := r.mutate(id, func(u *user.User) {
		u.Name = name
		u.UpdatedAt = time.Now().UTC()
		out = *u
	})
	return out, err
}

func (r *UsersRepo) SetActive(_ context.Context, id string, active bool) (user.User, error) {
	var out user.User
	err := r.mutate(id, func(u *user.User) {
		u.IsActive = active
		u.UpdatedAt = time.Now().UTC()
		out = *u
	})
	return out, err
}

func (r *UsersRepo) mutate(id string, fn func(*user.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(&u)
	r.items[id] = u
	return nil
}
