// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package memstore

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/forumcore/authcore/internal/auth"
)

// UserRepository implements auth.UserRepository.
type UserRepository struct {
	s *Store
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// conflict returns the first unique field of u already used by another user.
func (r *UserRepository) conflict(u *auth.User) error {
	for id, other := range r.s.users {
		if id == u.ID {
			continue
		}
		switch {
		case other.Username == u.Username:
			return &auth.ConflictError{Field: "username"}
		case other.Email == u.Email:
			return &auth.ConflictError{Field: "email"}
		case other.DisplayName == u.DisplayName:
			return &auth.ConflictError{Field: "display_name"}
		}
	}
	return nil
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; ok {
		return &auth.ConflictError{Field: "id"}
	}
	if err := r.conflict(user); err != nil {
		return err
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *UserRepository) find(match func(*auth.User) bool) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	return r.find(func(u *auth.User) bool { return u.ID == id })
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find(func(u *auth.User) bool { return u.Username == username })
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u *auth.User) bool { return u.Email == email })
}

func (r *UserRepository) exists(match func(*auth.User) bool) (bool, error) {
	_, err := r.find(match)
	if errors.Is(err, auth.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// UsernameExists reports whether username is taken.
func (r *UserRepository) UsernameExists(_ context.Context, username string) (bool, error) {
	return r.exists(func(u *auth.User) bool { return u.Username == username })
}

// EmailExists reports whether email is taken.
func (r *UserRepository) EmailExists(_ context.Context, email string) (bool, error) {
	return r.exists(func(u *auth.User) bool { return u.Email == email })
}

// DisplayNameExists reports whether displayName is taken.
func (r *UserRepository) DisplayNameExists(_ context.Context, displayName string) (bool, error) {
	return r.exists(func(u *auth.User) bool { return u.DisplayName == displayName })
}

// update applies fn to a copy, checks uniqueness, then commits.
func (r *UserRepository) update(id ulid.ULID, fn func(*auth.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	next := cloneUser(current)
	fn(next)
	next.UpdatedAt = time.Now()
	if err := r.conflict(next); err != nil {
		return err
	}
	r.s.users[id] = next
	return nil
}

// UpdateUsername changes the username.
func (r *UserRepository) UpdateUsername(_ context.Context, id ulid.ULID, username string) error {
	return r.update(id, func(u *auth.User) { u.Username = username })
}

// UpdateEmail changes the email.
func (r *UserRepository) UpdateEmail(_ context.Context, id ulid.ULID, email string) error {
	return r.update(id, func(u *auth.User) { u.Email = email })
}

// UpdateDisplayName changes the display name.
func (r *UserRepository) UpdateDisplayName(_ context.Context, id ulid.ULID, displayName string) error {
	return r.update(id, func(u *auth.User) { u.DisplayName = displayName })
}

// UpdateNameColor changes the name colour.
func (r *UserRepository) UpdateNameColor(_ context.Context, id ulid.ULID, color string) error {
	return r.update(id, func(u *auth.User) { u.NameColor = color })
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	return r.update(id, func(u *auth.User) { u.PasswordHash = passwordHash })
}

// UpdateLastLogin sets the last login instant.
func (r *UserRepository) UpdateLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(u *auth.User) { u.LastLogin = &at })
}

var _ auth.UserRepository = (*UserRepository)(nil)
