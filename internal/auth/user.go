// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// Field validation constraints.
const (
	MinUsernameLength    = 3
	MaxUsernameLength    = 20
	MinDisplayNameLength = 2
	MaxDisplayNameLength = 50
	MinPasswordLength    = 8

	passwordSpecials = `!@#$%^&*(),.?":{}|<>`
)

// DefaultNameColor is assigned at registration.
const DefaultNameColor = "#000000"

var (
	usernameRegex  = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// User is a forum account. Only the credential store writes it.
type User struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	Email        string
	DisplayName  string
	NameColor    string
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser validates the user-supplied fields and returns a User ready to
// persist. The password must already be hashed.
func NewUser(username, email, displayName, passwordHash string, now time.Time) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateDisplayName(displayName, username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, validation().Code("AUTH_EMPTY_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		DisplayName:  displayName,
		NameColor:    DefaultNameColor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername checks length and the [A-Za-z0-9_] character set.
func ValidateUsername(username string) error {
	if username == "" {
		return validation().Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return validation().Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return validation().Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return validation().Code("AUTH_INVALID_USERNAME").
			Errorf("username can only contain letters, numbers, and underscores")
	}
	return nil
}

// ValidateEmail performs a shape check only; deliverability is not verified.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return validation().Code("AUTH_INVALID_EMAIL").Errorf("invalid email format")
	}
	return nil
}

// ValidateDisplayName checks length and that the name differs from username.
func ValidateDisplayName(displayName, username string) error {
	n := utf8.RuneCountInString(displayName)
	if n < MinDisplayNameLength || n > MaxDisplayNameLength {
		return validation().Code("AUTH_INVALID_DISPLAY_NAME").
			With("min", MinDisplayNameLength).
			With("max", MaxDisplayNameLength).
			Errorf("display name must be between %d and %d characters", MinDisplayNameLength, MaxDisplayNameLength)
	}
	if displayName == username {
		return validation().Code("AUTH_INVALID_DISPLAY_NAME").
			Errorf("display name cannot be the same as username")
	}
	return nil
}

// ValidatePassword enforces the password policy. Every violated rule is
// reported in the "violations" context key.
func ValidatePassword(password string) error {
	var violations []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, "password must be at least 8 characters long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper {
		violations = append(violations, "password must contain at least one uppercase letter")
	}
	if !lower {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if !digit {
		violations = append(violations, "password must contain at least one number")
	}
	if !special {
		violations = append(violations, "password must contain at least one special character")
	}

	if len(violations) > 0 {
		return validation().Code("AUTH_WEAK_PASSWORD").
			With("violations", violations).
			Errorf("%s", strings.Join(violations, "; "))
	}
	return nil
}

// ValidateNameColor accepts #RRGGBB.
func ValidateNameColor(color string) error {
	if !nameColorRegex.MatchString(color) {
		return validation().Code("AUTH_INVALID_NAME_COLOR").Errorf("name color must be in #RRGGBB format")
	}
	return nil
}

// UserRepository is the credential store.
type UserRepository interface {
	// Create stores a new user. A uniqueness violation returns *ConflictError.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by exact email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	DisplayNameExists(ctx context.Context, displayName string) (bool, error)

	// Field updates. Each returns ErrNotFound for an unknown id and
	// *ConflictError on a uniqueness violation.
	UpdateUsername(ctx context.Context, id ulid.ULID, username string) error
	UpdateEmail(ctx context.Context, id ulid.ULID, email string) error
	UpdateDisplayName(ctx context.Context, id ulid.ULID, displayName string) error
	UpdateNameColor(ctx context.Context, id ulid.ULID, color string) error
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error
}
