// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package postgres provides PostgreSQL implementations of the auth repositories.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/forumcore/authcore/internal/auth"
)

// Querier is the subset of *pgxpool.Pool the repositories use. pgxmock's
// pool satisfies it in unit tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueFields maps the users table constraints to field names.
var uniqueFields = map[string]string{
	"users_username_key":     "username",
	"users_email_key":        "email",
	"users_display_name_key": "display_name",
}

// asConflict returns a *auth.ConflictError for a unique violation on a
// known constraint, or nil.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	field, ok := uniqueFields[pgErr.ConstraintName]
	if !ok {
		field = pgErr.ConstraintName
	}
	return &auth.ConflictError{Field: field}
}
