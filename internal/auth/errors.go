// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error kinds, carried as the oops domain.
const (
	KindValidation = "validation"
	KindRejected   = "rejected"
	KindStore      = "store"
	KindHashing    = "hashing"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// ConflictError names the unique field a write collided on.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// Is makes errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Builders for each kind. Codes are attached by callers.
func validation() oops.OopsErrorBuilder { return oops.In(KindValidation) }
func rejected() oops.OopsErrorBuilder   { return oops.In(KindRejected) }
func storeErr() oops.OopsErrorBuilder   { return oops.In(KindStore) }
func hashing() oops.OopsErrorBuilder    { return oops.In(KindHashing) }

// KindOf returns the error kind of err, or "" for foreign errors.
func KindOf(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Domain()
	}
	return ""
}

// CodeOf returns the oops code carried by err, or "".
func CodeOf(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}

// IsValidation reports whether err is a bad-input error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsRejected reports whether err is a business-rule refusal.
func IsRejected(err error) bool { return KindOf(err) == KindRejected }

// IsStore reports whether err came from the persistent store.
func IsStore(err error) bool { return KindOf(err) == KindStore }

// IsHashing reports whether err came from the password hashing primitive.
func IsHashing(err error) bool { return KindOf(err) == KindHashing }

// wrapStore tags a repository failure as a store error unless it already
// carries a kind.
func wrapStore(err error, code, operation string) error {
	if KindOf(err) != "" {
		return oops.Code(code).With("operation", operation).Wrap(err)
	}
	return storeErr().Code(code).With("operation", operation).Wrap(err)
}
