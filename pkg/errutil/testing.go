// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package errutil

import (
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// T is the part of *testing.T the assertions need.
type T interface {
	require.TestingT
	Helper()
}

func asOops(t T, err error) (oops.OopsError, bool) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		t.Errorf("expected oops error, got %T: %v", err, err)
		t.FailNow()
	}
	return oopsErr, ok
}

// AssertErrorCode asserts the deepest oops code on err.
func AssertErrorCode(t T, err error, code string) {
	t.Helper()
	if oopsErr, ok := asOops(t, err); ok {
		assert.Equal(t, code, oopsErr.Code(), "error code")
	}
}

// AssertErrorKind asserts the kind (oops domain) carried by err.
func AssertErrorKind(t T, err error, kind string) {
	t.Helper()
	if oopsErr, ok := asOops(t, err); ok {
		assert.Equal(t, kind, oopsErr.Domain(), "error kind")
	}
}

// AssertErrorContext asserts that key is set to value anywhere in err's
// oops chain.
func AssertErrorContext(t T, err error, key string, value any) {
	t.Helper()
	if oopsErr, ok := asOops(t, err); ok {
		ctx := oopsErr.Context()
		if assert.Contains(t, ctx, key) {
			assert.Equal(t, value, ctx[key], "context %q", key)
		}
	}
}
