// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package auth is the authentication security core of the forum: credential
// verification, brute-force lockout, session lifecycle and password reset.
//
// # Domain Types
//
// User is created through NewUser, which validates every user-supplied
// field. Session, LoginAttempt and ResetToken are produced by the services
// below and are not meant to be built by callers.
//
// # Services
//
//   - LoginTracker - attempt ledger and lockout policy
//   - Service - authenticate, login, logout
//   - SessionManager - issue, revoke, rename owner, resolve with timeouts
//   - ResetService - reset token issue, validate, consume, sweep
//   - AccountService - registration and profile changes
//
// Services depend only on the repository interfaces in this package.
// Implementations live in the memstore, postgres and redisstore
// subpackages.
//
// # Errors
//
// Every error returned by a service carries one of four kinds, readable
// with KindOf: validation, rejected, store or hashing. Lockout and token
// checks fail closed: a store error is never reported as "not locked" or
// "valid".
package auth
