// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultHashTimeout bounds a single hash or verify, including queueing.
const DefaultHashTimeout = 10 * time.Second

// HashObserver receives the wall time of each completed hashing operation.
type HashObserver func(op string, elapsed time.Duration)

// BoundedHasher runs an inner hasher on at most n goroutines at once so a
// burst of logins cannot starve unrelated requests of CPU and memory.
// Each call is bounded by a timeout covering both the wait for a slot and
// the computation.
type BoundedHasher struct {
	inner   PasswordHasher
	sem     *semaphore.Weighted
	timeout time.Duration
	observe HashObserver
}

// NewBoundedHasher wraps inner. maxConcurrent <= 0 means runtime.NumCPU().
// timeout <= 0 means DefaultHashTimeout.
func NewBoundedHasher(inner PasswordHasher, maxConcurrent int, timeout time.Duration, observe HashObserver) *BoundedHasher {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	if timeout <= 0 {
		timeout = DefaultHashTimeout
	}
	if observe == nil {
		observe = func(string, time.Duration) {}
	}
	return &BoundedHasher{
		inner:   inner,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		timeout: timeout,
		observe: observe,
	}
}

type hashResult struct {
	digest string
	ok     bool
	err    error
}

// run acquires a slot and executes fn off the caller's goroutine. The slot is
// held until fn returns, even if the caller has already given up, so the
// concurrency bound also covers abandoned work.
func (b *BoundedHasher) run(ctx context.Context, op string, fn func(context.Context) hashResult) hashResult {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return hashResult{err: hashing().Code("AUTH_HASH_TIMEOUT").
			With("operation", op).
			With("stage", "queue").
			Wrap(err)}
	}

	done := make(chan hashResult, 1)
	start := time.Now()
	go func() {
		defer b.sem.Release(1)
		// The inner call gets a context without the deadline: argon2 cannot be
		// interrupted, and a cancelled result is discarded below anyway.
		res := fn(context.WithoutCancel(ctx))
		b.observe(op, time.Since(start))
		done <- res
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return hashResult{err: hashing().Code("AUTH_HASH_TIMEOUT").
			With("operation", op).
			With("stage", "compute").
			Wrap(ctx.Err())}
	}
}

// Hash hashes password on the bounded pool.
func (b *BoundedHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	res := b.run(ctx, "hash", func(ctx context.Context) hashResult {
		digest, err := b.inner.Hash(ctx, password)
		return hashResult{digest: digest, err: err}
	})
	return res.digest, res.err
}

// Verify verifies password against digest on the bounded pool.
func (b *BoundedHasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	res := b.run(ctx, "verify", func(ctx context.Context) hashResult {
		ok, err := b.inner.Verify(ctx, password, digest)
		return hashResult{ok: ok, err: err}
	})
	return res.ok, res.err
}

// NeedsUpgrade delegates to the inner hasher; it does no hashing work.
func (b *BoundedHasher) NeedsUpgrade(digest string) bool {
	return b.inner.NeedsUpgrade(digest)
}

var (
	_ PasswordHasher = (*Argon2idHasher)(nil)
	_ PasswordHasher = (*BoundedHasher)(nil)
)
