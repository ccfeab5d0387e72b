// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Memory  uint32 // KiB
	Time    uint32 // iterations
	Threads uint8  // lanes
	SaltLen uint32 // bytes
	KeyLen  uint32 // bytes
}

// DefaultArgon2Params is 64 MiB, 3 iterations, 4 lanes.
var DefaultArgon2Params = Argon2Params{
	Memory:  64 * 1024,
	Time:    3,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// Upper bounds accepted when decoding a stored digest.
const (
	maxDigestMemory = 1 << 20 // 1 GiB in KiB
	maxDigestTime   = 64
	maxDigestKeyLen = 1 << 10
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = validation().Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an encoded argon2id digest of the password.
	Hash(ctx context.Context, password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or a hashing
	// error when the digest cannot be decoded or the primitive fails.
	Verify(ctx context.Context, password, digest string) (bool, error)

	// NeedsUpgrade returns true if the digest was produced with other parameters.
	NeedsUpgrade(digest string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params}
}

// NewArgon2idHasherWithParams creates a hasher with explicit cost parameters.
func NewArgon2idHasherWithParams(p Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: p}
}

// Hash produces an argon2id digest of the password in PHC string format.
func (h *Argon2idHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if err := ctx.Err(); err != nil {
		return "", hashing().Code("AUTH_HASH_CANCELLED").Wrap(err)
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", hashing().Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

type decodedDigest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeDigest(digest string) (*decodedDigest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return nil, hashing().Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, hashing().Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, hashing().Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, hashing().Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, hashing().Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, hashing().Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	if memory == 0 || memory > maxDigestMemory || iterations == 0 || iterations > maxDigestTime {
		return nil, hashing().Code("AUTH_INVALID_HASH").
			With("memory", memory).
			With("time", iterations).
			Errorf("cost parameters out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, hashing().Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, hashing().Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > maxDigestKeyLen {
		return nil, hashing().Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &decodedDigest{
		params: Argon2Params{
			Memory:  memory,
			Time:    iterations,
			Threads: uint8(threads),
			SaltLen: uint32(len(salt)), //nolint:gosec // bounded by digest length
			KeyLen:  uint32(len(key)),  //nolint:gosec // bounded above
		},
		salt: salt,
		key:  key,
	}, nil
}

// Verify checks if the password matches the digest.
func (h *Argon2idHasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, hashing().Code("AUTH_HASH_CANCELLED").Wrap(err)
	}

	d, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), d.salt, d.params.Time, d.params.Memory, d.params.Threads, d.params.KeyLen)
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade returns true if the digest is not argon2id or was produced
// with cost parameters other than the hasher's own.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	d, err := decodeDigest(digest)
	if err != nil {
		return true
	}
	return d.params.Memory != h.params.Memory ||
		d.params.Time != h.params.Time ||
		d.params.Threads != h.params.Threads ||
		d.params.KeyLen != h.params.KeyLen
}
