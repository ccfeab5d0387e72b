// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forumcore/authcore/internal/auth"
	"github.com/forumcore/authcore/internal/auth/memstore"
)

// fastParams keep unit tests quick; production cost is covered in hasher_test.go.
var fastParams = auth.Argon2Params{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}

const goodPassword = "Correct#Horse1"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type spyRecorder struct {
	mu       sync.Mutex
	attempts map[string]int
	lockouts int
	resets   map[string]int
}

func newSpyRecorder() *spyRecorder {
	return &spyRecorder{attempts: map[string]int{}, resets: map[string]int{}}
}

func (r *spyRecorder) LoginAttempt(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[outcome]++
}

func (r *spyRecorder) LockedOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockouts++
}

func (r *spyRecorder) ResetToken(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets[event]++
}

type sentReset struct {
	email string
	token string
}

type captureSender struct {
	mu   sync.Mutex
	sent []sentReset
	err  error
}

func (s *captureSender) SendReset(_ context.Context, email, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentReset{email: email, token: token})
	return nil
}

func (s *captureSender) last(t *testing.T) sentReset {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent, "no reset was sent")
	return s.sent[len(s.sent)-1]
}

// logBuffer captures JSON log lines.
type logBuffer struct {
	buf bytes.Buffer
}

func (b *logBuffer) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&b.buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (b *logBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func (b *logBuffer) find(t *testing.T, level, msgContains string) map[string]any {
	t.Helper()
	for _, e := range b.entries(t) {
		if e["level"] == level && strings.Contains(e["msg"].(string), msgContains) {
			return e
		}
	}
	return nil
}

// fixture wires every service against one in-memory store.
type fixture struct {
	store    *memstore.Store
	clock    *fakeClock
	recorder *spyRecorder
	logs     *logBuffer
	sender   *captureSender
	hasher   auth.PasswordHasher

	users    auth.UserRepository
	attempts auth.AttemptRepository
	sessions auth.SessionRepository
	resets   auth.ResetTokenRepository

	tracker  *auth.LoginTracker
	manager  *auth.SessionManager
	service  *auth.Service
	accounts *auth.AccountService
	reset    *auth.ResetService
}

type fixtureOption func(*fixture)

func withUsers(r auth.UserRepository) fixtureOption       { return func(f *fixture) { f.users = r } }
func withAttempts(r auth.AttemptRepository) fixtureOption { return func(f *fixture) { f.attempts = r } }
func withSessions(r auth.SessionRepository) fixtureOption { return func(f *fixture) { f.sessions = r } }
func withResets(r auth.ResetTokenRepository) fixtureOption {
	return func(f *fixture) { f.resets = r }
}
func withHasher(h auth.PasswordHasher) fixtureOption { return func(f *fixture) { f.hasher = h } }

func newFixture(t *testing.T, fopts ...fixtureOption) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{
		store:    store,
		clock:    newFakeClock(),
		recorder: newSpyRecorder(),
		logs:     &logBuffer{},
		sender:   &captureSender{},
		hasher:   auth.NewArgon2idHasherWithParams(fastParams),
		users:    store.Users(),
		attempts: store.Attempts(),
		sessions: store.Sessions(),
		resets:   store.Resets(),
	}
	for _, o := range fopts {
		o(f)
	}

	opts := []auth.Option{
		auth.WithClock(f.clock.Now),
		auth.WithLogger(f.logs.logger()),
		auth.WithRecorder(f.recorder),
	}

	var err error
	f.tracker, err = auth.NewLoginTracker(f.attempts, auth.DefaultLockoutPolicy(), opts...)
	require.NoError(t, err)
	f.manager, err = auth.NewSessionManager(f.sessions, 0, 0, opts...)
	require.NoError(t, err)
	f.service, err = auth.NewAuthService(f.users, f.hasher, f.tracker, f.manager, opts...)
	require.NoError(t, err)
	f.accounts, err = auth.NewAccountService(f.users, f.resets, f.hasher, f.manager, opts...)
	require.NoError(t, err)
	f.reset, err = auth.NewResetService(f.users, f.resets, f.hasher, f.sender, auth.ResetConfig{}, opts...)
	require.NoError(t, err)
	return f
}

// register creates an account through the public flow.
func (f *fixture) register(t *testing.T, username, email string) *auth.User {
	t.Helper()
	user, err := f.accounts.Register(context.Background(), auth.Registration{
		Username:    username,
		Password:    goodPassword,
		Email:       email,
		DisplayName: "The " + username,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) failLogin(t *testing.T, ip, username string) {
	t.Helper()
	_, err := f.service.Login(context.Background(), auth.LoginRequest{
		IP: ip, SessionID: "sid-" + ip, Username: username, Password: "wrong",
	})
	require.Error(t, err)
}
