// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/forumcore/authcore/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		migrator  *store.Migrator
		pool      *pgxpool.Pool
	)

	tableExists := func(name string) bool {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
			name).Scan(&exists)
		Expect(err).NotTo(HaveOccurred())
		return exists
	}

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("authcore_test"),
			postgres.WithUsername("authcore"),
			postgres.WithPassword("authcore"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 3, Backoff: 100 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			Expect(migrator.Close()).To(Succeed())
		}
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{1, 2, 3, 4}))
	})

	It("creates every auth table", func() {
		Expect(migrator.Up()).To(Succeed())
		for _, table := range []string{"users", "login_attempts", "sessions", "password_resets"} {
			Expect(tableExists(table)).To(BeTrue(), table)
		}

		applied, err := migrator.AppliedMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(Equal([]uint{1, 2, 3, 4}))
	})

	It("is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("steps down and back up", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(tableExists("password_resets")).To(BeFalse())

		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(3)))

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(tableExists("password_resets")).To(BeTrue())
	})

	It("enforces the named unique constraints", func() {
		_, err := pool.Exec(ctx, `INSERT INTO users (id, username, password_hash, email, display_name)
			VALUES ('01J0000000000000000000000A', 'alice', 'h', 'a@example.com', 'Alice')`)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, `INSERT INTO users (id, username, password_hash, email, display_name)
			VALUES ('01J0000000000000000000000B', 'alice', 'h', 'b@example.com', 'Bob')`)
		Expect(err).To(MatchError(ContainSubstring("users_username_key")))
	})

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		Expect(tableExists("users")).To(BeFalse())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("forces a version without running SQL", func() {
		Expect(migrator.Force(2)).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
		Expect(dirty).To(BeFalse())
		Expect(tableExists("users")).To(BeFalse())
	})
})
