package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/jackc/pgx/v5"
)

// Integration tests are opt-in and require SITEAUTH_TEST_POSTGRES_URL.

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("SITEAUTH_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("SITEAUTH_TEST_POSTGRES_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Open(ctx, dsn, 4)
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(pool.Close)

	schema := fmt.Sprintf("siteauth_test_%d", time.Now().UnixNano())
	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DROP SCHEMA `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	s, err := New(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func TestPostgresStoreLifecycle(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	acc := &credential.Account{Email: "Site.Lead@Example.com", PasswordHash: "hash", Role: "manager", Status: credential.StatusInactive}
	if err := s.Create(ctx, acc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, &credential.Account{Email: "site.lead@example.com", PasswordHash: "x", Role: "member"}); !errors.Is(err, credential.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if err := s.SetStatus(ctx, acc.ID, credential.StatusActive); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	v, err := s.BumpTokenVersion(ctx, acc.ID)
	if err != nil || v != 1 {
		t.Fatalf("BumpTokenVersion = %d, %v", v, err)
	}

	got, err := s.FindByEmail(ctx, "SITE.LEAD@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.Status != credential.StatusActive || got.TokenVersion != 1 {
		t.Fatalf("unexpected account state: %+v", got)
	}

	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, "missing", "h"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
