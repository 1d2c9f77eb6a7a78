package mysql

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/siteAuth/credential"
)

// Integration tests are opt-in and require SITEAUTH_TEST_MYSQL_DSN pointing at a scratch database.

func TestMySQLStoreLifecycle(t *testing.T) {
	dsn := os.Getenv("SITEAUTH_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SITEAUTH_TEST_MYSQL_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("mysql unreachable: %v", err)
	}
	defer db.Close()

	s, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	email := "crew." + time.Now().Format("150405.000000") + "@example.com"
	acc := &credential.Account{Email: email, PasswordHash: "hash", Role: "member"}
	if err := s.Create(ctx, acc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _, _ = db.Exec("DELETE FROM accounts WHERE id=?", acc.ID) })

	if err := s.Create(ctx, &credential.Account{Email: email, PasswordHash: "x", Role: "member"}); !errors.Is(err, credential.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := s.BumpTokenVersion(ctx, acc.ID)
		if err != nil || got != want {
			t.Fatalf("BumpTokenVersion = %d, %v; want %d", got, err, want)
		}
	}

	if err := s.UpdatePasswordHash(ctx, acc.ID, "hash2"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	got, err := s.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.PasswordHash != "hash2" || got.TokenVersion != 3 {
		t.Fatalf("unexpected account: %+v", got)
	}
}
