// Package postgres implements credential.Store over PostgreSQL using pgx.
package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const uniqueViolation = "23505"

// Store persists accounts in a single table. The pool is owned by the caller.
type Store struct {
	pool  *pgxpool.Pool
	table string
	now   func() time.Time
}

// Option configures a [Store].
type Option func(*Store) error

// WithSchema places the accounts table in schema (default "public").
func WithSchema(schema string) Option {
	return func(s *Store) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("postgres: empty schema")
		}
		s.table = pgx.Identifier{schema, "accounts"}.Sanitize()
		return nil
	}
}

// New returns a Store bound to pool.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	s := &Store{
		pool:  pool,
		table: pgx.Identifier{"public", "accounts"}.Sanitize(),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, errors.New("postgres: nil pool")
	}
	return s, nil
}

// Open parses dsn, applies pool limits and verifies connectivity.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the accounts table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		status        TEXT NOT NULL,
		token_version BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*credential.Account, error) {
	return s.findOne(ctx, `WHERE email = $1`, credential.NormalizeEmail(email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*credential.Account, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *Store) findOne(ctx context.Context, where string, arg string) (*credential.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, status, token_version, created_at, updated_at
		   FROM `+s.table+` `+where, arg)

	var (
		acc    credential.Account
		status string
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Role, &status,
		&acc.TokenVersion, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credential.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	acc.Status, err = credential.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Create inserts account. An empty ID is filled with a ULID.
func (s *Store) Create(ctx context.Context, account *credential.Account) error {
	now := s.now().UTC()
	if account.ID == "" {
		id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
		if err != nil {
			return err
		}
		account.ID = id.String()
	}
	account.Email = credential.NormalizeEmail(account.Email)
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table+` (id, email, password_hash, role, status, token_version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.Email, account.PasswordHash, account.Role, account.Status.String(),
		account.TokenVersion, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return credential.ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx, `UPDATE `+s.table+` SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, s.now().UTC())
}

func (s *Store) SetStatus(ctx context.Context, id string, status credential.Status) error {
	return s.exec(ctx, `UPDATE `+s.table+` SET status = $2, updated_at = $3 WHERE id = $1`, id, status.String(), s.now().UTC())
}

// BumpTokenVersion increments in a single statement so concurrent bumps never collapse.
func (s *Store) BumpTokenVersion(ctx context.Context, id string) (int64, error) {
	var version int64
	err := s.pool.QueryRow(ctx,
		`UPDATE `+s.table+` SET token_version = token_version + 1, updated_at = $2
		  WHERE id = $1 RETURNING token_version`, id, s.now().UTC()).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, credential.ErrNotFound
		}
		return 0, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return version, nil
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return credential.ErrNotFound
	}
	return nil
}
