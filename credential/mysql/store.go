// Package mysql implements credential.Store over MySQL with database/sql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/siteAuth/credential"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const duplicateEntry = 1062

// Store persists accounts in an `accounts` table. The *sql.DB is owned by the caller.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Store over db.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("mysql: nil db")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Open connects with parseTime and UTC forced on, applies pool settings and pings.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the accounts table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS accounts (
		id            VARCHAR(36)  NOT NULL PRIMARY KEY,
		email         VARCHAR(320) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(64)  NOT NULL,
		status        VARCHAR(16)  NOT NULL,
		token_version BIGINT       NOT NULL DEFAULT 0,
		created_at    DATETIME(6)  NOT NULL,
		updated_at    DATETIME(6)  NOT NULL
	) CHARACTER SET utf8mb4`)
	if err != nil {
		return fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*credential.Account, error) {
	return s.findOne(ctx, "email = ?", credential.NormalizeEmail(email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*credential.Account, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Store) findOne(ctx context.Context, where, arg string) (*credential.Account, error) {
	var (
		acc    credential.Account
		status string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,status,token_version,created_at,updated_at FROM accounts WHERE "+where+" LIMIT 1",
		arg).Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Role, &status, &acc.TokenVersion, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

// Create inserts account. An empty ID is filled with a random UUID.
func (s *Store) Create(ctx context.Context, account *credential.Account) error {
	now := s.now().UTC()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.Email = credential.NormalizeEmail(account.Email)
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (id,email,password_hash,role,status,token_version,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)",
		account.ID, account.Email, account.PasswordHash, account.Role, account.Status.String(),
		account.TokenVersion, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == duplicateEntry {
			return credential.ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx, "UPDATE accounts SET password_hash=?, updated_at=? WHERE id=?", hash, s.now().UTC(), id)
}

func (s *Store) SetStatus(ctx context.Context, id string, status credential.Status) error {
	return s.exec(ctx, "UPDATE accounts SET status=?, updated_at=? WHERE id=?", status.String(), s.now().UTC(), id)
}

// BumpTokenVersion increments and reads back inside one transaction; the row lock
// taken by UPDATE keeps the read consistent with the write.
func (s *Store) BumpTokenVersion(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET token_version = token_version + 1, updated_at=? WHERE id=?", s.now().UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, credential.ErrNotFound
	}

	var version int64
	if err := tx.QueryRowContext(ctx, "SELECT token_version FROM accounts WHERE id=?", id).Scan(&version); err != nil {
		return 0, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	return version, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", credential.ErrUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return credential.ErrNotFound
	}
	return nil
}
