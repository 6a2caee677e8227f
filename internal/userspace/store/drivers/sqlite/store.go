// Package sqlite is the embedded single-node account driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/internal/userspace/store"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const accountColumns = `id, username, email, password_hash, password_salt, verified,
	verification_token, recovery_token, recovery_requested_at, extras, created_at, updated_at`

// Store keeps accounts in a single SQLite table.
type Store[X any] struct {
	db  *sql.DB
	dsn string
}

var _ store.Driver[struct{}] = (*Store[struct{}])(nil)

// NewStore opens the database at dsn. Call ApplyMigrations before use.
func NewStore[X any](dsn string) (*Store[X], error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer. One connection keeps writes serialized in
	// process instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store[X]{db: db, dsn: dsn}, nil
}

func (s *Store[X]) Close(context.Context) error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store[X]) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store[X]) Insert(ctx context.Context, a domain.Account[X]) error {
	extras, err := json.Marshal(a.Extras)
	if err != nil {
		return fmt.Errorf("sqlite: encode extras: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		nullString(a.Username),
		a.Email,
		a.PasswordHash,
		a.PasswordSalt,
		a.Verified,
		nullString(a.VerificationToken),
		nullString(a.RecoveryToken),
		nullMillis(a.RecoveryRequestedAt),
		string(extras),
		a.CreatedAt.UnixMilli(),
		a.UpdatedAt.UnixMilli(),
	)
	return mapConstraint(err)
}

func (s *Store[X]) Find(ctx context.Context, f store.Filter) (domain.Account[X], error) {
	col, err := column(f)
	if err != nil {
		return domain.Account[X]{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+col+` = ?`, f.Value)
	return scanAccount[X](row)
}

func (s *Store[X]) Exists(ctx context.Context, f store.Filter) (bool, error) {
	col, err := column(f)
	if err != nil {
		return false, err
	}

	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE `+col+` = ? LIMIT 1`, f.Value).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store[X]) Update(ctx context.Context, f store.Filter, c store.Changes[X]) error {
	col, err := column(f)
	if err != nil {
		return err
	}

	set, args, err := updateClauses(c)
	if err != nil {
		return err
	}
	args = append(args, f.Value)

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET `+strings.Join(set, ", ")+` WHERE `+col+` = ?`, args...)
	if err != nil {
		return mapConstraint(err)
	}
	return requireOne(res)
}

func (s *Store[X]) Delete(ctx context.Context, f store.Filter) error {
	col, err := column(f)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE `+col+` = ?`, f.Value)
	if err != nil {
		return err
	}
	return requireOne(res)
}

func (s *Store[X]) ClearRecoveryBefore(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts
		    SET recovery_token = NULL, recovery_requested_at = NULL, updated_at = ?
		  WHERE recovery_requested_at IS NOT NULL AND recovery_requested_at <= ?`,
		now.UnixMilli(), cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func updateClauses[X any](c store.Changes[X]) ([]string, []any, error) {
	var (
		set  []string
		args []any
	)
	add := func(clause string, v any) {
		set = append(set, clause)
		args = append(args, v)
	}

	if c.Email != nil {
		add("email = ?", *c.Email)
	}
	if c.Username != nil {
		add("username = ?", nullString(*c.Username))
	}
	if c.Credentials != nil {
		add("password_hash = ?", c.Credentials.Hash)
		add("password_salt = ?", c.Credentials.Salt)
	}
	if c.Verified != nil {
		add("verified = ?", *c.Verified)
	}
	if c.VerificationToken != nil {
		add("verification_token = ?", nullString(*c.VerificationToken))
	}
	switch {
	case c.Recovery != nil:
		add("recovery_token = ?", nullString(c.Recovery.Token))
		add("recovery_requested_at = ?", c.Recovery.RequestedAt.UnixMilli())
	case c.ClearRecovery:
		set = append(set, "recovery_token = NULL", "recovery_requested_at = NULL")
	}
	if c.Extras != nil {
		extras, err := json.Marshal(*c.Extras)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: encode extras: %w", err)
		}
		add("extras = ?", string(extras))
	}
	add("updated_at = ?", c.UpdatedAt.UnixMilli())

	return set, args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount[X any](row scanner) (domain.Account[X], error) {
	var (
		a                   domain.Account[X]
		username            sql.NullString
		verificationToken   sql.NullString
		recoveryToken       sql.NullString
		recoveryRequestedAt sql.NullInt64
		extras              string
		createdAt           int64
		updatedAt           int64
	)

	err := row.Scan(
		&a.ID,
		&username,
		&a.Email,
		&a.PasswordHash,
		&a.PasswordSalt,
		&a.Verified,
		&verificationToken,
		&recoveryToken,
		&recoveryRequestedAt,
		&extras,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Account[X]{}, mapNotFound(err)
	}

	if err := json.Unmarshal([]byte(extras), &a.Extras); err != nil {
		return domain.Account[X]{}, fmt.Errorf("sqlite: decode extras: %w", err)
	}

	a.Username = username.String
	a.VerificationToken = verificationToken.String
	a.RecoveryToken = recoveryToken.String
	if recoveryRequestedAt.Valid {
		t := time.UnixMilli(recoveryRequestedAt.Int64).UTC()
		a.RecoveryRequestedAt = &t
	}
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	a.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return a, nil
}

// column maps a filter to its column. Only known columns are ever spliced
// into SQL.
func column(f store.Filter) (string, error) {
	switch f.Field {
	case store.FieldID:
		return "id", nil
	case store.FieldEmail:
		return "email", nil
	case store.FieldUsername:
		return "username", nil
	case store.FieldVerificationToken:
		return "verification_token", nil
	case store.FieldRecoveryToken:
		return "recovery_token", nil
	default:
		return "", fmt.Errorf("sqlite: unsupported filter field %d", f.Field)
	}
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConstraint turns unique index violations into the store's duplicate
// errors. SQLite names the offending column in the message.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}

	var serr *msqlite.Error
	if !errors.As(err, &serr) || serr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return err
	}

	msg := serr.Error()
	switch {
	case strings.Contains(msg, "accounts.email"):
		return store.ErrDuplicateEmail
	case strings.Contains(msg, "accounts.username"):
		return store.ErrDuplicateUsername
	default:
		return err
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
