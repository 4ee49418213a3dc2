package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultBusyTimeout      = 5 * time.Second
)

// SQLiteStore persists profiles in a SQLite database. Profiles are stored as
// JSON documents alongside the columns used for lookups.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	log         logger.Logger
	now         func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		path:        path,
		busyTimeout: defaultBusyTimeout,
		log:         logger.Get().Named("repository"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	s.db = db

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info(ctx, "profile store opened", logger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// GetClient implements Store.
func (s *SQLiteStore) GetClient(ctx context.Context, clientID string) (*model.ClientFeatureSet, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT profile FROM clients WHERE client_id = ?", clientID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get client %s: %w", clientID, err)
	}

	var c model.ClientFeatureSet
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode client %s: %w", clientID, err)
	}
	return &c, nil
}

// ListActiveCoaches implements Store.
func (s *SQLiteStore) ListActiveCoaches(ctx context.Context) ([]model.CoachFeatureSet, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT coach_id, profile FROM coaches WHERE active = 1 ORDER BY coach_id")
	if err != nil {
		return nil, fmt.Errorf("list coaches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.CoachFeatureSet
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan coach: %w", err)
		}
		var c model.CoachFeatureSet
		if err := json.Unmarshal(raw, &c); err != nil {
			s.log.Warn(ctx, "skipping undecodable coach", logger.String("coach_id", id), logger.Error(err))
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coaches: %w", err)
	}
	return out, nil
}

// UpsertClient implements Store.
func (s *SQLiteStore) UpsertClient(ctx context.Context, c *model.ClientFeatureSet) error {
	if c == nil || c.ClientID == "" {
		return ErrInvalidID
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode client %s: %w", c.ClientID, err)
	}
	err = s.exec(ctx, `INSERT INTO clients (client_id, profile, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at`,
		c.ClientID, string(raw), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert client %s: %w", c.ClientID, err)
	}
	return nil
}

// UpsertCoach implements Store.
func (s *SQLiteStore) UpsertCoach(ctx context.Context, c *model.CoachFeatureSet) error {
	if c == nil || c.CoachID == "" {
		return ErrInvalidID
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode coach %s: %w", c.CoachID, err)
	}
	active := 0
	if c.Active {
		active = 1
	}
	err = s.exec(ctx, `INSERT INTO coaches (coach_id, active, profile, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(coach_id) DO UPDATE SET active = excluded.active, profile = excluded.profile, updated_at = excluded.updated_at`,
		c.CoachID, active, string(raw), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert coach %s: %w", c.CoachID, err)
	}
	return nil
}

// Counts implements Store.
func (s *SQLiteStore) Counts(ctx context.Context) (int, int, error) {
	var clients, coaches int
	err := s.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(1) FROM clients), (SELECT COUNT(1) FROM coaches)",
	).Scan(&clients, &coaches)
	if err != nil {
		return 0, 0, fmt.Errorf("count profiles: %w", err)
	}
	return clients, coaches, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
