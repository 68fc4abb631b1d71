// Package store keeps a registry of minted identifiers in SQLite.
//
// Identifiers are keyed by their raw bytes, so every shape (GUID, TinyGUID,
// FactoryGUID) shares one table. Rows carry the tenant, timestamp and counter
// fields so listings come back in the same order as Compare.
//
// Example:
//
//	s, err := store.Open(ctx, store.Options{DSN: "file:guids.db"})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.Put(ctx, guid.New(), "invoice")
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sxyafiq/guid"
)

// DefaultDSN is used when Options.DSN is empty.
const DefaultDSN = "file:guids.db?_busy_timeout=5000&_journal_mode=WAL"

var (
	// ErrNotFound is returned when no row matches the identifier.
	ErrNotFound = errors.New("store: identifier not found")

	// ErrExists is returned by Insert when the identifier is already registered.
	ErrExists = errors.New("store: identifier already registered")

	// ErrZeroIdentifier is returned for zero-value identifiers, which have no bytes.
	ErrZeroIdentifier = errors.New("store: zero identifier")
)

const schema = `
CREATE TABLE IF NOT EXISTS guids (
	id         BLOB    PRIMARY KEY,
	version    INTEGER NOT NULL,
	tenant     INTEGER NOT NULL,
	ts         INTEGER NOT NULL,
	counter    INTEGER NOT NULL,
	text       TEXT    NOT NULL,
	label      TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS guids_order ON guids (tenant, ts, counter, id);
`

// Options configures Open.
type Options struct {
	// DSN is a go-sqlite3 data source name. Empty means DefaultDSN.
	DSN string

	// Logger receives lifecycle and write events. nil disables logging.
	Logger *zap.Logger
}

// Record is a registered identifier.
type Record struct {
	ID        guid.Identifier
	Label     string
	CreatedAt time.Time
}

// Store is a SQLite-backed identifier registry. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the registry at opts.DSN.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dsn := opts.DSN
	if dsn == "" {
		dsn = DefaultDSN
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if isMemory(dsn) {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	logger.Info("guid store opened", zap.String("dsn", dsn))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// PathDSN turns a database file path into a DSN with the DefaultDSN
// options. Values that are already DSNs are returned unchanged.
func PathDSN(path string) string {
	if path == "" || strings.HasPrefix(path, "file:") || isMemory(path) {
		return path
	}
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put registers id with label, replacing the label if id is already present.
func (s *Store) Put(ctx context.Context, id guid.Identifier, label string) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guids (id, version, tenant, ts, counter, text, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET label = excluded.label`,
		id, id.Version(), id.TenantID(), id.Timestamp(), id.Counter(), id.String(), label, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: put %s: %w", id, err)
	}
	s.logger.Debug("identifier registered", zap.Stringer("id", id), zap.String("label", label))
	return nil
}

// Insert registers id and fails with ErrExists if it is already present.
func (s *Store) Insert(ctx context.Context, id guid.Identifier, label string) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guids (id, version, tenant, ts, counter, text, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, id.Version(), id.TenantID(), id.Timestamp(), id.Counter(), id.String(), label, s.now().UnixMilli())
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", id, err)
	}
	s.logger.Debug("identifier inserted", zap.Stringer("id", id), zap.String("label", label))
	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique)
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id guid.Identifier) (Record, error) {
	if err := checkID(id); err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, created_at FROM guids WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	return rec, nil
}

// Exists reports whether id is registered.
func (s *Store) Exists(ctx context.Context, id guid.Identifier) (bool, error) {
	if err := checkID(id); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM guids WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("store: exists %s: %w", id, err)
	}
	return true, nil
}

// Delete removes id, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id guid.Identifier) error {
	if err := checkID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM guids WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logger.Debug("identifier deleted", zap.Stringer("id", id))
	return nil
}

// ListByTenant returns up to limit records for tenant, ordered by timestamp,
// then counter, then raw bytes. A limit of zero or less returns every record.
func (s *Store) ListByTenant(ctx context.Context, tenant int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, created_at FROM guids
		WHERE tenant = ?
		ORDER BY ts, counter, id
		LIMIT ?`, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list tenant %d: %w", tenant, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list tenant %d: %w", tenant, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list tenant %d: %w", tenant, err)
	}
	return out, nil
}

// Count returns the number of registered identifiers.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guids`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		raw     []byte
		label   string
		created int64
	)
	if err := row.Scan(&raw, &label, &created); err != nil {
		return Record{}, err
	}
	id, err := guid.FromBytesAny(raw)
	if err != nil {
		return Record{}, fmt.Errorf("corrupt row %x: %w", raw, err)
	}
	return Record{ID: id, Label: label, CreatedAt: time.UnixMilli(created)}, nil
}

func checkID(id guid.Identifier) error {
	if id == nil || id.Version() == 0 {
		return ErrZeroIdentifier
	}
	return nil
}
