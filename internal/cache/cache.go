// Package cache persists per-book download progress in SQLite so an
// interrupted run can resume. The cache is best-effort: every failure is
// logged and swallowed, the network stays the source of truth.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brogergvhs/noveld/internal/book"

	_ "modernc.org/sqlite"
)

const (
	// KeyPrefix is prepended to the book identifier.
	KeyPrefix = "noveld_down_"

	// DefaultExpiry is the age after which an entry is treated as absent.
	DefaultExpiry = 24 * time.Hour
)

const schema = `
CREATE TABLE IF NOT EXISTS book_cache (
	key     TEXT PRIMARY KEY,
	ts      INTEGER NOT NULL,
	payload BLOB NOT NULL
)`

// Logger receives cache warnings.
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Errorf(string, ...any) {}

// Store is the durable cache.
type Store struct {
	db     *sql.DB
	log    Logger
	expiry time.Duration
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithExpiry overrides DefaultExpiry.
func WithExpiry(d time.Duration) Option { return func(s *Store) { s.expiry = d } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the warning sink.
func WithLogger(l Logger) Option { return func(s *Store) { s.log = l } }

// Open opens (or creates) the cache database at path. ":memory:" is accepted.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("cache: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: schema: %w", err)
	}

	return New(db, opts...), nil
}

// New wraps an open database whose schema is already applied.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		log:    nopLogger{},
		expiry: DefaultExpiry,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error {
	return s.db.Close()
}

// entry is the serialized form: chapters are [index, record] pairs.
type entry struct {
	Timestamp int64             `json:"timestamp"`
	Chapters  []json.RawMessage `json:"chapters"`
}

func key(bookID string) string {
	return KeyPrefix + bookID
}

func encode(ts time.Time, entries []book.Entry) ([]byte, error) {
	e := entry{Timestamp: ts.UnixMilli(), Chapters: make([]json.RawMessage, 0, len(entries))}
	for _, en := range entries {
		pair, err := json.Marshal([]any{en.Index, en.Record})
		if err != nil {
			return nil, err
		}
		e.Chapters = append(e.Chapters, pair)
	}
	return json.Marshal(e)
}

func decode(data []byte) ([]book.Entry, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}

	out := make([]book.Entry, 0, len(e.Chapters))
	for _, raw := range e.Chapters {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("malformed chapter pair")
		}

		var en book.Entry
		if err := json.Unmarshal(pair[0], &en.Index); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(pair[1], &en.Record); err != nil {
			return nil, err
		}
		out = append(out, en)
	}

	return out, nil
}

// Load returns the cached chapters of bookID. The map is nil when no entry
// exists or the entry expired; an expired entry is deleted.
func (s *Store) Load(ctx context.Context, bookID string) (int, *book.ChapterMap) {
	var ts int64
	var payload []byte

	err := s.db.QueryRowContext(ctx,
		"SELECT ts, payload FROM book_cache WHERE key = ?", key(bookID),
	).Scan(&ts, &payload)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		s.log.Errorf("cache: read %s failed: %v\n", bookID, err)
		return 0, nil
	}

	if s.now().Sub(time.UnixMilli(ts)) > s.expiry {
		s.log.Debugf("cache: entry for %s expired, purging\n", bookID)
		s.Clear(ctx, bookID)
		return 0, nil
	}

	entries, err := decode(payload)
	if err != nil {
		s.log.Errorf("cache: corrupt entry for %s: %v\n", bookID, err)
		return 0, nil
	}

	m := book.FromEntries(entries)
	return m.Len(), m
}

// Save overwrites the entry of bookID with entries.
func (s *Store) Save(ctx context.Context, bookID string, entries []book.Entry) {
	now := s.now()
	payload, err := encode(now, entries)
	if err != nil {
		s.log.Errorf("cache: encode %s failed: %v\n", bookID, err)
		return
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO book_cache (key, ts, payload)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET ts = excluded.ts, payload = excluded.payload`,
		key(bookID), now.UnixMilli(), payload,
	)
	if err != nil {
		s.log.Errorf("cache: save %s failed: %v\n", bookID, err)
	}
}

// Clear removes the entry of bookID.
func (s *Store) Clear(ctx context.Context, bookID string) {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM book_cache WHERE key = ?", key(bookID)); err != nil {
		s.log.Errorf("cache: clear %s failed: %v\n", bookID, err)
	}
}

// Info describes one stored entry.
type Info struct {
	BookID   string
	SavedAt  time.Time
	Chapters int
	Bytes    int64
	Expired  bool
}

// List returns every stored entry, newest first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, ts, payload FROM book_cache ORDER BY ts DESC")
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var k string
		var ts int64
		var payload []byte
		if err := rows.Scan(&k, &ts, &payload); err != nil {
			return nil, fmt.Errorf("cache list: %w", err)
		}

		saved := time.UnixMilli(ts)
		info := Info{
			BookID:  strings.TrimPrefix(k, KeyPrefix),
			SavedAt: saved,
			Bytes:   int64(len(payload)),
			Expired: s.now().Sub(saved) > s.expiry,
		}
		if entries, err := decode(payload); err == nil {
			info.Chapters = len(entries)
		}
		out = append(out, info)
	}

	return out, rows.Err()
}

// Prune removes all expired entries and returns how many were deleted.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.expiry).UnixMilli()
	result, err := s.db.ExecContext(ctx, "DELETE FROM book_cache WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return result.RowsAffected()
}
