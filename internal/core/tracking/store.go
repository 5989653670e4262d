// Package tracking keeps a local record of every order attempt so the
// user can reconcile ambiguous outcomes later (`sfc orders history`).
package tracking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sfcompute/sfc/internal/telemetry"

	_ "modernc.org/sqlite"
)

const (
	maxStoreBytes int64   = 64 << 20 // 64 MiB
	evictPct      float64 = 0.10     // evict oldest 10% of rows
)

// Attempt is one row of order history. ExecutedPrice is nil until a fill
// is observed; Outcome holds the terminal state string, including
// "ambiguous" for attempts where polling ran out.
type Attempt struct {
	OrderID       string
	Side          string
	InstanceType  string
	Nodes         int64
	GPUs          int64
	StartAt       time.Time
	EndAt         time.Time
	LimitPrice    int64 // minor units, whole-window total
	ExecutedPrice *int64
	Outcome       string
	PlacedAt      time.Time
}

// Store persists attempts in a FIFO SQLite database. Oldest rows are
// evicted when the size budget is exceeded.
type Store struct {
	db         *sql.DB
	mu         sync.Mutex
	cachedSize int64
	rowCount   int64
}

const schema = `CREATE TABLE IF NOT EXISTS order_attempts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id       TEXT    NOT NULL DEFAULT '',
	side           TEXT    NOT NULL,
	instance_type  TEXT    NOT NULL DEFAULT '',
	nodes          INTEGER NOT NULL,
	gpus           INTEGER NOT NULL,
	start_at       TEXT    NOT NULL,
	end_at         TEXT    NOT NULL,
	limit_price    INTEGER NOT NULL,
	executed_price INTEGER,
	outcome        TEXT    NOT NULL,
	placed_at      TEXT    NOT NULL
)`

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	var size int64
	db.QueryRow(`SELECT COALESCE(page_count * page_size, 0) FROM pragma_page_count(), pragma_page_size()`).Scan(&size)
	var rowCount int64
	db.QueryRow(`SELECT COUNT(*) FROM order_attempts`).Scan(&rowCount)

	return &Store{db: db, cachedSize: size, rowCount: rowCount}, nil
}

// Insert stores a new attempt and returns the row id.
func (s *Store) Insert(a Attempt) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO order_attempts (
			order_id, side, instance_type, nodes, gpus,
			start_at, end_at, limit_price, executed_price, outcome, placed_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.OrderID, a.Side, a.InstanceType, a.Nodes, a.GPUs,
		a.StartAt.UTC().Format(time.RFC3339), a.EndAt.UTC().Format(time.RFC3339),
		a.LimitPrice, nullableInt(a.ExecutedPrice), a.Outcome,
		a.PlacedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}

	id, _ := res.LastInsertId()
	s.rowCount++
	s.refreshSize()
	if s.cachedSize > maxStoreBytes {
		s.evict()
	}
	return id, nil
}

// UpdateOutcome overwrites the terminal state (and executed price, when
// known) after the fact — used when a later `orders status` resolves an
// ambiguous attempt.
func (s *Store) UpdateOutcome(rowID int64, outcome string, executedPrice *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE order_attempts SET outcome=?, executed_price=COALESCE(?, executed_price) WHERE id=?`,
		outcome, nullableInt(executedPrice), rowID)
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(limit int) ([]Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT order_id, side, instance_type, nodes, gpus,
			start_at, end_at, limit_price, executed_price, outcome, placed_at
		 FROM order_attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var startAt, endAt, placedAt string
		var executed sql.NullInt64
		if err := rows.Scan(&a.OrderID, &a.Side, &a.InstanceType, &a.Nodes, &a.GPUs,
			&startAt, &endAt, &a.LimitPrice, &executed, &a.Outcome, &placedAt); err != nil {
			return nil, err
		}
		a.StartAt, _ = time.Parse(time.RFC3339, startAt)
		a.EndAt, _ = time.Parse(time.RFC3339, endAt)
		a.PlacedAt, _ = time.Parse(time.RFC3339Nano, placedAt)
		if executed.Valid {
			v := executed.Int64
			a.ExecutedPrice = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// refreshSize re-reads the database file size. Must be called with s.mu held.
func (s *Store) refreshSize() {
	var size int64
	row := s.db.QueryRow(`SELECT COALESCE(page_count * page_size, 0) FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&size); err == nil {
		s.cachedSize = size
	}
}

// evict deletes the oldest rows by count. Must be called with s.mu held.
func (s *Store) evict() {
	toDelete := int64(float64(s.rowCount) * evictPct)
	if toDelete < 1 {
		toDelete = 1
	}

	res, err := s.db.Exec(
		`DELETE FROM order_attempts WHERE id IN (
			SELECT id FROM order_attempts ORDER BY id ASC LIMIT ?
		)`, toDelete)
	if err != nil {
		telemetry.Warnf("history store evict: %v", err)
		return
	}

	deleted, _ := res.RowsAffected()
	s.rowCount -= deleted
	s.refreshSize()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
