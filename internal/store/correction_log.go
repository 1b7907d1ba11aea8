// Package store persists correction telemetry in SQLite so statistics survive
// across CLI runs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codemend/internal/logging"
	"codemend/internal/repair"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrClosed is returned by every method called after Close.
var ErrClosed = errors.New("correction log is closed")

// Outcome labels used in pattern snapshots.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CorrectionRow is one logged correction, without the content bodies.
type CorrectionRow struct {
	ID             string
	RunID          string
	FileID         string
	CorrectionType string
	Success        bool
	OldLength      int
	NewLength      int
	Duration       time.Duration
	CreatedAt      time.Time
}

// CorrectionLog is a SQLite-backed repair.CorrectionLogger. Every process
// gets its own run id; pattern counters are stored as per-run snapshots.
// Safe for concurrent use.
type CorrectionLog struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	runID  string
	closed bool
	now    func() time.Time
}

var _ repair.CorrectionLogger = (*CorrectionLog)(nil)

// Open creates or opens the correction log at dbPath.
func Open(dbPath string) (*CorrectionLog, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	if dbPath == "" {
		return nil, fmt.Errorf("database path required")
	}
	logging.Store("Opening correction log at: %s", dbPath)

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}

	l := &CorrectionLog{
		db:     db,
		dbPath: dbPath,
		runID:  uuid.NewString(),
		now:    time.Now,
	}
	if err := l.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.StoreDebug("Correction log ready, run %s", l.runID)
	return l, nil
}

func (l *CorrectionLog) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS corrections (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		file_id TEXT NOT NULL,
		correction_type TEXT NOT NULL,
		success INTEGER NOT NULL,
		old_content TEXT NOT NULL,
		new_content TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_corrections_file ON corrections(file_id);
	CREATE INDEX IF NOT EXISTS idx_corrections_created ON corrections(created_at);

	CREATE TABLE IF NOT EXISTS pattern_snapshots (
		run_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		pattern TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, outcome, pattern)
	);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// RunID identifies this process in the log.
func (l *CorrectionLog) RunID() string {
	return l.runID
}

// LogCorrection implements repair.CorrectionLogger.
func (l *CorrectionLog) LogCorrection(e repair.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	_, err := l.db.Exec(`
		INSERT INTO corrections (id, run_id, file_id, correction_type, success, old_content, new_content, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), l.runID, e.FileID, e.CorrectionType, e.Success,
		e.OldContent, e.NewContent, int64(e.Duration), l.now().UnixNano(),
	)
	if err != nil {
		logging.StoreWarn("Failed to log correction for %s: %v", e.FileID, err)
		return fmt.Errorf("failed to insert correction: %w", err)
	}
	return nil
}

// SaveSnapshot records the pattern counters of this run, replacing any
// earlier snapshot of the same run.
func (l *CorrectionLog) SaveSnapshot(s repair.Stats) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO pattern_snapshots (run_id, outcome, pattern, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for outcome, counts := range map[string]map[string]int{
		OutcomeSuccess: s.SuccessPatterns,
		OutcomeFailure: s.FailurePatterns,
	} {
		for pattern, n := range counts {
			if _, err := stmt.Exec(l.runID, outcome, pattern, n); err != nil {
				return fmt.Errorf("failed to save pattern %s: %w", pattern, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	logging.StoreDebug("Saved pattern snapshot for run %s", l.runID)
	return nil
}

// Summary aggregates every run in the database into one Stats value.
func (l *CorrectionLog) Summary() (repair.Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := repair.Stats{SuccessPatterns: map[string]int{}, FailurePatterns: map[string]int{}}
	if l.closed {
		return s, ErrClosed
	}

	row := l.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(success), 0), COUNT(DISTINCT file_id) FROM corrections`)
	if err := row.Scan(&s.TotalCorrections, &s.SuccessfulCorrections, &s.FilesCorrected); err != nil {
		return s, fmt.Errorf("failed to aggregate corrections: %w", err)
	}
	if s.TotalCorrections > 0 {
		s.SuccessRate = float64(s.SuccessfulCorrections) / float64(s.TotalCorrections) * 100
	}

	rows, err := l.db.Query(`SELECT outcome, pattern, SUM(count) FROM pattern_snapshots GROUP BY outcome, pattern`)
	if err != nil {
		return s, fmt.Errorf("failed to aggregate patterns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome, pattern string
		var n int
		if err := rows.Scan(&outcome, &pattern, &n); err != nil {
			return s, fmt.Errorf("failed to scan pattern: %w", err)
		}
		if outcome == OutcomeSuccess {
			s.SuccessPatterns[pattern] = n
		} else {
			s.FailurePatterns[pattern] = n
		}
	}
	return s, rows.Err()
}

// Recent returns the latest corrections, newest first.
func (l *CorrectionLog) Recent(limit int) ([]CorrectionRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.Query(`
		SELECT id, run_id, file_id, correction_type, success, length(CAST(old_content AS BLOB)), length(CAST(new_content AS BLOB)), duration_ns, created_at
		FROM corrections ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer rows.Close()

	var out []CorrectionRow
	for rows.Next() {
		var r CorrectionRow
		var durNs, createdNs int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.FileID, &r.CorrectionType, &r.Success,
			&r.OldLength, &r.NewLength, &durNs, &createdNs); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		r.Duration = time.Duration(durNs)
		r.CreatedAt = time.Unix(0, createdNs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database. Further calls return ErrClosed.
func (l *CorrectionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	logging.StoreDebug("Closing correction log %s", l.dbPath)
	return l.db.Close()
}
