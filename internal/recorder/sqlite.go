package recorder

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs
// migrations.
func NewSQLiteRecorder(dbPath string, logger *slog.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so inspection queries do not block the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", slog.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			status      TEXT NOT NULL,
			row         INTEGER,
			trade_date  TEXT,
			marked_row  INTEGER,
			limit_built INTEGER,
			error_type  TEXT,
			message     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_started ON run_history(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_run_status ON run_history(status)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun implements Recorder.
func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tradeDate := ""
	if !rec.TradeDate.IsZero() {
		tradeDate = rec.TradeDate.Format("2006-01-02")
	}

	_, err := r.db.Exec(`INSERT INTO run_history
		(run_id, started_at, duration_ms, status, row, trade_date, marked_row, limit_built, error_type, message)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.StartedAt.Unix(), rec.Duration.Milliseconds(),
		rec.Status, rec.Row, tradeDate, rec.MarkedRow, rec.LimitBuilt,
		rec.ErrorType, rec.Message,
	)
	return err
}

// Close implements Recorder.
func (r *SQLiteRecorder) Close() error {
	r.logger.Debug("closing sqlite recorder")
	return r.db.Close()
}
