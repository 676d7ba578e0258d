package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/logging"
	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/sqlitedb"
)

// Logger journals every provider attempt in a dedicated SQLite database.
type Logger struct {
	db        *sql.DB
	retention time.Duration
	logger    *zap.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New opens the audit database and starts the retention loop.
func New(cfg models.AuditConfig, logger *zap.Logger) (*Logger, error) {
	db, err := sqlitedb.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:        db,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		logger:    logging.OrNop(logger),
		done:      make(chan struct{}),
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	return sqlitedb.Migrate(db,
		`CREATE TABLE IF NOT EXISTS attempt_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id  TEXT NOT NULL,
			provider    TEXT NOT NULL,
			target_lang TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			error_kind  TEXT NOT NULL DEFAULT '',
			confidence  REAL NOT NULL DEFAULT 0,
			cost        REAL NOT NULL DEFAULT 0,
			chars       INTEGER NOT NULL DEFAULT 0,
			latency_ms  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempt_request ON attempt_log(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempt_provider ON attempt_log(provider, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_attempt_created ON attempt_log(created_at)`,
	)
}

// Log inserts one attempt. A nil Logger discards entries.
func (l *Logger) Log(ctx context.Context, e models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO attempt_log
		(request_id, provider, target_lang, outcome, error_kind, confidence, cost, chars, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Provider, e.TargetLang, string(e.Outcome), e.ErrorKind,
		e.Confidence, e.Cost, e.Chars, e.LatencyMs, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("log attempt: %w", err)
	}
	return nil
}

// Query returns attempts matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT id, request_id, provider, target_lang, outcome, error_kind,
		confidence, cost, chars, latency_ms, created_at
		FROM attempt_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Provider != "" {
		q += " AND provider = ?"
		args = append(args, opts.Provider)
	}
	if opts.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, string(opts.Outcome))
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UnixMilli())
	}

	q += " ORDER BY created_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var outcome string
		var created int64
		if err := rows.Scan(
			&e.ID, &e.RequestID, &e.Provider, &e.TargetLang, &outcome, &e.ErrorKind,
			&e.Confidence, &e.Cost, &e.Chars, &e.LatencyMs, &created,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Outcome = models.Outcome(outcome)
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns attempt counts and cost grouped by provider, outcome and day (UTC).
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT provider, outcome, date(created_at / 1000, 'unixepoch') AS day, count(*), COALESCE(SUM(cost), 0)
		 FROM attempt_log GROUP BY provider, outcome, day ORDER BY day DESC, provider, outcome`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var outcome string
		var day sql.NullString
		if err := rows.Scan(&s.Provider, &outcome, &day, &s.Count, &s.Cost); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Outcome = models.Outcome(outcome)
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes attempts older than the retention period. A zero
// retention keeps everything.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-l.retention).UnixMilli()
	res, err := l.db.ExecContext(ctx, `DELETE FROM attempt_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
		err = l.db.Close()
	})
	return err
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				l.logger.Warn("audit cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				l.logger.Debug("audit cleanup", zap.Int64("deleted", n))
			}
		}
	}
}
