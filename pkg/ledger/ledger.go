// Package ledger tracks per-provider spend against daily and monthly budgets.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/logging"
	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/sqlitedb"
)

// epsilon absorbs float rounding when comparing spend to a ceiling.
const epsilon = 1e-9

// ErrNegativeCost is returned when recording a negative amount.
var ErrNegativeCost = errors.New("negative cost")

type entry struct {
	dayStart   time.Time
	monthStart time.Time
	today      float64
	month      float64
	reserved   float64
}

// Ledger keeps running spend per provider. A single mutex guards every
// entry and the journal writes, so a rollover, a record and its journal
// row never interleave.
type Ledger struct {
	mu              sync.Mutex
	db              *sql.DB
	loc             *time.Location
	now             func() time.Time
	entries         map[string]*entry
	journalFailures int64
	logger          *zap.Logger
}

// New creates a ledger whose day and month boundaries fall at midnight in
// loc. A nil db keeps spend in memory only.
func New(db *sql.DB, loc *time.Location, logger *zap.Logger) (*Ledger, error) {
	if loc == nil {
		loc = time.UTC
	}
	if db != nil {
		if err := sqlitedb.Migrate(db,
			`CREATE TABLE IF NOT EXISTS spend_records (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				provider   TEXT NOT NULL,
				cost       REAL NOT NULL,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_spend_provider_time ON spend_records(provider, created_at)`,
		); err != nil {
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return &Ledger{
		db:      db,
		loc:     loc,
		now:     time.Now,
		entries: make(map[string]*entry),
		logger:  logging.OrNop(logger),
	}, nil
}

// Location returns the time zone of the ledger's boundaries.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

func (l *Ledger) dayStart(t time.Time) time.Time {
	t = t.In(l.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, l.loc)
}

func (l *Ledger) monthStart(t time.Time) time.Time {
	t = t.In(l.loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, l.loc)
}

// entryLocked returns the entry for name, rolled forward to now.
func (l *Ledger) entryLocked(name string, now time.Time) *entry {
	e, ok := l.entries[name]
	if !ok {
		e = &entry{dayStart: l.dayStart(now), monthStart: l.monthStart(now)}
		l.entries[name] = e
		return e
	}
	l.rollDaily(e, now)
	l.rollMonthly(e, now)
	return e
}

func (l *Ledger) rollDaily(e *entry, now time.Time) bool {
	if ds := l.dayStart(now); e.dayStart.Before(ds) {
		e.dayStart = ds
		e.today = 0
		return true
	}
	return false
}

func (l *Ledger) rollMonthly(e *entry, now time.Time) bool {
	if ms := l.monthStart(now); e.monthStart.Before(ms) {
		e.monthStart = ms
		e.month = 0
		return true
	}
	return false
}

func fits(e *entry, projected float64, b models.Budget) bool {
	if b.Daily != nil && e.today+e.reserved+projected > *b.Daily+epsilon {
		return false
	}
	if b.Monthly != nil && e.month+e.reserved+projected > *b.Monthly+epsilon {
		return false
	}
	return true
}

// IsEligible reports whether spending projected more stays within both
// ceilings of b. A nil ceiling is unlimited.
func (l *Ledger) IsEligible(name string, projected float64, b models.Budget) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fits(l.entryLocked(name, l.now()), projected, b)
}

// Record adds cost to the provider's daily and monthly spend and appends it
// to the journal. A failed journal write is returned, but the spend stays
// counted in memory so the ceiling still holds.
func (l *Ledger) Record(ctx context.Context, name string, cost float64) error {
	if cost < 0 {
		return fmt.Errorf("record %s: %w", name, ErrNegativeCost)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.addLocked(name, cost, now)
	return l.journalLocked(ctx, name, cost, now)
}

func (l *Ledger) addLocked(name string, cost float64, now time.Time) {
	e := l.entryLocked(name, now)
	e.today += cost
	e.month += cost
}

func (l *Ledger) journalLocked(ctx context.Context, name string, cost float64, at time.Time) error {
	if l.db == nil || cost == 0 {
		return nil
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO spend_records (provider, cost, created_at) VALUES (?, ?, ?)`,
		name, cost, at.Unix(),
	)
	if err != nil {
		l.journalFailures++
		l.logger.Error("spend not journaled",
			zap.String("provider", name),
			zap.Float64("cost", cost),
			zap.Int64("failures", l.journalFailures),
			zap.Error(err),
		)
		return fmt.Errorf("journal spend: %w", err)
	}
	return nil
}

// JournalFailures returns how many recorded costs are counted in memory
// but missing from the journal.
func (l *Ledger) JournalFailures() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.journalFailures
}

// Reservation holds projected spend against a provider's budget until it is
// committed or released.
type Reservation struct {
	l      *Ledger
	name   string
	amount float64
	done   bool
}

// Reserve checks eligibility and reserves projected in one step.
func (l *Ledger) Reserve(name string, projected float64, b models.Budget) (*Reservation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entryLocked(name, l.now())
	if !fits(e, projected, b) {
		return nil, false
	}
	e.reserved += projected
	return &Reservation{l: l, name: name, amount: projected}, true
}

// Commit replaces the reservation with the actual cost.
func (r *Reservation) Commit(ctx context.Context, actual float64) error {
	if actual < 0 {
		return fmt.Errorf("commit %s: %w", r.name, ErrNegativeCost)
	}
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.done {
		return nil
	}
	r.done = true
	now := l.now()
	l.unreserveLocked(r.name, r.amount, now)
	l.addLocked(r.name, actual, now)
	return l.journalLocked(ctx, r.name, actual, now)
}

// Release drops the reservation without recording spend.
func (r *Reservation) Release() {
	l := r.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	l.unreserveLocked(r.name, r.amount, l.now())
}

func (l *Ledger) unreserveLocked(name string, amount float64, now time.Time) {
	e := l.entryLocked(name, now)
	e.reserved -= amount
	if e.reserved < epsilon {
		e.reserved = 0
	}
}

// UsageRate reports spend and the fraction of each ceiling consumed.
func (l *Ledger) UsageRate(name string, b models.Budget) models.LedgerUsage {
	l.mu.Lock()
	e := l.entryLocked(name, l.now())
	u := models.LedgerUsage{
		Provider:       name,
		DayStart:       e.dayStart,
		MonthStart:     e.monthStart,
		SpentToday:     e.today,
		SpentThisMonth: e.month,
		Reserved:       e.reserved,
	}
	l.mu.Unlock()

	u.DailyRate = usageRate(u.SpentToday, b.Daily)
	u.MonthlyRate = usageRate(u.SpentThisMonth, b.Monthly)
	return u
}

// usageRate is spent over limit. A zero ceiling counts as fully consumed.
func usageRate(spent float64, limit *float64) float64 {
	switch {
	case limit == nil:
		return 0
	case *limit <= 0:
		return 1
	default:
		return spent / *limit
	}
}

// ResetDaily rolls every entry whose day has ended. It returns the number of
// entries reset.
func (l *Ledger) ResetDaily() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for _, e := range l.entries {
		if l.rollDaily(e, now) {
			n++
		}
	}
	return n
}

// ResetMonthly rolls every entry whose month has ended.
func (l *Ledger) ResetMonthly() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for _, e := range l.entries {
		if l.rollMonthly(e, now) {
			n++
		}
	}
	return n
}

// Load rebuilds the current day's and month's spend from the journal,
// replacing any in-memory totals.
func (l *Ledger) Load(ctx context.Context) error {
	if l.db == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	ds, ms := l.dayStart(now), l.monthStart(now)

	rows, err := l.db.QueryContext(ctx,
		`SELECT provider,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN cost ELSE 0 END), 0),
			COALESCE(SUM(cost), 0)
		 FROM spend_records WHERE created_at >= ? GROUP BY provider`,
		ds.Unix(), ms.Unix(),
	)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]*entry)
	for rows.Next() {
		var name string
		var today, month float64
		if err := rows.Scan(&name, &today, &month); err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
		loaded[name] = &entry{dayStart: ds, monthStart: ms, today: today, month: month}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	for name, e := range l.entries {
		if _, ok := loaded[name]; !ok {
			loaded[name] = &entry{dayStart: ds, monthStart: ms, reserved: e.reserved}
			continue
		}
		loaded[name].reserved = e.reserved
	}
	l.entries = loaded
	l.logger.Info("ledger loaded", zap.Int("providers", len(loaded)))
	return nil
}

// Records returns journal entries, newest first. An empty provider matches all.
func (l *Ledger) Records(ctx context.Context, provider string, since time.Time, limit int) ([]models.SpendRecord, error) {
	if l.db == nil {
		return nil, nil
	}
	q := `SELECT id, provider, cost, created_at FROM spend_records WHERE created_at >= ?`
	args := []any{since.Unix()}
	if provider != "" {
		q += " AND provider = ?"
		args = append(args, provider)
	}
	q += " ORDER BY created_at DESC, id DESC"
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query spend: %w", err)
	}
	defer rows.Close()

	var out []models.SpendRecord
	for rows.Next() {
		var r models.SpendRecord
		var ts int64
		if err := rows.Scan(&r.ID, &r.Provider, &r.Cost, &ts); err != nil {
			return nil, fmt.Errorf("scan spend: %w", err)
		}
		r.CreatedAt = time.Unix(ts, 0).In(l.loc)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Providers returns the names the ledger has seen, sorted.
func (l *Ledger) Providers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for name := range l.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
