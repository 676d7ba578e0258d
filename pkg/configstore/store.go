// Package configstore holds provider configurations as copy-on-write snapshots.
package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/logging"
	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/sqlitedb"
)

// ErrNotFound is returned for unknown provider names.
var ErrNotFound = errors.New("provider not found")

// state is one published, immutable view of every provider.
type state struct {
	order   []string
	byName  map[string]models.ProviderConfig
	enabled []models.ProviderConfig
	version uint64
}

func newState(order []string, byName map[string]models.ProviderConfig, version uint64) *state {
	s := &state{order: order, byName: byName, version: version}
	for _, name := range order {
		if cfg := byName[name]; cfg.Enabled {
			s.enabled = append(s.enabled, cfg)
		}
	}
	// order already reflects insertion, so a stable sort breaks priority ties by it
	sort.SliceStable(s.enabled, func(i, j int) bool {
		return s.enabled[i].Priority < s.enabled[j].Priority
	})
	return s
}

// with returns a copy of s with cfgs inserted or replaced.
func (s *state) with(cfgs ...models.ProviderConfig) *state {
	order := append([]string(nil), s.order...)
	byName := make(map[string]models.ProviderConfig, len(s.byName)+len(cfgs))
	for k, v := range s.byName {
		byName[k] = v
	}
	for _, cfg := range cfgs {
		if _, ok := byName[cfg.Name]; !ok {
			order = append(order, cfg.Name)
		}
		byName[cfg.Name] = cfg.Clone()
	}
	return newState(order, byName, s.version+1)
}

// Store serves provider configurations. Readers load the current snapshot
// without locking; writers are serialized and publish a new snapshot only
// after validation and persistence succeed.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
	cur    atomic.Pointer[state]
}

// Open creates the store. Providers already persisted in db are restored;
// seeds are added only for names not yet persisted. A nil db keeps state in memory.
func Open(ctx context.Context, db *sql.DB, seeds []models.ProviderConfig, logger *zap.Logger) (*Store, error) {
	s := &Store{db: db, logger: logging.OrNop(logger)}
	s.cur.Store(newState(nil, map[string]models.ProviderConfig{}, 0))

	if db != nil {
		if err := sqlitedb.Migrate(db, `CREATE TABLE IF NOT EXISTS providers (
			name       TEXT PRIMARY KEY,
			position   INTEGER NOT NULL,
			config     TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`); err != nil {
			return nil, fmt.Errorf("migrate providers: %w", err)
		}
		persisted, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		if len(persisted) > 0 {
			s.cur.Store(s.cur.Load().with(persisted...))
		}
	}

	var fresh []models.ProviderConfig
	known := s.cur.Load().byName
	for _, cfg := range seeds {
		if _, ok := known[cfg.Name]; ok {
			continue
		}
		fresh = append(fresh, cfg)
	}
	if len(fresh) > 0 {
		if err := s.publish(ctx, fresh); err != nil {
			return nil, fmt.Errorf("seed providers: %w", err)
		}
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) ([]models.ProviderConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, config FROM providers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderConfig
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		var cfg models.ProviderConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("decode provider %s: %w", name, err)
		}
		cfg.Name = name
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// Get returns the configuration of one provider.
func (s *Store) Get(name string) (models.ProviderConfig, error) {
	cfg, ok := s.cur.Load().byName[name]
	if !ok {
		return models.ProviderConfig{}, fmt.Errorf("get %q: %w", name, ErrNotFound)
	}
	return cfg.Clone(), nil
}

// Snapshot returns the enabled providers ordered by ascending priority,
// ties broken by insertion order. The result comes from a single snapshot.
func (s *Store) Snapshot() []models.ProviderConfig {
	st := s.cur.Load()
	out := make([]models.ProviderConfig, len(st.enabled))
	copy(out, st.enabled)
	return out
}

// All returns every provider, enabled or not, in insertion order.
func (s *Store) All() []models.ProviderConfig {
	st := s.cur.Load()
	out := make([]models.ProviderConfig, 0, len(st.order))
	for _, name := range st.order {
		out = append(out, st.byName[name])
	}
	return out
}

// Version increments on every successful publication.
func (s *Store) Version() uint64 {
	return s.cur.Load().version
}

// Update applies a partial update to one provider. On any failure the
// previous configuration stays in effect.
func (s *Store) Update(ctx context.Context, name string, upd models.ProviderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.cur.Load().byName[name]
	if !ok {
		return fmt.Errorf("update %q: %w", name, ErrNotFound)
	}
	next := upd.Apply(cfg)
	next.Name = name
	if err := s.publishLocked(ctx, []models.ProviderConfig{next}); err != nil {
		return err
	}
	s.logger.Info("provider updated", zap.String("provider", name), zap.Bool("enabled", next.Enabled), zap.Int("priority", next.Priority))
	return nil
}

// Put creates or replaces one provider.
func (s *Store) Put(ctx context.Context, cfg models.ProviderConfig) error {
	return s.publish(ctx, []models.ProviderConfig{cfg})
}

// Sync creates or replaces every provider in cfgs as one publication.
// Providers not listed are left untouched.
func (s *Store) Sync(ctx context.Context, cfgs []models.ProviderConfig) error {
	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		if seen[cfg.Name] {
			return &ValidationError{Provider: cfg.Name, Fields: map[string]string{"name": "name is duplicated"}}
		}
		seen[cfg.Name] = true
	}
	if err := s.publish(ctx, cfgs); err != nil {
		return err
	}
	s.logger.Info("providers synced", zap.Int("count", len(cfgs)))
	return nil
}

func (s *Store) publish(ctx context.Context, cfgs []models.ProviderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked(ctx, cfgs)
}

func (s *Store) publishLocked(ctx context.Context, cfgs []models.ProviderConfig) error {
	for _, cfg := range cfgs {
		if err := Validate(cfg); err != nil {
			return err
		}
	}
	next := s.cur.Load().with(cfgs...)
	if err := s.persist(ctx, next, cfgs); err != nil {
		return err
	}
	s.cur.Store(next)
	return nil
}

func (s *Store) persist(ctx context.Context, st *state, cfgs []models.ProviderConfig) error {
	if s.db == nil {
		return nil
	}
	position := make(map[string]int, len(st.order))
	for i, name := range st.order {
		position[name] = i
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persist: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, cfg := range cfgs {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode provider %s: %w", cfg.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO providers (name, position, config, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
			cfg.Name, position[cfg.Name], string(raw), now,
		); err != nil {
			return fmt.Errorf("persist provider %s: %w", cfg.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist: %w", err)
	}
	return nil
}
