// Package migrate runs data migrations against a document store. Migrations
// are registered in code and tracked in a single bookkeeping document inside
// the store itself, so every backend gets migration support for free.
package migrate

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/artpar/kvorm/adapters/clock"
	"github.com/artpar/kvorm/model"
	"github.com/artpar/kvorm/ports"
)

// Func mutates documents through the registry. It must be safe to run once;
// the manager never re-runs an applied migration.
type Func func(ctx context.Context, reg *model.Registry) error

// Migration pairs an up and a down step under a stable id. The id is the
// identity used for bookkeeping; changing it makes the migration look new.
type Migration struct {
	ID   string
	Name string
	Up   Func
	Down Func
}

// Record is the persisted proof that a migration ran.
type Record struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AppliedAt string `json:"applied_at"`
	Checksum  string `json:"checksum"`
}

// Status reports one registered migration's state.
type Status struct {
	ID        string
	Name      string
	Applied   bool
	AppliedAt string
}

// ManagerConfig wires a Manager. Store and Registry are required.
type ManagerConfig struct {
	Namespace string
	Store     ports.DocumentStore
	Registry  *model.Registry
	Clock     ports.Clock
}

// Manager tracks registered migrations and their applied set.
type Manager struct {
	namespace  string
	store      ports.DocumentStore
	registry   *model.Registry
	clock      ports.Clock
	migrations []Migration
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("migrate: store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("migrate: registry is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = model.DefaultNamespace
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Manager{
		namespace: cfg.Namespace,
		store:     cfg.Store,
		registry:  cfg.Registry,
		clock:     cfg.Clock,
	}, nil
}

// Add registers a migration. Order of registration is the order of apply.
func (mg *Manager) Add(m Migration) {
	mg.migrations = append(mg.migrations, m)
}

// key returns the bookkeeping document's store key. The "kvorm" segment sits
// where a collection name would, keeping it out of every user collection's
// prefix scan.
func (mg *Manager) key() string {
	return mg.namespace + ":kvorm:migrations"
}

// Migrate runs every pending migration in registration order and returns the
// names of those applied. A failing up step stops the run; migrations applied
// before the failure stay recorded.
func (mg *Manager) Migrate(ctx context.Context) ([]string, error) {
	applied, err := mg.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range mg.migrations {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		if m.Up == nil {
			return names, fmt.Errorf("migrate: migration '%s' has no up step", m.ID)
		}
		if err := m.Up(ctx, mg.registry); err != nil {
			return names, fmt.Errorf("migrate: '%s' failed: %w", m.ID, err)
		}
		applied[m.ID] = Record{
			ID:        m.ID,
			Name:      m.Name,
			AppliedAt: mg.clock.Now().UTC().Format(time.RFC3339),
			Checksum:  Checksum(m.ID),
		}
		if err := mg.saveSet(ctx, applied); err != nil {
			return names, err
		}
		names = append(names, m.Name)
	}
	return names, nil
}

// Rollback undoes the most recently applied migrations, newest first, up to
// steps. Zero or negative steps roll back nothing. Records without a
// registered migration consume a step but are left in place, matching the
// apply-side bookkeeping they came from.
func (mg *Manager) Rollback(ctx context.Context, steps int) ([]string, error) {
	if steps <= 0 {
		return nil, nil
	}

	applied, err := mg.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(applied))
	for _, r := range applied {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].AppliedAt != records[j].AppliedAt {
			return records[i].AppliedAt > records[j].AppliedAt
		}
		// Later registrations roll back first when timestamps tie.
		return mg.index(records[i].ID) > mg.index(records[j].ID)
	})
	if steps < len(records) {
		records = records[:steps]
	}

	var names []string
	for _, r := range records {
		m, ok := mg.lookup(r.ID)
		if !ok || m.Down == nil {
			continue
		}
		if err := m.Down(ctx, mg.registry); err != nil {
			return names, fmt.Errorf("migrate: rollback of '%s' failed: %w", r.ID, err)
		}
		delete(applied, r.ID)
		if err := mg.saveSet(ctx, applied); err != nil {
			return names, err
		}
		names = append(names, r.Name)
	}
	return names, nil
}

// Status lists every registered migration in registration order with its
// applied state.
func (mg *Manager) Status(ctx context.Context) ([]Status, error) {
	applied, err := mg.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(mg.migrations))
	for _, m := range mg.migrations {
		s := Status{ID: m.ID, Name: m.Name}
		if r, ok := applied[m.ID]; ok {
			s.Applied = true
			s.AppliedAt = r.AppliedAt
		}
		out = append(out, s)
	}
	return out, nil
}

func (mg *Manager) lookup(id string) (Migration, bool) {
	for _, m := range mg.migrations {
		if m.ID == id {
			return m, true
		}
	}
	return Migration{}, false
}

func (mg *Manager) index(id string) int {
	for i, m := range mg.migrations {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (mg *Manager) appliedSet(ctx context.Context) (map[string]Record, error) {
	raw, err := mg.store.Get(ctx, mg.key())
	if err != nil {
		return nil, fmt.Errorf("migrate: reading applied set: %w", err)
	}
	if raw == nil {
		return map[string]Record{}, nil
	}
	var set map[string]Record
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("migrate: decoding applied set: %w", err)
	}
	return set, nil
}

func (mg *Manager) saveSet(ctx context.Context, set map[string]Record) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("migrate: encoding applied set: %w", err)
	}
	if err := mg.store.Set(ctx, mg.key(), raw); err != nil {
		return fmt.Errorf("migrate: writing applied set: %w", err)
	}
	return nil
}

// Checksum fingerprints a migration id. Stored alongside the record so a
// renamed or re-numbered migration is detectable.
func Checksum(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return strconv.FormatUint(h.Sum64(), 16)
}
