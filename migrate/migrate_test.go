package migrate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/kvorm/adapters/clock"
	"github.com/artpar/kvorm/adapters/memory"
	"github.com/artpar/kvorm/domain/document"
	"github.com/artpar/kvorm/domain/schema"
	"github.com/artpar/kvorm/migrate"
	"github.com/artpar/kvorm/model"
)

func seedUsers(n int) migrate.Func {
	return func(ctx context.Context, reg *model.Registry) error {
		m, _ := reg.Model("users")
		for i := 0; i < n; i++ {
			if _, err := m.Create(ctx, document.Document{"name": "seeded"}); err != nil {
				return err
			}
		}
		return nil
	}
}

func wipeUsers(ctx context.Context, reg *model.Registry) error {
	m, _ := reg.Model("users")
	_, err := m.DeleteMany(ctx)
	return err
}

func newManager(t *testing.T) (*migrate.Manager, *model.Registry, *clock.Fake) {
	t.Helper()
	store := memory.NewDocumentStore()
	reg, err := model.NewRegistry(model.RegistryConfig{
		Namespace: "test",
		Store:     store,
		Collections: map[string]schema.Schema{
			"users": {"name": {Type: document.KindString}},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	fc := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	mg, err := migrate.NewManager(migrate.ManagerConfig{
		Namespace: "test",
		Store:     store,
		Registry:  reg,
		Clock:     fc,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mg, reg, fc
}

func TestMigrate_AppliesPendingInOrder(t *testing.T) {
	mg, reg, _ := newManager(t)
	ctx := context.Background()

	mg.Add(migrate.Migration{ID: "001", Name: "seed two users", Up: seedUsers(2), Down: wipeUsers})
	mg.Add(migrate.Migration{ID: "002", Name: "seed one more", Up: seedUsers(1), Down: wipeUsers})

	names, err := mg.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if len(names) != 2 || names[0] != "seed two users" || names[1] != "seed one more" {
		t.Errorf("applied = %v", names)
	}

	m, _ := reg.Model("users")
	if n, _ := m.Count(ctx); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}

	// A second run has nothing left to do.
	names, err = mg.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no-op, applied %v", names)
	}
}

func TestMigrate_StopsOnFailure(t *testing.T) {
	mg, reg, _ := newManager(t)
	ctx := context.Background()

	boom := errors.New("boom")
	mg.Add(migrate.Migration{ID: "001", Name: "first", Up: seedUsers(1), Down: wipeUsers})
	mg.Add(migrate.Migration{ID: "002", Name: "broken", Up: func(context.Context, *model.Registry) error { return boom }})
	mg.Add(migrate.Migration{ID: "003", Name: "never runs", Up: seedUsers(5), Down: wipeUsers})

	names, err := mg.Migrate(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if len(names) != 1 || names[0] != "first" {
		t.Errorf("applied before failure = %v, want [first]", names)
	}

	m, _ := reg.Model("users")
	if n, _ := m.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	// The failed and unreached migrations remain pending.
	status, err := mg.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status[0].Applied || status[1].Applied || status[2].Applied {
		t.Errorf("status = %+v", status)
	}
}

func TestStatus(t *testing.T) {
	mg, _, fc := newManager(t)
	ctx := context.Background()

	mg.Add(migrate.Migration{ID: "001", Name: "seed", Up: seedUsers(1), Down: wipeUsers})
	mg.Add(migrate.Migration{ID: "002", Name: "later", Up: seedUsers(1), Down: wipeUsers})

	if _, err := mg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	status, err := mg.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(status))
	}
	want := fc.Now().UTC().Format(time.RFC3339)
	for _, s := range status {
		if !s.Applied {
			t.Errorf("%s not applied", s.ID)
		}
		if s.AppliedAt != want {
			t.Errorf("%s applied_at = %s, want %s", s.ID, s.AppliedAt, want)
		}
	}
}

func TestRollback_NewestFirst(t *testing.T) {
	mg, _, fc := newManager(t)
	ctx := context.Background()

	var undone []string
	down := func(name string) migrate.Func {
		return func(ctx context.Context, reg *model.Registry) error {
			undone = append(undone, name)
			return nil
		}
	}

	mg.Add(migrate.Migration{ID: "001", Name: "one", Up: seedUsers(1), Down: down("one")})
	mg.Add(migrate.Migration{ID: "002", Name: "two", Up: seedUsers(1), Down: down("two")})
	fc.Advance(time.Minute)
	if _, err := mg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	names, err := mg.Rollback(ctx, 1)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if len(names) != 1 || names[0] != "two" {
		t.Errorf("rolled back = %v, want [two]", names)
	}
	if len(undone) != 1 || undone[0] != "two" {
		t.Errorf("down calls = %v, want [two]", undone)
	}

	status, _ := mg.Status(ctx)
	if !status[0].Applied || status[1].Applied {
		t.Errorf("status after rollback = %+v", status)
	}

	// Re-running migrate re-applies only the rolled back one.
	names, err = mg.Migrate(ctx)
	if err != nil {
		t.Fatalf("re-Migrate failed: %v", err)
	}
	if len(names) != 1 || names[0] != "two" {
		t.Errorf("re-applied = %v, want [two]", names)
	}
}

func TestRollback_NonPositiveSteps(t *testing.T) {
	mg, _, _ := newManager(t)
	ctx := context.Background()

	mg.Add(migrate.Migration{ID: "001", Name: "seed", Up: seedUsers(1), Down: wipeUsers})
	if _, err := mg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	for _, steps := range []int{0, -1} {
		names, err := mg.Rollback(ctx, steps)
		if err != nil {
			t.Fatalf("Rollback(%d) error: %v", steps, err)
		}
		if len(names) != 0 {
			t.Errorf("Rollback(%d) = %v, want nothing rolled back", steps, names)
		}
	}

	status, err := mg.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status[0].Applied {
		t.Error("migration lost its applied record")
	}
}

func TestRollback_MoreStepsThanApplied(t *testing.T) {
	mg, _, _ := newManager(t)
	ctx := context.Background()

	mg.Add(migrate.Migration{ID: "001", Name: "only", Up: seedUsers(1), Down: wipeUsers})
	if _, err := mg.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	names, err := mg.Rollback(ctx, 10)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("rolled back = %v, want one entry", names)
	}
}

func TestChecksum_Stable(t *testing.T) {
	a := migrate.Checksum("001_seed")
	b := migrate.Checksum("001_seed")
	c := migrate.Checksum("002_seed")
	if a != b {
		t.Error("checksum not deterministic")
	}
	if a == c {
		t.Error("distinct ids share a checksum")
	}
}

func TestNewManager_Validation(t *testing.T) {
	if _, err := migrate.NewManager(migrate.ManagerConfig{}); err == nil {
		t.Error("expected error without store")
	}
	if _, err := migrate.NewManager(migrate.ManagerConfig{Store: memory.NewDocumentStore()}); err == nil {
		t.Error("expected error without registry")
	}
}
