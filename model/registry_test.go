package model_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/artpar/kvorm/adapters/memory"
	"github.com/artpar/kvorm/domain/document"
	"github.com/artpar/kvorm/domain/schema"
	"github.com/artpar/kvorm/model"
)

func newTestRegistry(t *testing.T, dynamic bool) *model.Registry {
	t.Helper()
	r, err := model.NewRegistry(model.RegistryConfig{
		Namespace: "test",
		Store:     memory.NewDocumentStore(),
		Collections: map[string]schema.Schema{
			"users":    userSchema,
			"articles": {"title": {Type: document.KindString, Required: true}},
		},
		Dynamic: dynamic,
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return r
}

func TestRegistry_Lookup(t *testing.T) {
	r := newTestRegistry(t, false)

	m, ok := r.Model("users")
	if !ok {
		t.Fatal("expected users model")
	}
	if m.Collection() != "users" {
		t.Errorf("Collection = %s, want users", m.Collection())
	}

	if _, ok := r.Model("ghosts"); ok {
		t.Error("expected miss for undeclared collection")
	}
}

func TestRegistry_RequiresStore(t *testing.T) {
	if _, err := model.NewRegistry(model.RegistryConfig{}); err == nil {
		t.Error("expected error without store")
	}
}

func TestRegistry_RejectsBadSchema(t *testing.T) {
	_, err := model.NewRegistry(model.RegistryConfig{
		Store: memory.NewDocumentStore(),
		Collections: map[string]schema.Schema{
			"bad": {"f": {Type: "integer"}},
		},
	})
	if err == nil {
		t.Error("expected error for malformed collection schema")
	}
}

func TestRegistry_Dynamic(t *testing.T) {
	r := newTestRegistry(t, true)

	m, ok := r.Model("events")
	if !ok {
		t.Fatal("expected dynamic model for unknown collection")
	}

	// Schemaless: anything goes.
	if _, err := m.Create(context.Background(), document.Document{"k": "v"}); err != nil {
		t.Errorf("Create on dynamic model failed: %v", err)
	}

	// Same instance on the next lookup.
	again, _ := r.Model("events")
	if again != m {
		t.Error("expected the dynamic model to be remembered")
	}

	if _, ok := r.Model(""); ok {
		t.Error("expected miss for empty collection name")
	}
}

func TestRegistry_Collections(t *testing.T) {
	r := newTestRegistry(t, false)

	got := r.Collections()
	want := []string{"articles", "users"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collections = %v, want %v", got, want)
	}
}

func TestRegistry_Reload(t *testing.T) {
	r := newTestRegistry(t, false)

	err := r.Reload(map[string]schema.Schema{
		"users":    userSchema,
		"sessions": {},
	})
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if _, ok := r.Model("articles"); ok {
		t.Error("expected articles to drop out after reload")
	}
	if _, ok := r.Model("sessions"); !ok {
		t.Error("expected sessions after reload")
	}

	// A bad schema set leaves the registry untouched.
	err = r.Reload(map[string]schema.Schema{"bad": {"f": {Type: "integer"}}})
	if err == nil {
		t.Fatal("expected reload error for malformed schema")
	}
	if _, ok := r.Model("users"); !ok {
		t.Error("expected previous set to survive a failed reload")
	}
}
