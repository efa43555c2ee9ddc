// Package model implements the document model facade: schema-validated CRUD
// and in-memory querying over any DocumentStore backend. A model binds one
// collection to one schema; the facade owns the reserved fields (id,
// created_at, updated_at) and the key layout "<namespace>:<collection>:<id>".
//
// Storage errors pass through unchanged. The facade never retries, never
// logs, and never swallows a failure.
package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/kvorm/adapters/clock"
	"github.com/artpar/kvorm/adapters/idgen"
	"github.com/artpar/kvorm/adapters/random"
	"github.com/artpar/kvorm/domain/document"
	"github.com/artpar/kvorm/domain/query"
	"github.com/artpar/kvorm/domain/schema"
	"github.com/artpar/kvorm/domain/validate"
	"github.com/artpar/kvorm/ports"
)

// DefaultNamespace prefixes keys when Config.Namespace is empty.
const DefaultNamespace = "kvorm"

// Operation names reported to the Observer.
const (
	opCreate     = "create"
	opFindByID   = "find_by_id"
	opFind       = "find"
	opFindOne    = "find_one"
	opUpdate     = "update"
	opDelete     = "delete"
	opDeleteMany = "delete_many"
	opCount      = "count"
	opExists     = "exists"
	opQuery      = "query"
)

// NotFoundError reports an update against a document that does not exist.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document '%s' not found in collection '%s'", e.ID, e.Collection)
}

// Config assembles a Model. Store and Collection are required; everything
// else has a sensible default.
type Config struct {
	Namespace  string              // key namespace, defaults to DefaultNamespace
	Collection string              // collection name, required
	Schema     schema.Schema       // nil means schemaless: everything passes
	Store      ports.DocumentStore // required
	Clock      ports.Clock         // defaults to the system clock
	IDGen      ports.IDGenerator   // defaults to timestamp+random IDs
	Observer   Observer            // defaults to a no-op
}

// Model is the facade for one collection.
type Model struct {
	namespace  string
	collection string
	schema     schema.Schema
	store      ports.DocumentStore
	clock      ports.Clock
	idgen      ports.IDGenerator
	observer   Observer
}

// New builds a Model, validating the schema once up front.
func New(cfg Config) (*Model, error) {
	if cfg.Collection == "" {
		return nil, errors.New("model: collection is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("model: store is required")
	}
	if cfg.Schema != nil {
		if err := cfg.Schema.Validate(); err != nil {
			return nil, fmt.Errorf("model: collection %q: %w", cfg.Collection, err)
		}
	}

	m := &Model{
		namespace:  cfg.Namespace,
		collection: cfg.Collection,
		schema:     cfg.Schema,
		store:      cfg.Store,
		clock:      cfg.Clock,
		idgen:      cfg.IDGen,
		observer:   cfg.Observer,
	}
	if m.namespace == "" {
		m.namespace = DefaultNamespace
	}
	if m.clock == nil {
		m.clock = clock.Real{}
	}
	if m.idgen == nil {
		m.idgen = idgen.NewObject(m.clock, random.Real{})
	}
	if m.observer == nil {
		m.observer = NopObserver{}
	}
	return m, nil
}

// Collection returns the collection name.
func (m *Model) Collection() string { return m.collection }

// Namespace returns the key namespace.
func (m *Model) Namespace() string { return m.namespace }

func (m *Model) key(id string) string {
	return m.namespace + ":" + m.collection + ":" + id
}

func (m *Model) prefix() string {
	return m.namespace + ":" + m.collection + ":"
}

func (m *Model) now() string {
	return m.clock.Now().UTC().Format(time.RFC3339)
}

func (m *Model) finish(op string, start time.Time, err error) {
	m.observer.Op(m.collection, op, time.Since(start), err)
	if err != nil {
		if field, ok := validate.FailedField(err); ok {
			m.observer.ValidationFailure(m.collection, field)
		}
	}
}

// Create validates data against the full schema, assigns an id when absent,
// stamps created_at and updated_at, and persists the document. The returned
// document is the stored form; the input map is never mutated.
func (m *Model) Create(ctx context.Context, data document.Document) (doc document.Document, err error) {
	start := time.Now()
	defer func() { m.finish(opCreate, start, err) }()

	doc = document.Clone(data)
	if doc == nil {
		doc = document.Document{}
	}

	if err = validate.Validate(ctx, m.schema, doc); err != nil {
		return nil, err
	}

	id := ""
	if v, ok := doc[document.FieldID]; ok && v != nil {
		id = document.Stringify(v)
	}
	if id == "" {
		id = m.idgen.New()
	}
	doc[document.FieldID] = id

	now := m.now()
	doc[document.FieldCreatedAt] = now
	doc[document.FieldUpdatedAt] = now

	raw, err := document.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err = m.store.Set(ctx, m.key(id), raw); err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByID fetches one document. A missing id is not an error: it returns
// (nil, nil).
func (m *Model) FindByID(ctx context.Context, id string) (doc document.Document, err error) {
	start := time.Now()
	defer func() { m.finish(opFindByID, start, err) }()

	raw, err := m.store.Get(ctx, m.key(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return document.Unmarshal(raw)
}

// Find returns every document in the collection, in key order.
func (m *Model) Find(ctx context.Context) (docs []document.Document, err error) {
	start := time.Now()
	defer func() { m.finish(opFind, start, err) }()

	return m.scan(ctx)
}

// FindOne returns the first document matching all filters, or (nil, nil).
func (m *Model) FindOne(ctx context.Context, filters ...query.Filter) (doc document.Document, err error) {
	start := time.Now()
	defer func() { m.finish(opFindOne, start, err) }()

	docs, err := m.scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if query.Match(d, filters) {
			return d, nil
		}
	}
	return nil, nil
}

// Update validates patch against the schema in partial mode, shallow-merges
// it onto the stored document, re-stamps updated_at, and persists. The id
// and created_at of the stored document always win over patch values.
// A missing id yields a NotFoundError.
func (m *Model) Update(ctx context.Context, id string, patch document.Document) (doc document.Document, err error) {
	start := time.Now()
	defer func() { m.finish(opUpdate, start, err) }()

	if err = validate.ValidatePartial(ctx, m.schema, patch); err != nil {
		return nil, err
	}

	raw, err := m.store.Get(ctx, m.key(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &NotFoundError{Collection: m.collection, ID: id}
	}
	existing, err := document.Unmarshal(raw)
	if err != nil {
		return nil, err
	}

	merged := document.Merge(existing, patch)
	merged[document.FieldID] = existing[document.FieldID]
	merged[document.FieldCreatedAt] = existing[document.FieldCreatedAt]
	merged[document.FieldUpdatedAt] = m.now()

	out, err := document.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if err = m.store.Set(ctx, m.key(id), out); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes a document and reports whether it existed. Deleting a
// missing id is not an error.
func (m *Model) Delete(ctx context.Context, id string) (existed bool, err error) {
	start := time.Now()
	defer func() { m.finish(opDelete, start, err) }()

	return m.store.Delete(ctx, m.key(id))
}

// DeleteMany removes every document matching all filters and returns how
// many were deleted.
func (m *Model) DeleteMany(ctx context.Context, filters ...query.Filter) (deleted int, err error) {
	start := time.Now()
	defer func() { m.finish(opDeleteMany, start, err) }()

	docs, err := m.scan(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		if !query.Match(d, filters) {
			continue
		}
		id, _ := d[document.FieldID].(string)
		if id == "" {
			continue
		}
		existed, err := m.store.Delete(ctx, m.key(id))
		if err != nil {
			return deleted, err
		}
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

// Count returns the number of documents matching all filters. With no
// filters it counts keys without fetching a single document.
func (m *Model) Count(ctx context.Context, filters ...query.Filter) (n int, err error) {
	start := time.Now()
	defer func() { m.finish(opCount, start, err) }()

	if len(filters) == 0 {
		keys, err := m.store.Keys(ctx, m.prefix())
		if err != nil {
			return 0, err
		}
		return len(keys), nil
	}

	docs, err := m.scan(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		if query.Match(d, filters) {
			n++
		}
	}
	return n, nil
}

// Exists reports whether a document with this id is stored.
func (m *Model) Exists(ctx context.Context, id string) (ok bool, err error) {
	start := time.Now()
	defer func() { m.finish(opExists, start, err) }()

	return m.store.Exists(ctx, m.key(id))
}

// Run executes a frozen query plan: scan, filter, sort, paginate.
func (m *Model) Run(ctx context.Context, plan query.Plan) (docs []document.Document, err error) {
	start := time.Now()
	defer func() { m.finish(opQuery, start, err) }()

	all, err := m.scan(ctx)
	if err != nil {
		return nil, err
	}
	return query.Apply(all, plan), nil
}

// scan fetches the whole collection. Every query is a full scan by
// contract; the Observer's Scan hook makes the cost visible. Records that
// fail to decode are skipped, not fatal.
func (m *Model) scan(ctx context.Context) ([]document.Document, error) {
	keys, err := m.store.Keys(ctx, m.prefix())
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, 0, len(keys))
	for _, k := range keys {
		raw, err := m.store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			// Deleted between Keys and Get.
			continue
		}
		doc, err := document.Unmarshal(raw)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	m.observer.Scan(m.collection, len(docs))
	return docs, nil
}
