package model

import (
	"context"

	"github.com/artpar/kvorm/domain/document"
	"github.com/artpar/kvorm/domain/query"
)

// Finder builds a query fluently and freezes it into a plan on execution.
// A Finder is single-use and not safe for concurrent mutation; build, run,
// discard.
type Finder struct {
	model *Model
	plan  query.Plan
}

// Query starts a new query against the collection.
func (m *Model) Query() *Finder {
	return &Finder{model: m}
}

// Filter adds one comparison. All filters AND together.
func (f *Finder) Filter(field string, op query.Op, value any) *Finder {
	f.plan.Filters = append(f.plan.Filters, query.Filter{Field: field, Op: op, Value: value})
	return f
}

// Where is shorthand for an equality filter.
func (f *Finder) Where(field string, value any) *Finder {
	return f.Filter(field, query.Eq, value)
}

// Sort orders results by field. Later calls replace earlier ones; there is
// one sort key.
func (f *Finder) Sort(field string, order query.Dir) *Finder {
	f.plan.Sort = &query.Sort{Field: field, Order: order}
	return f
}

// Skip drops the first n results after sorting.
func (f *Finder) Skip(n int) *Finder {
	f.plan.Skip = &n
	return f
}

// Limit caps the number of results after skipping.
func (f *Finder) Limit(n int) *Finder {
	f.plan.Limit = &n
	return f
}

// Plan returns the frozen plan built so far.
func (f *Finder) Plan() query.Plan {
	return f.plan
}

// Exec runs the query.
func (f *Finder) Exec(ctx context.Context) ([]document.Document, error) {
	return f.model.Run(ctx, f.plan)
}

// First runs the query and returns the first result, or (nil, nil) when
// nothing matches.
func (f *Finder) First(ctx context.Context) (document.Document, error) {
	one := 1
	plan := f.plan
	plan.Limit = &one
	docs, err := f.model.Run(ctx, plan)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// Count returns how many documents match the filters. Sort, skip, and
// limit do not affect the count.
func (f *Finder) Count(ctx context.Context) (int, error) {
	return f.model.Count(ctx, f.plan.Filters...)
}
