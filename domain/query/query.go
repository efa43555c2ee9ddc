// Package query evaluates declarative filter plans against documents in
// memory. Evaluation is total: a comparison can fail to match but never
// raises, so mixed-type filters degrade to non-matches instead of erroring.
// All functions are pure.
package query

import (
	"reflect"
	"sort"
	"strings"

	"github.com/artpar/kvorm/domain/document"
)

// Op is a filter comparison operator.
type Op string

const (
	Eq       Op = "eq"
	Ne       Op = "ne"
	Gt       Op = "gt"
	Gte      Op = "gte"
	Lt       Op = "lt"
	Lte      Op = "lte"
	Contains Op = "contains"
	In       Op = "in"
	NotIn    Op = "not_in"
)

// Dir is a sort direction.
type Dir string

const (
	Asc  Dir = "asc"
	Desc Dir = "desc"
)

// Filter is one field comparison. Filters compose as a conjunction; there
// is no OR or grouping.
type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"operator"`
	Value any    `json:"value"`
}

// Sort orders results by a single field.
type Sort struct {
	Field string `json:"field"`
	Order Dir    `json:"order"`
}

// Plan is a frozen query: filters, optional sort, optional pagination.
// The JSON form is the wire format accepted by the query endpoint.
type Plan struct {
	Filters []Filter `json:"filters,omitempty"`
	Sort    *Sort    `json:"sort,omitempty"`
	Skip    *int     `json:"skip,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
}

// Apply runs plan against docs: filter, then stable sort, then skip and
// limit, in that order. It returns a new slice and never mutates the input.
func Apply(docs []document.Document, plan Plan) []document.Document {
	out := make([]document.Document, 0, len(docs))
	for _, d := range docs {
		if Match(d, plan.Filters) {
			out = append(out, d)
		}
	}
	if plan.Sort != nil {
		sortDocs(out, *plan.Sort)
	}
	return paginate(out, plan.Skip, plan.Limit)
}

// Match reports whether doc satisfies every filter. An absent field reads
// as null.
func Match(doc document.Document, filters []Filter) bool {
	for _, f := range filters {
		if !matchOne(doc, f) {
			return false
		}
	}
	return true
}

func matchOne(doc document.Document, f Filter) bool {
	value := doc[f.Field]

	switch f.Op {
	case Eq:
		return document.Equal(value, f.Value)
	case Ne:
		return !document.Equal(value, f.Value)
	case Gt:
		c, ok := document.Compare(value, f.Value)
		return ok && c > 0
	case Gte:
		c, ok := document.Compare(value, f.Value)
		return ok && c >= 0
	case Lt:
		c, ok := document.Compare(value, f.Value)
		return ok && c < 0
	case Lte:
		c, ok := document.Compare(value, f.Value)
		return ok && c <= 0
	case Contains:
		return strings.Contains(document.Stringify(value), document.Stringify(f.Value))
	case In:
		set, ok := asArray(f.Value)
		if !ok {
			return false
		}
		return memberOf(set, value)
	case NotIn:
		// A non-array filter value degrades to no match, same as In.
		set, ok := asArray(f.Value)
		if !ok {
			return false
		}
		return !memberOf(set, value)
	}
	return false
}

func memberOf(set []any, v any) bool {
	for _, item := range set {
		if document.Equal(v, item) {
			return true
		}
	}
	return false
}

func asArray(v any) ([]any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case []any:
		return x, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// sortDocs sorts in place. Descending flips the comparison, not the final
// sequence, so the stable order of equal keys is preserved either way.
func sortDocs(docs []document.Document, s Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := document.SortCompare(docs[i][s.Field], docs[j][s.Field])
		if s.Order == Desc {
			return c > 0
		}
		return c < 0
	})
}

// paginate applies skip then limit. Nil or negative values mean unset;
// a skip past the end yields an empty result, not an error.
func paginate(docs []document.Document, skip, limit *int) []document.Document {
	start := 0
	if skip != nil && *skip > 0 {
		start = *skip
	}
	if start >= len(docs) {
		return []document.Document{}
	}
	docs = docs[start:]
	if limit != nil && *limit >= 0 && *limit < len(docs) {
		docs = docs[:*limit]
	}
	return docs
}
