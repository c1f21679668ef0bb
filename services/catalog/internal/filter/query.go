// Package filter turns optional story search parameters into a composite
// query. Each parameter is handled by one Strategy; a Context folds an
// ordered list of strategies over a starting Query.
//
// A Query is storage-agnostic: the Postgres store renders it into a
// parameterised WHERE clause and the in-memory store evaluates it directly
// with Matches.
package filter

import (
	"strings"
	"time"
)

// Op is the kind of a Constraint.
type Op string

const (
	OpEq       Op = "$eq"
	OpIn       Op = "$in"
	OpContains Op = "$regex" // case-insensitive substring
	OpRange    Op = "$range"
	OpOr       Op = "$or"
)

// Story fields a Query may constrain.
const (
	FieldGenre       = "genre"
	FieldStatus      = "status"
	FieldType        = "type"
	FieldTitle       = "title"
	FieldAuthor      = "author"
	FieldDescription = "description"
	FieldCreatedAt   = "createdAt"
	FieldViews       = "views"

	// KeyOr holds a disjunction of sub-queries rather than a field constraint.
	KeyOr = "$or"
)

// Constraint restricts a single field. Which members are meaningful depends on Op.
type Constraint struct {
	Op     Op
	Value  any     // OpEq, OpContains
	Values []any   // OpIn
	Gte    any     // OpRange lower bound, nil when open
	Lte    any     // OpRange upper bound, nil when open
	Any    []Query // OpOr
}

func Eq(v any) Constraint { return Constraint{Op: OpEq, Value: v} }

func In(vs ...any) Constraint { return Constraint{Op: OpIn, Values: vs} }

func Contains(s string) Constraint { return Constraint{Op: OpContains, Value: s} }

// Range builds an inclusive range; pass nil for an open side.
func Range(gte, lte any) Constraint { return Constraint{Op: OpRange, Gte: gte, Lte: lte} }

func Or(qs ...Query) Constraint { return Constraint{Op: OpOr, Any: qs} }

// Query maps a field name (or KeyOr) to its constraint. All entries must hold.
type Query map[string]Constraint

// Clone returns a shallow copy; a nil Query clones to an empty one.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Matches reports whether a record satisfies every constraint in q.
// get returns the record's value for a field and whether the field exists.
func (q Query) Matches(get func(field string) (any, bool)) bool {
	for field, c := range q {
		if c.Op == OpOr {
			if !anyMatches(c.Any, get) {
				return false
			}
			continue
		}
		v, ok := get(field)
		if !ok || !c.matches(v) {
			return false
		}
	}
	return true
}

func anyMatches(qs []Query, get func(string) (any, bool)) bool {
	for _, sub := range qs {
		if sub.Matches(get) {
			return true
		}
	}
	return false
}

func (c Constraint) matches(v any) bool {
	switch c.Op {
	case OpEq:
		n, ok := compare(v, c.Value)
		return ok && n == 0
	case OpIn:
		for _, want := range c.Values {
			if n, ok := compare(v, want); ok && n == 0 {
				return true
			}
		}
		return false
	case OpContains:
		s, ok1 := v.(string)
		needle, ok2 := c.Value.(string)
		return ok1 && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(needle))
	case OpRange:
		if c.Gte != nil {
			if n, ok := compare(v, c.Gte); !ok || n < 0 {
				return false
			}
		}
		if c.Lte != nil {
			if n, ok := compare(v, c.Lte); !ok || n > 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// compare orders two values of the same kind; ok is false when the kinds differ.
func compare(a, b any) (n int, ok bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	xi, ok1 := toInt64(a)
	yi, ok2 := toInt64(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	switch {
	case xi < yi:
		return -1, true
	case xi > yi:
		return 1, true
	}
	return 0, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
