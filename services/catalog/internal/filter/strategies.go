package filter

import "strings"

// All is the sentinel meaning "no constraint" for genre, status and type.
const All = "all"

// Strategy adds the constraints for the parameters it owns to q and returns it.
// A strategy never touches keys owned by another strategy, so the order in
// which strategies run does not change the result.
type Strategy interface {
	Apply(q Query, p Params) Query
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(q Query, p Params) Query

func (f StrategyFunc) Apply(q Query, p Params) Query { return f(q, p) }

var (
	Genre  Strategy = exactMatch(FieldGenre, func(p Params) string { return p.Genre })
	Status Strategy = exactMatch(FieldStatus, func(p Params) string { return p.Status })
	Type   Strategy = exactMatch(FieldType, func(p Params) string { return p.Type })

	// Search matches title, author or description case-insensitively.
	Search Strategy = StrategyFunc(func(q Query, p Params) Query {
		term := strings.TrimSpace(p.Search)
		if term == "" {
			return q
		}
		q[KeyOr] = Or(
			Query{FieldTitle: Contains(term)},
			Query{FieldAuthor: Contains(term)},
			Query{FieldDescription: Contains(term)},
		)
		return q
	})

	Date Strategy = StrategyFunc(func(q Query, p Params) Query {
		if p.StartDate == nil && p.EndDate == nil {
			return q
		}
		var gte, lte any
		if p.StartDate != nil {
			gte = *p.StartDate
		}
		if p.EndDate != nil {
			lte = *p.EndDate
		}
		q[FieldCreatedAt] = Range(gte, lte)
		return q
	})

	Views Strategy = StrategyFunc(func(q Query, p Params) Query {
		if p.MinViews == nil && p.MaxViews == nil {
			return q
		}
		var gte, lte any
		if p.MinViews != nil {
			gte = *p.MinViews
		}
		if p.MaxViews != nil {
			lte = *p.MaxViews
		}
		q[FieldViews] = Range(gte, lte)
		return q
	})
)

func exactMatch(field string, pick func(Params) string) Strategy {
	return StrategyFunc(func(q Query, p Params) Query {
		v := strings.TrimSpace(pick(p))
		if v == "" || strings.EqualFold(v, All) {
			return q
		}
		q[field] = Eq(v)
		return q
	})
}
