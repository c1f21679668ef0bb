package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/example/storyhub/services/catalog/internal/filter"
)

// columns whitelists the filter fields that may reach SQL.
var columns = map[string]string{
	filter.FieldGenre:       "genre",
	filter.FieldStatus:      "status",
	filter.FieldType:        "type",
	filter.FieldTitle:       "title",
	filter.FieldAuthor:      "author",
	filter.FieldDescription: "description",
	filter.FieldCreatedAt:   "created_at",
	filter.FieldViews:       "views",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// sqlBuilder renders a filter.Query into a WHERE clause with positional args.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// where returns a boolean SQL expression for q, "TRUE" when q is empty.
// Keys are rendered in sorted order so equal queries produce equal SQL.
func (b *sqlBuilder) where(q filter.Query) (string, error) {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		c := q[k]
		if c.Op == filter.OpOr {
			expr, err := b.or(c.Any)
			if err != nil {
				return "", err
			}
			parts = append(parts, expr)
			continue
		}

		col, ok := columns[k]
		if !ok {
			return "", fmt.Errorf("unknown filter field %q", k)
		}
		expr, err := b.constraint(col, c)
		if err != nil {
			return "", err
		}
		if expr != "" {
			parts = append(parts, expr)
		}
	}
	if len(parts) == 0 {
		return "TRUE", nil
	}
	return strings.Join(parts, " AND "), nil
}

func (b *sqlBuilder) or(branches []filter.Query) (string, error) {
	if len(branches) == 0 {
		return "FALSE", nil
	}
	exprs := make([]string, 0, len(branches))
	for _, sub := range branches {
		expr, err := b.where(sub)
		if err != nil {
			return "", err
		}
		exprs = append(exprs, "("+expr+")")
	}
	return "(" + strings.Join(exprs, " OR ") + ")", nil
}

func (b *sqlBuilder) constraint(col string, c filter.Constraint) (string, error) {
	switch c.Op {
	case filter.OpEq:
		return col + " = " + b.arg(c.Value), nil
	case filter.OpIn:
		if len(c.Values) == 0 {
			return "FALSE", nil
		}
		ph := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			ph = append(ph, b.arg(v))
		}
		return col + " IN (" + strings.Join(ph, ", ") + ")", nil
	case filter.OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("substring filter on %s needs a string", col)
		}
		return col + " ILIKE " + b.arg("%"+likeEscaper.Replace(s)+"%") + ` ESCAPE '\'`, nil
	case filter.OpRange:
		var parts []string
		if c.Gte != nil {
			parts = append(parts, col+" >= "+b.arg(c.Gte))
		}
		if c.Lte != nil {
			parts = append(parts, col+" <= "+b.arg(c.Lte))
		}
		return strings.Join(parts, " AND "), nil
	}
	return "", fmt.Errorf("unsupported filter op %q on %s", c.Op, col)
}

func orderBy(s SortOrder) string {
	switch s {
	case SortPopular:
		return "views DESC, id"
	case SortOldest:
		return "created_at ASC, id"
	case SortAlphabetical:
		return "title ASC, id"
	}
	return "created_at DESC, id"
}
