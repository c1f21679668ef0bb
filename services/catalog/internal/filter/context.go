package filter

// Context applies an ordered list of strategies. It is cheap to build; make
// one per request.
type Context struct {
	strategies []Strategy
}

func NewContext(strategies ...Strategy) *Context {
	return &Context{strategies: append([]Strategy(nil), strategies...)}
}

// NewStoryContext registers every story search strategy.
func NewStoryContext() *Context {
	return NewContext(Genre, Status, Type, Search, Date, Views)
}

func (c *Context) Add(s Strategy) {
	c.strategies = append(c.strategies, s)
}

func (c *Context) Clear() {
	c.strategies = nil
}

func (c *Context) Len() int { return len(c.strategies) }

// Apply folds every strategy, in registration order, over a copy of initial.
// initial itself is never modified.
func (c *Context) Apply(initial Query, p Params) Query {
	q := initial.Clone()
	for _, s := range c.strategies {
		q = s.Apply(q, p)
	}
	return q
}
