package testfixtures

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator hands out record identifiers of the form prefix-N, starting at
// one. Stacks share one generator across services, so users, rules, sessions
// and activities draw from the same sequence.
type IDGenerator struct {
	prefix string
	issued atomic.Uint64
}

// NewIDGenerator returns a generator for prefix, defaulting to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	return g.prefix + "-" + strconv.FormatUint(g.issued.Add(1), 10)
}

// NextFunc is Next in the shape services take. A nil generator yields empty
// identifiers.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued reports how many identifiers have been handed out.
func (g *IDGenerator) Issued() uint64 {
	return g.issued.Load()
}
