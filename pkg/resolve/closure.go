package resolve

import (
	"slices"

	"github.com/matzehuels/ovalmerge/pkg/oval"
)

// Closure is the set of element ids reachable from one definition, grouped
// by category. It only ever grows.
//
// The zero value is an empty closure ready to use.
type Closure struct {
	sets map[oval.Category]map[string]struct{}
	n    int
}

// NewClosure returns an empty closure.
func NewClosure() *Closure {
	return &Closure{}
}

// set returns the id set for c, creating it on first use.
func (c *Closure) set(cat oval.Category) map[string]struct{} {
	if c.sets == nil {
		c.sets = make(map[oval.Category]map[string]struct{})
	}
	s, ok := c.sets[cat]
	if !ok {
		s = make(map[string]struct{})
		c.sets[cat] = s
	}
	return s
}

// Add records id under cat and reports whether it was new.
func (c *Closure) Add(cat oval.Category, id string) bool {
	s := c.set(cat)
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	c.n++
	return true
}

// Has reports whether id is recorded under cat.
func (c *Closure) Has(cat oval.Category, id string) bool {
	_, ok := c.sets[cat][id]
	return ok
}

// IDs returns the ids recorded under cat in sorted order.
func (c *Closure) IDs(cat oval.Category) []string {
	s := c.sets[cat]
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Count returns the number of ids recorded under cat.
func (c *Closure) Count(cat oval.Category) int {
	return len(c.sets[cat])
}

// Len returns the total number of recorded ids.
func (c *Closure) Len() int { return c.n }

// Union adds every id of other to c.
func (c *Closure) Union(other *Closure) {
	if other == nil {
		return
	}
	for cat, s := range other.sets {
		for id := range s {
			c.Add(cat, id)
		}
	}
}

// Refs returns every member as a reference, ordered by category then id.
func (c *Closure) Refs() []oval.Ref {
	refs := make([]oval.Ref, 0, c.n)
	for _, cat := range oval.Categories {
		for _, id := range c.IDs(cat) {
			refs = append(refs, oval.Ref{Category: cat, ID: id})
		}
	}
	return refs
}
