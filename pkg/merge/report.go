package merge

import (
	"github.com/beevik/etree"

	"github.com/matzehuels/ovalmerge/pkg/oval"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

// DocumentStats summarizes what one input contributed.
type DocumentStats struct {
	Name        string `json:"name"`
	Definitions int    `json:"definitions"`
	Inventory   int    `json:"inventory"`
	Winners     int    `json:"winners"`
}

// Counts holds an element count per category.
type Counts struct {
	Definitions int `json:"definitions"`
	Tests       int `json:"tests"`
	Objects     int `json:"objects"`
	States      int `json:"states"`
	Variables   int `json:"variables"`
}

// Get returns the count for c.
func (c Counts) Get(cat oval.Category) int {
	switch cat {
	case oval.Definition:
		return c.Definitions
	case oval.Test:
		return c.Tests
	case oval.Object:
		return c.Objects
	case oval.State:
		return c.States
	case oval.Variable:
		return c.Variables
	}
	return 0
}

func (c *Counts) set(cat oval.Category, n int) {
	switch cat {
	case oval.Definition:
		c.Definitions = n
	case oval.Test:
		c.Tests = n
	case oval.Object:
		c.Objects = n
	case oval.State:
		c.States = n
	case oval.Variable:
		c.Variables = n
	}
}

// Total returns the sum over all categories.
func (c Counts) Total() int {
	return c.Definitions + c.Tests + c.Objects + c.States + c.Variables
}

// Report describes a finished merge run.
type Report struct {
	RunID      string          `json:"run_id"`
	Documents  []DocumentStats `json:"documents"`
	Packages   int             `json:"packages"`
	Superseded int             `json:"superseded"`
	Output     Counts          `json:"output"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// Report summarizes the run. out is the tree returned by Assemble; when nil
// the output counts are left at zero.
func (m *Merger) Report(out *etree.Document) *Report {
	r := &Report{
		RunID:      m.runID,
		Documents:  make([]DocumentStats, len(m.stats)),
		Packages:   len(m.order),
		Superseded: m.superseded,
	}
	copy(r.Documents, m.stats)
	for _, e := range m.entries {
		r.Documents[e.DocIndex].Winners++
	}
	if out != nil {
		for _, c := range oval.Categories {
			if sec := xmldoc.SectionOf(out.Root(), c); sec != nil {
				r.Output.set(c, len(sec.ChildElements()))
			}
		}
	}
	return r
}
