// Package refgraph exports the reference graph of an OVAL document.
//
// Every element carrying an id becomes a node, colored by category. Every
// reference edge found by [resolve.Refs] becomes a directed edge from the
// element holding the reference to its target. Applied to a merged
// document the graph shows which tests, objects, states and variables each
// surviving definition pulled in.
package refgraph

import (
	"github.com/beevik/etree"

	"github.com/matzehuels/ovalmerge/pkg/oval"
	"github.com/matzehuels/ovalmerge/pkg/resolve"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

// Node is one identified element.
type Node struct {
	ID       string
	Category oval.Category
	Tag      string
	Title    string // metadata/title, definitions only
}

// Edge is a reference from one element to another.
type Edge struct {
	From     string
	To       string
	Category oval.Category
}

// Graph is the reference graph of one document. Nodes are in section
// order, then document order; edges follow the order of their source node.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Build collects the nodes of every section under root and the edges
// between them. Edges whose target is not a node are kept; Dangling
// reports them.
func Build(root *etree.Element) *Graph {
	g := &Graph{}
	for _, c := range oval.Categories {
		sec := xmldoc.SectionOf(root, c)
		if sec == nil {
			continue
		}
		for _, el := range sec.ChildElements() {
			id, ok := xmldoc.ID(el)
			if !ok {
				continue
			}
			n := Node{ID: id, Category: c, Tag: el.FullTag()}
			if c == oval.Definition {
				n.Title, _ = xmldoc.ChildText(el, "metadata", "title")
			}
			g.Nodes = append(g.Nodes, n)

			seen := make(map[oval.Ref]struct{})
			for _, ref := range resolve.Refs(el) {
				if _, dup := seen[ref]; dup {
					continue
				}
				seen[ref] = struct{}{}
				g.Edges = append(g.Edges, Edge{From: id, To: ref.ID, Category: ref.Category})
			}
		}
	}
	return g
}

// Dangling returns edges whose target is not a node of g.
func (g *Graph) Dangling() []Edge {
	known := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		known[n.ID] = struct{}{}
	}
	var out []Edge
	for _, e := range g.Edges {
		if _, ok := known[e.To]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of nodes of category c.
func (g *Graph) Count(c oval.Category) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Category == c {
			n++
		}
	}
	return n
}
