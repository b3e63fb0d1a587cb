package refgraph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/ovalmerge/pkg/oval"
)

// Format names accepted by the graph command.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

// Options configures DOT output.
type Options struct {
	// Detailed adds the element tag, and for definitions the package title,
	// to node labels. When false, only the id is shown.
	Detailed bool
}

var fillColors = map[oval.Category]string{
	oval.Definition: "#fde68a",
	oval.Test:       "#bfdbfe",
	oval.Object:     "#bbf7d0",
	oval.State:      "#fecaca",
	oval.Variable:   "#e9d5ff",
}

// ToDOT converts g to Graphviz DOT. The result can be rendered with
// [RenderSVG].
func ToDOT(g *Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph oval {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("  edge [fontsize=9, color=\"#6b7280\"];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%q];\n", n.ID, fmtLabel(n, opts.Detailed), fillColors[n.Category])
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		attrs := []string{fmt.Sprintf("label=%q", e.Category.String())}
		if e.Category == oval.Definition {
			attrs = append(attrs, "style=dashed")
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n Node, detailed bool) string {
	if !detailed {
		return n.ID
	}
	parts := []string{n.ID, n.Tag}
	if n.Title != "" {
		parts = append(parts, n.Title)
	}
	return strings.Join(parts, "\n")
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

// Render returns g in the named format.
func Render(ctx context.Context, g *Graph, format string, opts Options) ([]byte, error) {
	dot := ToDOT(g, opts)
	switch format {
	case FormatDOT, "":
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(ctx, dot)
	}
	return nil, fmt.Errorf("invalid format: %q (must be one of: dot, svg)", format)
}
