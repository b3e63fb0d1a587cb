package refgraph

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/ovalmerge/pkg/oval"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

const doc = `<oval_definitions xmlns:ind="http://oval.mitre.org/XMLSchema/oval-definitions-5#independent">
  <definitions>
    <definition id="def:1">
      <metadata><title>curl</title></metadata>
      <criteria>
        <criterion test_ref="tst:1"/>
        <criterion test_ref="tst:1"/>
        <extend_definition definition_ref="def:2"/>
      </criteria>
    </definition>
    <definition id="def:2"><metadata><title>inventory</title></metadata></definition>
  </definitions>
  <tests>
    <ind:textfilecontent54_test id="tst:1"><ind:object object_ref="obj:1"/></ind:textfilecontent54_test>
  </tests>
  <objects>
    <ind:textfilecontent54_object id="obj:1"><ind:var_ref>var:404</ind:var_ref></ind:textfilecontent54_object>
  </objects>
</oval_definitions>`

func build(t *testing.T) *Graph {
	t.Helper()
	d, err := xmldoc.Parse("g.xml", doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Build(d.Root())
}

func TestBuild(t *testing.T) {
	g := build(t)

	if len(g.Nodes) != 4 {
		t.Fatalf("got %d nodes, want 4", len(g.Nodes))
	}
	if g.Nodes[0].ID != "def:1" || g.Nodes[0].Title != "curl" {
		t.Errorf("first node = %+v", g.Nodes[0])
	}
	if g.Nodes[2].Tag != "ind:textfilecontent54_test" {
		t.Errorf("test node tag = %q", g.Nodes[2].Tag)
	}
	if g.Count(oval.Definition) != 2 || g.Count(oval.State) != 0 {
		t.Error("unexpected category counts")
	}

	// Repeated references from one element are collapsed
	want := []Edge{
		{From: "def:1", To: "tst:1", Category: oval.Test},
		{From: "def:1", To: "def:2", Category: oval.Definition},
		{From: "tst:1", To: "obj:1", Category: oval.Object},
		{From: "obj:1", To: "var:404", Category: oval.Variable},
	}
	if len(g.Edges) != len(want) {
		t.Fatalf("got edges %v, want %v", g.Edges, want)
	}
	for i := range want {
		if g.Edges[i] != want[i] {
			t.Errorf("edge %d = %+v, want %+v", i, g.Edges[i], want[i])
		}
	}

	dangling := g.Dangling()
	if len(dangling) != 1 || dangling[0].To != "var:404" {
		t.Errorf("Dangling() = %v", dangling)
	}
}

func TestToDOT_Basic(t *testing.T) {
	dot := ToDOT(build(t), Options{})

	if !strings.Contains(dot, "digraph oval") {
		t.Error("ToDOT() output missing digraph declaration")
	}
	if !strings.Contains(dot, `"def:1" [label="def:1"`) {
		t.Error("ToDOT() output missing node def:1")
	}
	if !strings.Contains(dot, `"tst:1" -> "obj:1" [label="object"]`) {
		t.Error("ToDOT() output missing edge")
	}
	if !strings.Contains(dot, `"def:1" -> "def:2" [label="definition", style=dashed]`) {
		t.Error("definition references should be dashed")
	}
}

func TestToDOT_Detailed(t *testing.T) {
	dot := ToDOT(build(t), Options{Detailed: true})

	if !strings.Contains(dot, `label="def:1\ndefinition\ncurl"`) {
		t.Errorf("ToDOT() detailed output missing title:\n%s", dot)
	}
}

func TestRenderDOT(t *testing.T) {
	out, err := Render(context.Background(), build(t), FormatDOT, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(string(out), "digraph") {
		t.Error("dot format should return DOT source")
	}

	if _, err := Render(context.Background(), build(t), "png", Options{}); err == nil {
		t.Error("unsupported format should fail")
	}
}
