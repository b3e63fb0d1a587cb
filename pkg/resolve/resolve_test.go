package resolve

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/oval"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

const feed = `<oval_definitions xmlns:ind="http://oval.mitre.org/XMLSchema/oval-definitions-5#independent">
  <definitions>
    <definition id="def:1" class="patch">
      <metadata><title>pkg</title></metadata>
      <criteria>
        <criterion test_ref="tst:1"/>
        <extend_definition definition_ref="def:inv"/>
      </criteria>
    </definition>
    <definition id="def:inv" class="inventory">
      <criteria><criterion test_ref="tst:2"/></criteria>
    </definition>
    <definition id="def:broken" class="patch">
      <criteria><criterion test_ref="tst:404"/></criteria>
    </definition>
  </definitions>
  <tests>
    <test id="tst:1"><object object_ref="obj:1"/><state state_ref="ste:1"/></test>
    <test id="tst:2"><object object_ref="obj:1"/></test>
    <test id="tst:cycle-a" check="all"><object object_ref="obj:cycle"/></test>
  </tests>
  <objects>
    <object id="obj:1"><ind:var_ref> var:1 </ind:var_ref></object>
    <object id="obj:cycle"><filter state_ref="ste:cycle"/></object>
  </objects>
  <states>
    <state id="ste:1" var_ref="var:1"/>
    <state id="ste:cycle"><back test_ref="tst:cycle-a"/></state>
  </states>
  <variables>
    <variable id="var:1"><component var_ref="var:2"/></variable>
    <variable id="var:2"/>
  </variables>
</oval_definitions>`

func load(t *testing.T) *xmldoc.Document {
	t.Helper()
	doc, err := xmldoc.Parse("feed.xml", feed)
	require.NoError(t, err)
	return doc
}

func TestRefs(t *testing.T) {
	doc := load(t)

	obj, _ := doc.Lookup("obj:1")
	assert.Equal(t, []oval.Ref{{Category: oval.Variable, ID: "var:1"}}, Refs(obj))

	tst, _ := doc.Lookup("tst:1")
	assert.Equal(t, []oval.Ref{
		{Category: oval.Object, ID: "obj:1"},
		{Category: oval.State, ID: "ste:1"},
	}, Refs(tst))

	def, _ := doc.Lookup("def:1")
	assert.Equal(t, []oval.Ref{
		{Category: oval.Test, ID: "tst:1"},
		{Category: oval.Definition, ID: "def:inv"},
	}, Refs(def))
}

func TestRefsSkipsEmptyAndPrefixedAttributes(t *testing.T) {
	el := etree.NewElement("x")
	el.CreateAttr("test_ref", "")
	el.CreateAttr("foo:object_ref", "obj:9")
	child := el.CreateElement("var_ref")
	child.SetText("   ")

	assert.Empty(t, Refs(el))
}

func TestResolve(t *testing.T) {
	doc := load(t)
	def, _ := doc.Lookup("def:1")

	c, err := Resolve(def, doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"def:inv"}, c.IDs(oval.Definition))
	assert.Equal(t, []string{"tst:1", "tst:2"}, c.IDs(oval.Test))
	assert.Equal(t, []string{"obj:1"}, c.IDs(oval.Object))
	assert.Equal(t, []string{"ste:1"}, c.IDs(oval.State))
	assert.Equal(t, []string{"var:1", "var:2"}, c.IDs(oval.Variable))
	assert.Equal(t, 7, c.Len())
}

func TestResolveCycle(t *testing.T) {
	doc := load(t)
	tst, _ := doc.Lookup("tst:cycle-a")

	c, err := Resolve(tst, doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"obj:cycle"}, c.IDs(oval.Object))
	assert.Equal(t, []string{"ste:cycle"}, c.IDs(oval.State))
	assert.Equal(t, []string{"tst:cycle-a"}, c.IDs(oval.Test), "cycle back to the start is recorded once")
}

func TestResolveDangling(t *testing.T) {
	doc := load(t)
	def, _ := doc.Lookup("def:broken")

	_, err := Resolve(def, doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDanglingReference))
	assert.Contains(t, err.Error(), "tst:404")
	assert.Contains(t, err.Error(), "feed.xml")
}

func TestResolveIntoSkipsKnownIDs(t *testing.T) {
	doc := load(t)
	def, _ := doc.Lookup("def:1")

	c := NewClosure()
	c.Add(oval.Test, "tst:1")
	require.NoError(t, ResolveInto(c, def, doc))

	assert.False(t, c.Has(oval.State, "ste:1"), "known ids are not expanded again")
	assert.True(t, c.Has(oval.Test, "tst:2"))
}

func TestClosure(t *testing.T) {
	var c Closure
	assert.True(t, c.Add(oval.Test, "b"))
	assert.True(t, c.Add(oval.Test, "a"))
	assert.False(t, c.Add(oval.Test, "a"))
	assert.True(t, c.Add(oval.Object, "a"))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.Count(oval.Test))
	assert.Equal(t, 0, c.Count(oval.State))
	assert.Empty(t, c.IDs(oval.State))
	assert.Equal(t, []string{"a", "b"}, c.IDs(oval.Test))

	other := NewClosure()
	other.Add(oval.Test, "a")
	other.Add(oval.State, "s")
	c.Union(other)
	c.Union(nil)
	assert.Equal(t, 4, c.Len())

	assert.Equal(t, []oval.Ref{
		{Category: oval.Test, ID: "a"},
		{Category: oval.Test, ID: "b"},
		{Category: oval.Object, ID: "a"},
		{Category: oval.State, ID: "s"},
	}, c.Refs())
}
