package xmldoc

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/oval"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<oval_definitions xmlns="http://oval.mitre.org/XMLSchema/oval-definitions-5"
    xmlns:oval="http://oval.mitre.org/XMLSchema/oval-common-5"
    xmlns:linux-def="http://oval.mitre.org/XMLSchema/oval-definitions-5#linux">
  <generator><oval:product_name>test</oval:product_name></generator>
  <definitions>
    <definition id="oval:x:def:1" class="vulnerability" version="1">
      <metadata><title> pkg-a </title></metadata>
      <criteria><criterion test_ref="oval:x:tst:1"/></criteria>
    </definition>
  </definitions>
  <tests>
    <linux-def:dpkginfo_test id="oval:x:tst:1" check="all">
      <linux-def:object object_ref="oval:x:obj:1"/>
    </linux-def:dpkginfo_test>
  </tests>
  <objects>
    <linux-def:dpkginfo_object id="oval:x:obj:1"/>
  </objects>
  <states/>
</oval_definitions>`

func TestParse(t *testing.T) {
	doc, err := Parse("sample.xml", sample)
	require.NoError(t, err)

	assert.Equal(t, "sample.xml", doc.Name())
	assert.Equal(t, "oval_definitions", doc.Root().Tag)
	assert.Equal(t, 3, doc.Len())
	assert.Equal(t, []string{"oval:x:def:1", "oval:x:obj:1", "oval:x:tst:1"}, doc.IDs())
	assert.Empty(t, doc.DuplicateIDs())

	el, ok := doc.Lookup("oval:x:tst:1")
	require.True(t, ok)
	assert.Equal(t, "linux-def", el.Space)
	assert.Equal(t, "dpkginfo_test", el.Tag)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unclosed", "<root><a></root>"},
		{"garbage", "this is not xml <"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.xml", tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeParse), "got %v", err)
			assert.Contains(t, err.Error(), "bad.xml")
		})
	}
}

func TestMustLookup(t *testing.T) {
	doc, err := Parse("sample.xml", sample)
	require.NoError(t, err)

	el, err := doc.MustLookup("oval:x:obj:1")
	require.NoError(t, err)
	assert.Equal(t, "dpkginfo_object", el.Tag)

	_, err = doc.MustLookup("oval:x:obj:404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDanglingReference))
	assert.Contains(t, err.Error(), "oval:x:obj:404")
}

func TestDuplicateIDsKeepFirst(t *testing.T) {
	doc, err := Parse("dup.xml", `<root><test id="1">first</test><object id="1">second</object></root>`)
	require.NoError(t, err)

	el, ok := doc.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "first", el.Text())
	assert.Equal(t, []string{"1"}, doc.DuplicateIDs())
}

func TestSections(t *testing.T) {
	doc, err := Parse("sample.xml", sample)
	require.NoError(t, err)

	defs := doc.SectionElements(oval.Definition)
	require.Len(t, defs, 1)
	assert.Equal(t, "definition", defs[0].Tag)

	assert.Len(t, doc.SectionElements(oval.Test), 1)
	assert.Len(t, doc.SectionElements(oval.Object), 1)
	assert.NotNil(t, doc.Section(oval.State))
	assert.Empty(t, doc.SectionElements(oval.State))
	assert.Nil(t, doc.Section(oval.Variable))
	assert.Nil(t, doc.SectionElements(oval.Variable))
}

func TestChildText(t *testing.T) {
	doc, err := Parse("sample.xml", sample)
	require.NoError(t, err)
	def, _ := doc.Lookup("oval:x:def:1")

	title, ok := ChildText(def, "metadata", "title")
	assert.True(t, ok)
	assert.Equal(t, "pkg-a", title)

	_, ok = ChildText(def, "metadata", "description")
	assert.False(t, ok)
}

func TestAttr(t *testing.T) {
	el := etree.NewElement("definition")
	el.CreateAttr("class", "inventory")
	el.CreateAttr("xml:id", "ignored")

	v, ok := Attr(el, "class")
	assert.True(t, ok)
	assert.Equal(t, "inventory", v)

	_, ok = ID(el)
	assert.False(t, ok, "prefixed id attributes are not element ids")
}

func TestWalkOrder(t *testing.T) {
	doc, err := Parse("w.xml", `<a><b><c/></b><d/></a>`)
	require.NoError(t, err)

	var tags []string
	Walk(doc.Root(), func(el *etree.Element) { tags = append(tags, el.Tag) })
	assert.Equal(t, []string{"a", "b", "c", "d"}, tags)
}

func TestSerialize(t *testing.T) {
	doc, err := Parse("s.xml", "<root>\n\n   <a id=\"1\"><b>x</b></a>\n\n</root>")
	require.NoError(t, err)

	out, err := Serialize(doc.Tree(), WriteOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, xmlDecl+"\n"))
	assert.True(t, strings.HasSuffix(out, "</root>\n"))
	assert.Contains(t, out, "\n  <a id=\"1\">\n")
	assert.Contains(t, out, "\n    <b>x</b>\n")
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.NotEmpty(t, strings.TrimSpace(line), "blank line in output")
	}
}

func TestSerializeKeepsDeclaration(t *testing.T) {
	doc, err := Parse("sample.xml", sample)
	require.NoError(t, err)

	out, err := Serialize(doc.Tree(), WriteOptions{Indent: 4})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "<?xml"))
	assert.Contains(t, out, "\n    <definitions>\n")
	assert.Contains(t, out, `xmlns:linux-def="http://oval.mitre.org/XMLSchema/oval-definitions-5#linux"`)
}
