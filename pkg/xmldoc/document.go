// Package xmldoc holds the parsed form of one OVAL document: the element
// tree and an index from element id to element.
//
// Trees are [github.com/beevik/etree] elements. Namespace prefixes are kept
// exactly as written in the input, which lets the merged output reuse them.
// Sections (definitions, tests, objects, states, variables) are matched by
// local name so documents using a default namespace and documents using an
// explicit prefix behave the same.
package xmldoc

import (
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/oval"
)

// IDAttr is the attribute that names an element.
const IDAttr = "id"

// Document is one parsed OVAL document. A Document owns every element in
// its tree; callers that move elements into another tree must copy them.
//
// The zero value is not usable - use [Parse] or [FromTree].
type Document struct {
	name  string
	tree  *etree.Document
	index map[string]*etree.Element
	dups  []string
}

// Parse parses text into a Document and builds the id index in the same
// pass. Text that is not well-formed XML, or that has no root element,
// yields an error with code [errors.ErrCodeParse].
func Parse(name, text string) (*Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromString(text); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse %s", name)
	}
	if tree.Root() == nil {
		return nil, errors.New(errors.ErrCodeParse, "parse %s: no root element", name)
	}
	return FromTree(name, tree), nil
}

// FromTree wraps an already parsed tree and indexes it.
func FromTree(name string, tree *etree.Document) *Document {
	d := &Document{name: name, tree: tree}
	d.Reindex()
	return d
}

// Reindex rebuilds the id index from the current tree. When an id occurs
// more than once the first element in document order is indexed and the
// id is remembered in [Document.DuplicateIDs].
func (d *Document) Reindex() {
	d.index = make(map[string]*etree.Element)
	d.dups = nil
	root := d.tree.Root()
	if root == nil {
		return
	}
	walk(root, func(el *etree.Element) {
		id, ok := ID(el)
		if !ok {
			return
		}
		if _, exists := d.index[id]; exists {
			d.dups = append(d.dups, id)
			return
		}
		d.index[id] = el
	})
}

// Name returns the name the document was loaded under (usually a path).
func (d *Document) Name() string { return d.name }

// Tree returns the underlying etree document.
func (d *Document) Tree() *etree.Document { return d.tree }

// Root returns the root element.
func (d *Document) Root() *etree.Element { return d.tree.Root() }

// Len returns the number of indexed ids.
func (d *Document) Len() int { return len(d.index) }

// DuplicateIDs returns ids that occur on more than one element, in the
// order the repeats were found.
func (d *Document) DuplicateIDs() []string { return d.dups }

// Lookup returns the element carrying id.
func (d *Document) Lookup(id string) (*etree.Element, bool) {
	el, ok := d.index[id]
	return el, ok
}

// MustLookup returns the element carrying id, or a
// [errors.ErrCodeDanglingReference] error naming this document. References
// never cross documents, so a miss means the document is inconsistent.
func (d *Document) MustLookup(id string) (*etree.Element, error) {
	if el, ok := d.index[id]; ok {
		return el, nil
	}
	return nil, errors.New(errors.ErrCodeDanglingReference, "%s: no element with id %q", d.name, id)
}

// IDs returns every indexed id in sorted order.
func (d *Document) IDs() []string {
	ids := make([]string, 0, len(d.index))
	for id := range d.index {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Section returns the top-level element holding category c, or nil when
// the document has no such section.
func (d *Document) Section(c oval.Category) *etree.Element {
	return SectionOf(d.Root(), c)
}

// SectionElements returns the child elements of the section for c, in
// document order. A missing section yields nil.
func (d *Document) SectionElements(c oval.Category) []*etree.Element {
	sec := d.Section(c)
	if sec == nil {
		return nil
	}
	return sec.ChildElements()
}

// SectionOf returns the direct child of root whose local name is the
// section name of c.
func SectionOf(root *etree.Element, c oval.Category) *etree.Element {
	if root == nil {
		return nil
	}
	name := c.Section()
	for _, child := range root.ChildElements() {
		if child.Tag == name {
			return child
		}
	}
	return nil
}

// ID returns the value of el's unprefixed id attribute.
func ID(el *etree.Element) (string, bool) {
	for _, a := range el.Attr {
		if a.Space == "" && a.Key == IDAttr {
			return a.Value, true
		}
	}
	return "", false
}

// Attr returns the value of the unprefixed attribute key.
func Attr(el *etree.Element, key string) (string, bool) {
	for _, a := range el.Attr {
		if a.Space == "" && a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// ChildText returns the trimmed text of the first descendant reached by
// following local names in path, e.g. ChildText(def, "metadata", "title").
func ChildText(el *etree.Element, path ...string) (string, bool) {
	cur := el
	for _, name := range path {
		var next *etree.Element
		for _, child := range cur.ChildElements() {
			if child.Tag == name {
				next = child
				break
			}
		}
		if next == nil {
			return "", false
		}
		cur = next
	}
	return strings.TrimSpace(cur.Text()), true
}

// Walk calls fn for el and every descendant element in document order.
func Walk(el *etree.Element, fn func(*etree.Element)) {
	walk(el, fn)
}

func walk(el *etree.Element, fn func(*etree.Element)) {
	fn(el)
	for _, child := range el.ChildElements() {
		walk(child, fn)
	}
}
