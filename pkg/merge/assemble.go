package merge

import (
	"slices"

	"github.com/beevik/etree"

	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/oval"
	"github.com/matzehuels/ovalmerge/pkg/resolve"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

// Assemble runs phase 2 and returns the merged tree.
//
// The tree starts as a copy of the last (highest-priority) document with
// its five sections emptied, or created when absent, so the generator and
// any other top-level content survive. The definitions section receives the
// surviving definitions in first-seen key order, then per document the
// definitions those survivors reach through definition_ref. Each support
// section receives, per document in priority order, the sorted union of the
// ids the document's survivors reach.
//
// When ns is non-nil its bindings are declared on the output root.
// Elements are copied; the input documents are left untouched.
func (m *Merger) Assemble(ns *xmldoc.Namespaces) (*etree.Document, error) {
	if len(m.docs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nothing to merge: no documents added")
	}

	out := m.docs[len(m.docs)-1].Tree().Copy()
	root := out.Root()
	sections := make(map[oval.Category]*etree.Element, len(oval.Categories))
	for _, c := range oval.Categories {
		sections[c] = emptySection(root, c)
	}

	survivors := m.survivors()
	closures := make([]*resolve.Closure, len(m.docs))
	for i, entries := range survivors {
		c := resolve.NewClosure()
		for _, e := range entries {
			c.Union(e.Closure)
		}
		closures[i] = c
	}

	defs := sections[oval.Definition]
	emitted := make(map[string]struct{})
	for _, e := range m.Entries() {
		defs.AddChild(e.Definition.Copy())
		emitted[e.ID()] = struct{}{}
	}
	for i, doc := range m.docs {
		for _, id := range closures[i].IDs(oval.Definition) {
			if _, ok := emitted[id]; ok {
				continue
			}
			el, err := doc.MustLookup(id)
			if err != nil {
				return nil, err
			}
			defs.AddChild(el.Copy())
			emitted[id] = struct{}{}
		}
	}

	for _, c := range oval.SupportCategories {
		sec := sections[c]
		for i, doc := range m.docs {
			for _, id := range closures[i].IDs(c) {
				el, err := doc.MustLookup(id)
				if err != nil {
					return nil, err
				}
				sec.AddChild(el.Copy())
			}
		}
	}

	if ns != nil {
		ns.Declare(root)
	}
	return out, nil
}

// emptySection returns root's section for c with all children removed. A
// missing section is created with root's prefix right after the closest
// earlier section, or before the closest later one, so sections keep their
// canonical order and trailing content such as a Signature stays last.
// With no sections at all it goes after the generator.
func emptySection(root *etree.Element, c oval.Category) *etree.Element {
	if sec := xmldoc.SectionOf(root, c); sec != nil {
		for len(sec.Child) > 0 {
			sec.RemoveChildAt(0)
		}
		return sec
	}

	sec := etree.NewElement(c.Section())
	sec.Space = root.Space

	pos := slices.Index(oval.Categories, c)
	for i := pos - 1; i >= 0; i-- {
		if before := xmldoc.SectionOf(root, oval.Categories[i]); before != nil {
			root.InsertChildAt(before.Index()+1, sec)
			return sec
		}
	}
	for _, next := range oval.Categories[pos+1:] {
		if after := xmldoc.SectionOf(root, next); after != nil {
			root.InsertChildAt(after.Index(), sec)
			return sec
		}
	}
	if gen := root.SelectElement("generator"); gen != nil {
		root.InsertChildAt(gen.Index()+1, sec)
		return sec
	}
	root.InsertChildAt(0, sec)
	return sec
}

// Merge adds docs in priority order, assembles the output and validates it.
func Merge(docs []*xmldoc.Document, ns *xmldoc.Namespaces, opts Options) (*etree.Document, *Report, error) {
	m := New(opts)
	for _, doc := range docs {
		if err := m.Add(doc); err != nil {
			return nil, nil, err
		}
	}
	out, err := m.Assemble(ns)
	if err != nil {
		return nil, nil, err
	}
	if err := Validate(out.Root()); err != nil {
		return nil, nil, err
	}
	return out, m.Report(out), nil
}
