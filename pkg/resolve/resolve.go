// Package resolve computes, for one OVAL definition, every element it
// depends on directly or transitively.
//
// References are found by scanning an element and all of its descendants
// for attributes and element names listed in [oval.MatchRef]. Resolution is
// a work-list reachability walk over the document's id index:
//
//	def ──test_ref──▶ test ──object_ref──▶ object ──var_ref──▶ variable
//	                    └────state_ref───▶ state
//
// The graph may contain cycles. An id is expanded at most once: once it is
// in the [Closure], popping it again is a no-op. Discovery order does not
// matter; callers sort ids when they need a stable order.
package resolve

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/oval"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

// Index looks up elements by id within a single document.
// [*xmldoc.Document] implements it.
type Index interface {
	Name() string
	Lookup(id string) (*etree.Element, bool)
}

// Refs returns the reference edges found on el and its descendants, in
// document order. An attribute named like a reference contributes its
// value; an element named like a reference contributes its trimmed text.
// Empty targets are skipped.
func Refs(el *etree.Element) []oval.Ref {
	var refs []oval.Ref
	xmldoc.Walk(el, func(e *etree.Element) {
		refs = appendRefs(refs, e)
	})
	return refs
}

func appendRefs(refs []oval.Ref, e *etree.Element) []oval.Ref {
	for _, a := range e.Attr {
		if a.Space != "" {
			continue
		}
		if cat, ok := oval.MatchRef(a.Key); ok && a.Value != "" {
			refs = append(refs, oval.Ref{Category: cat, ID: a.Value})
		}
	}
	if cat, ok := oval.MatchRef(e.Tag); ok {
		if id := strings.TrimSpace(e.Text()); id != "" {
			refs = append(refs, oval.Ref{Category: cat, ID: id})
		}
	}
	return refs
}

// Resolve returns the closure of def within idx. A reference to an id that
// idx does not contain is an [errors.ErrCodeDanglingReference] error.
func Resolve(def *etree.Element, idx Index) (*Closure, error) {
	c := NewClosure()
	if err := ResolveInto(c, def, idx); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveInto extends c with the closure of def. Ids already in c are
// treated as expanded and are not scanned again.
func ResolveInto(c *Closure, def *etree.Element, idx Index) error {
	stack := Refs(def)
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if c.Has(ref.Category, ref.ID) {
			continue
		}
		target, ok := idx.Lookup(ref.ID)
		if !ok {
			return errors.New(errors.ErrCodeDanglingReference,
				"%s: %s reference to missing id %q", idx.Name(), ref.Category, ref.ID)
		}
		c.Add(ref.Category, ref.ID)
		stack = append(stack, Refs(target)...)
	}
	return nil
}
