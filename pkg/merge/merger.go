// Package merge combines several OVAL documents into one.
//
// Documents are added in increasing priority. Every non-inventory definition
// is keyed by its package (the trimmed text of metadata/title) and the last
// document to define a package wins. The output carries the winning
// definitions plus exactly the tests, objects, states and variables their
// closures reach, each copied from the document that owns the winner.
//
// A merge runs in two phases:
//
//	Add(doc) ... Add(doc)   phase 1: key, resolve, overwrite the package table
//	Assemble(ns)            phase 2: copy surviving closures into a new tree
//
// Identifiers must already be unique across documents (see package regen);
// [Validate] rejects an output that still repeats an id.
package merge

import (
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/oval"
	"github.com/matzehuels/ovalmerge/pkg/resolve"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

// ClassInventory is the definition class that is never keyed by package.
const ClassInventory = "inventory"

// Entry is the current winner for one package key.
type Entry struct {
	Key        string
	Doc        *xmldoc.Document
	DocIndex   int
	Definition *etree.Element
	Closure    *resolve.Closure
}

// ID returns the id of the entry's definition.
func (e *Entry) ID() string {
	id, _ := xmldoc.ID(e.Definition)
	return id
}

// Options configures a Merger.
type Options struct {
	// RunID identifies the merge in reports (default: a random UUID).
	RunID string

	// Logger receives debug lines per document and per superseded package
	// (default: discard).
	Logger *log.Logger

	// OnSupersede, when set, is called each time a package moves to a
	// higher-priority document.
	OnSupersede func(key, from, to string)
}

// Merger holds the state of one merge run. It is not safe for concurrent use.
type Merger struct {
	runID       string
	logger      *log.Logger
	onSupersede func(key, from, to string)

	docs    []*xmldoc.Document
	stats   []DocumentStats
	entries map[string]*Entry
	order   []string

	superseded int
}

// New returns an empty Merger.
func New(opts Options) *Merger {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Merger{
		runID:       opts.RunID,
		logger:      opts.Logger,
		onSupersede: opts.OnSupersede,
		entries:     make(map[string]*Entry),
	}
}

// RunID returns the identifier of this merge run.
func (m *Merger) RunID() string { return m.runID }

// Documents returns the added documents in priority order.
func (m *Merger) Documents() []*xmldoc.Document { return m.docs }

// Add runs phase 1 for doc, which has a higher priority than every
// document added before it. A definition without metadata/title yields an
// [errors.ErrCodeStructural] error and an unresolvable reference an
// [errors.ErrCodeDanglingReference] error; after either the Merger must be
// discarded.
func (m *Merger) Add(doc *xmldoc.Document) error {
	idx := len(m.docs)
	m.docs = append(m.docs, doc)
	m.stats = append(m.stats, DocumentStats{Name: doc.Name()})
	st := &m.stats[idx]

	for _, def := range doc.SectionElements(oval.Definition) {
		st.Definitions++
		if class, _ := xmldoc.Attr(def, "class"); class == ClassInventory {
			st.Inventory++
			continue
		}

		key, err := packageKey(doc, def)
		if err != nil {
			return err
		}
		closure, err := resolve.Resolve(def, doc)
		if err != nil {
			return err
		}
		m.put(&Entry{
			Key:        key,
			Doc:        doc,
			DocIndex:   idx,
			Definition: def,
			Closure:    closure,
		})
	}

	m.logger.Debug("processed document",
		"document", doc.Name(),
		"definitions", st.Definitions,
		"inventory", st.Inventory,
		"ids", doc.Len())
	return nil
}

// put records e as the winner for its key, keeping the key's first-seen
// position.
func (m *Merger) put(e *Entry) {
	prev, ok := m.entries[e.Key]
	if !ok {
		m.order = append(m.order, e.Key)
		m.entries[e.Key] = e
		return
	}
	m.entries[e.Key] = e
	m.superseded++
	m.logger.Debug("updated package",
		"package", e.Key,
		"from", prev.Doc.Name(),
		"to", e.Doc.Name())
	if m.onSupersede != nil {
		m.onSupersede(e.Key, prev.Doc.Name(), e.Doc.Name())
	}
}

// Entries returns the surviving entries in first-seen key order.
func (m *Merger) Entries() []*Entry {
	out := make([]*Entry, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.entries[key])
	}
	return out
}

// Lookup returns the surviving entry for key.
func (m *Merger) Lookup(key string) (*Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// survivors groups the surviving entries by owning document.
func (m *Merger) survivors() [][]*Entry {
	out := make([][]*Entry, len(m.docs))
	for _, e := range m.Entries() {
		out[e.DocIndex] = append(out[e.DocIndex], e)
	}
	return out
}

func packageKey(doc *xmldoc.Document, def *etree.Element) (string, error) {
	id, ok := xmldoc.ID(def)
	if !ok {
		return "", errors.New(errors.ErrCodeStructural, "%s: definition without id", doc.Name())
	}
	title, ok := xmldoc.ChildText(def, "metadata", "title")
	if !ok {
		return "", errors.New(errors.ErrCodeStructural, "%s: definition %q has no metadata/title", doc.Name(), id)
	}
	return strings.TrimSpace(title), nil
}
