package xmldoc

import (
	"io"
	"strings"

	"github.com/beevik/etree"
)

// DefaultIndent is the number of spaces per nesting level in written output.
const DefaultIndent = 2

const xmlDecl = `<?xml version="1.0" encoding="UTF-8"?>`

// WriteOptions configures serialization.
type WriteOptions struct {
	// Indent is the number of spaces per level (default 2).
	Indent int
}

// Serialize pretty-prints tree and returns the text. Whitespace-only lines
// are dropped, an XML declaration is added when the tree has none, and the
// result ends with a newline. The tree's whitespace is re-indented in place.
func Serialize(tree *etree.Document, opts WriteOptions) (string, error) {
	if opts.Indent <= 0 {
		opts.Indent = DefaultIndent
	}
	tree.Indent(opts.Indent)

	raw, err := tree.WriteToString()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(raw) + len(xmlDecl) + 1)
	if !hasDecl(tree) {
		b.WriteString(xmlDecl)
		b.WriteByte('\n')
	}
	for line := range strings.Lines(raw) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Write serializes tree to w. See [Serialize].
func Write(w io.Writer, tree *etree.Document, opts WriteOptions) error {
	s, err := Serialize(tree, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

func hasDecl(tree *etree.Document) bool {
	for _, tok := range tree.Child {
		if p, ok := tok.(*etree.ProcInst); ok && p.Target == "xml" {
			return true
		}
	}
	return false
}
