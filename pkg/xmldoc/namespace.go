package xmldoc

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// Binding is one namespace declaration. Prefix is empty for the default
// namespace.
type Binding struct {
	Prefix string
	URI    string
}

// nsRe matches xmlns="uri" and xmlns:prefix="uri" declarations with an
// http(s) URI.
var nsRe = regexp.MustCompile(`xmlns(?::([A-Za-z_][\w.\-]*))?\s*=\s*"(https?://[^"\s]+)"`)

// ScanNamespaces extracts the namespace declarations of the root element
// from raw document text without parsing it. Declarations on nested
// elements are scoped to those elements and are not returned. Declarations
// are returned in the order they appear; repeats are kept.
func ScanNamespaces(text string) []Binding {
	var out []Binding
	for _, m := range nsRe.FindAllStringSubmatch(rootStartTag(text), -1) {
		out = append(out, Binding{Prefix: m[1], URI: m[2]})
	}
	return out
}

// rootStartTag returns the start tag of the first element in text, skipping
// the XML declaration, processing instructions, comments and DOCTYPE. It
// returns "" when no element is found.
func rootStartTag(text string) string {
	for {
		i := strings.IndexByte(text, '<')
		if i < 0 || i+1 >= len(text) {
			return ""
		}
		text = text[i:]
		switch {
		case strings.HasPrefix(text, "<?"):
			text = skipPast(text, "?>")
		case strings.HasPrefix(text, "<!--"):
			text = skipPast(text, "-->")
		case strings.HasPrefix(text, "<!"):
			text = skipDecl(text)
		default:
			return text[:tagEnd(text)]
		}
	}
}

func skipPast(text, end string) string {
	if i := strings.Index(text, end); i >= 0 {
		return text[i+len(end):]
	}
	return ""
}

// skipDecl skips a <!...> declaration, including a bracketed internal
// subset.
func skipDecl(text string) string {
	depth := 0
	for i := 2; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '>':
			if depth <= 0 {
				return text[i+1:]
			}
		}
	}
	return ""
}

// tagEnd returns the offset just past the '>' closing the tag at the start
// of text. Quoted attribute values may contain '>'.
func tagEnd(text string) int {
	var quote byte
	for i := 1; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i + 1
		}
	}
	return len(text)
}

// Override records a prefix whose URI changed between documents.
type Override struct {
	Prefix string
	Old    string
	New    string
	Source string
}

// Namespaces is the prefix→URI registry collected across all inputs of a
// merge. Later bindings for the same prefix replace earlier ones; the
// replacement is recorded so callers can report it. Prefixes keep the order
// in which they were first seen.
//
// The zero value is ready to use. Namespaces is not safe for concurrent use.
type Namespaces struct {
	order     []string
	uris      map[string]string
	overrides []Override
}

// Register adds bindings observed in the document named source.
func (n *Namespaces) Register(source string, bindings ...Binding) {
	if n.uris == nil {
		n.uris = make(map[string]string)
	}
	for _, b := range bindings {
		old, exists := n.uris[b.Prefix]
		if !exists {
			n.order = append(n.order, b.Prefix)
		} else if old != b.URI {
			n.overrides = append(n.overrides, Override{Prefix: b.Prefix, Old: old, New: b.URI, Source: source})
		}
		n.uris[b.Prefix] = b.URI
	}
}

// RegisterText scans the root element of text and registers its
// declarations.
func (n *Namespaces) RegisterText(source, text string) {
	n.Register(source, ScanNamespaces(text)...)
}

// URI returns the URI bound to prefix.
func (n *Namespaces) URI(prefix string) (string, bool) {
	uri, ok := n.uris[prefix]
	return uri, ok
}

// Bindings returns the current bindings in first-seen prefix order.
func (n *Namespaces) Bindings() []Binding {
	out := make([]Binding, 0, len(n.order))
	for _, p := range n.order {
		out = append(out, Binding{Prefix: p, URI: n.uris[p]})
	}
	return out
}

// Overrides returns every prefix rebinding seen so far.
func (n *Namespaces) Overrides() []Override { return n.overrides }

// Len returns the number of distinct prefixes.
func (n *Namespaces) Len() int { return len(n.order) }

// Declare writes every binding onto el as xmlns attributes, replacing
// existing declarations of the same prefix.
func (n *Namespaces) Declare(el *etree.Element) {
	for _, b := range n.Bindings() {
		if b.Prefix == "" {
			el.CreateAttr("xmlns", b.URI)
			continue
		}
		el.CreateAttr("xmlns:"+b.Prefix, b.URI)
	}
}
