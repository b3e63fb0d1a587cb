package cache

import "fmt"

// Keyer builds cache keys. Swapping the Keyer (see [ScopedKeyer]) lets
// several tenants share one backend.
type Keyer interface {
	// MergeKey identifies a merged document built from inputs, given as
	// content hashes in priority order.
	MergeKey(inputs []string, opts MergeKeyOpts) string

	// GraphKey identifies a reference graph rendered from a merged document.
	GraphKey(mergeHash, format string) string
}

// MergeKeyOpts lists the options that change merge output. Worker counts
// and logging do not belong here.
type MergeKeyOpts struct {
	Scheme string `json:"scheme"`
	Width  int    `json:"width"`
	Indent int    `json:"indent"`
}

// DefaultKeyer hashes every key component with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// MergeKey returns "merge:<sha256>".
func (DefaultKeyer) MergeKey(inputs []string, opts MergeKeyOpts) string {
	return hashKey("merge", inputs, opts)
}

// GraphKey returns "graph:<format>:<sha256>".
func (DefaultKeyer) GraphKey(mergeHash, format string) string {
	return hashKey(fmt.Sprintf("graph:%s", format), mergeHash)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = DefaultKeyer{}
