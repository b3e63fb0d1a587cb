package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// The HTTP service uses it to keep its entries apart from CLI runs that
// share the same Redis instance.
//
// Example usage:
//
//	serviceKeyer := NewScopedKeyer(NewDefaultKeyer(), "svc:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// MergeKey generates a prefixed key for merged documents.
func (k *ScopedKeyer) MergeKey(inputs []string, opts MergeKeyOpts) string {
	return k.prefix + k.inner.MergeKey(inputs, opts)
}

// GraphKey generates a prefixed key for reference graphs.
func (k *ScopedKeyer) GraphKey(mergeHash, format string) string {
	return k.prefix + k.inner.GraphKey(mergeHash, format)
}
