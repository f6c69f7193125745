package cache

// ScopedKeyer wraps a Keyer with a prefix, so that several registries or
// deployments can share one Redis or Mongo instance without colliding.
//
// Example usage:
//
//	mirror := NewScopedKeyer(NewDefaultKeyer(), "mirror:internal:")
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

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// PackageKey generates a prefixed key for package metadata caching.
func (k *ScopedKeyer) PackageKey(registry, name, version string) string {
	return k.prefix + k.inner.PackageKey(registry, name, version)
}
