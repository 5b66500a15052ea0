// Package pubsub implements the node store and subscription root: the
// per-node versioned document, its bounded update history, and the
// validate/authorize/init/deliver subscription lifecycle that binds
// subscribers to nodes.
package pubsub

import "sort"

// Name is a node name: an ordered set of (domain, value) string pairs.
// Two names are equal iff they carry the same pairs regardless of
// insertion order (node_add_keys: (p1,v1)+(p2,v2) == (p2,v2)+(p1,v1)).
// Domains are unique within a name; adding a key that repeats a domain
// replaces the prior value for that domain.
type Name struct {
	keys []nameKey
}

type nameKey struct {
	domain, value string
}

// NewName builds a Name from the given domain keys, applied in order (later
// keys overwrite earlier ones sharing a domain).
func NewName(keys ...[2]string) Name {
	var n Name
	for _, k := range keys {
		n = n.With(k[0], k[1])
	}
	return n
}

// With returns a copy of n with (domain, value) added, replacing any
// existing key for that domain.
func (n Name) With(domain, value string) Name {
	keys := make([]nameKey, 0, len(n.keys)+1)
	replaced := false
	for _, k := range n.keys {
		if k.domain == domain {
			keys = append(keys, nameKey{domain, value})
			replaced = true
			continue
		}
		keys = append(keys, k)
	}
	if !replaced {
		keys = append(keys, nameKey{domain, value})
	}
	return Name{keys: keys}
}

// Empty reports whether the name carries no keys.
func (n Name) Empty() bool { return len(n.keys) == 0 }

// Get returns the value bound to domain, if any.
func (n Name) Get(domain string) (string, bool) {
	for _, k := range n.keys {
		if k.domain == domain {
			return k.value, true
		}
	}
	return "", false
}

// Equal reports structural equality regardless of key insertion order.
func (n Name) Equal(other Name) bool {
	if len(n.keys) != len(other.keys) {
		return false
	}
	for _, k := range n.keys {
		v, ok := other.Get(k.domain)
		if !ok || v != k.value {
			return false
		}
	}
	return true
}

// String returns a canonical, order-independent textual form suitable as a
// concurrent-map key (sorted by domain so that equal names hash and compare
// identically regardless of construction order).
func (n Name) String() string {
	sorted := make([]nameKey, len(n.keys))
	copy(sorted, n.keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].domain < sorted[j].domain })
	s := ""
	for i, k := range sorted {
		if i > 0 {
			s += "&"
		}
		s += k.domain + "=" + k.value
	}
	return s
}
