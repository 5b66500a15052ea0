package pubsub

import (
	"errors"
	"sync"
	"time"
)

// Configuration holds the recognized per-node-group options (spec §3
// "Configuration"). Immutable after construction; shared by reference so
// that a node bound to one configuration is unaffected by later changes to
// the list it came from.
type Configuration struct {
	AuthorizationRequired bool
	MaxUpdateSize         int
	KeepAliveTimeout      time.Duration
	IOTimeout             time.Duration
	MaxIdleTime           time.Duration
}

// DefaultConfiguration is used for any node not matched by an explicit
// group, and as the seed for NewConfigurationList.
func DefaultConfiguration() Configuration {
	return Configuration{
		AuthorizationRequired: true,
		MaxUpdateSize:         1 << 20,
		KeepAliveTimeout:      30 * time.Second,
		IOTimeout:             3 * time.Second,
		MaxIdleTime:           30 * time.Second,
	}
}

// NodeGroup is a predicate over node names, used to bind a Configuration to
// a set of nodes (spec §3 "Node group").
type NodeGroup interface {
	InGroup(name Name) bool
}

// NodeGroupFunc adapts a plain function to NodeGroup.
type NodeGroupFunc func(Name) bool

func (f NodeGroupFunc) InGroup(name Name) bool { return f(name) }

// AllNodes matches every name.
func AllNodes() NodeGroup { return NodeGroupFunc(func(Name) bool { return true }) }

// ByDomainValue matches names carrying the exact (domain, value) pair.
func ByDomainValue(domain, value string) NodeGroup {
	return NodeGroupFunc(func(n Name) bool {
		v, ok := n.Get(domain)
		return ok && v == value
	})
}

// ByDomain matches names that carry any value for domain.
func ByDomain(domain string) NodeGroup {
	return NodeGroupFunc(func(n Name) bool {
		_, ok := n.Get(domain)
		return ok
	})
}

// And matches names satisfying every given group.
func And(groups ...NodeGroup) NodeGroup {
	return NodeGroupFunc(func(n Name) bool {
		for _, g := range groups {
			if !g.InGroup(n) {
				return false
			}
		}
		return true
	})
}

// Or matches names satisfying any given group.
func Or(groups ...NodeGroup) NodeGroup {
	return NodeGroupFunc(func(n Name) bool {
		for _, g := range groups {
			if g.InGroup(n) {
				return true
			}
		}
		return false
	})
}

// Not inverts a group.
func Not(g NodeGroup) NodeGroup {
	return NodeGroupFunc(func(n Name) bool { return !g.InGroup(n) })
}

// ErrUnknownConfiguration is raised by RemoveConfiguration when no entry is
// bound under the requested label (spec §7 "Configuration errors").
var ErrUnknownConfiguration = errors.New("pubsub: no configuration bound to that group")

type configurationEntry struct {
	group NodeGroup
	// label disambiguates groups built from distinct calls so that
	// RemoveConfiguration can target "the group passed to this call",
	// matching the resolved open question (remove the first entry whose
	// group equals the requested group, by identity of the label).
	label string
	cfg   Configuration
}

// ConfigurationList is the ordered list of (node_group, configuration)
// bindings plus a default configuration (spec §3 "Configuration list").
// Lookup returns the first matching entry's configuration, or the default.
//
// Resolves the spec's first Open Question (§9): the original C++
// `remove_configuration` loop condition `pos->first == node_name` was
// flagged as inverted. This implementation removes the first entry whose
// label equals the requested one, raising ErrUnknownConfiguration if none
// exists, leaving the list unchanged on error.
type ConfigurationList struct {
	mu      sync.RWMutex
	entries []configurationEntry
	def     Configuration
}

// NewConfigurationList constructs a list with the given default
// configuration and no group bindings.
func NewConfigurationList(def Configuration) *ConfigurationList {
	return &ConfigurationList{def: def}
}

// AddConfiguration binds cfg to every name matching group, identified by
// label for later removal. A later AddConfiguration with the same label
// replaces the earlier binding's position is not assumed; both remain,
// first-match-wins at lookup time (mirrors an ordered list, not a map).
func (l *ConfigurationList) AddConfiguration(label string, group NodeGroup, cfg Configuration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, configurationEntry{group: group, label: label, cfg: cfg})
}

// RemoveConfiguration removes the first entry bound under label.
func (l *ConfigurationList) RemoveConfiguration(label string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.label == label {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return nil
		}
	}
	return ErrUnknownConfiguration
}

// ConfigurationEntry is a read-only view of one (label, configuration)
// binding, for internal/adminapi's GET /api/v1/configurations (SPEC_FULL
// §6). The bound NodeGroup itself is opaque (a predicate, not data), so
// only the label and configuration are reported.
type ConfigurationEntry struct {
	Label  string
	Config Configuration
}

// List returns every bound (label, configuration) entry in lookup order.
func (l *ConfigurationList) List() []ConfigurationEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ConfigurationEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = ConfigurationEntry{Label: e.label, Config: e.cfg}
	}
	return out
}

// GetConfiguration returns the configuration bound to the first matching
// group for name, or the default configuration.
func (l *ConfigurationList) GetConfiguration(name Name) Configuration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.group.InGroup(name) {
			return e.cfg
		}
	}
	return l.def
}
