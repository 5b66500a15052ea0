package pubsub

import (
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/sioux/pubsub/internal/json"
)

// historyEntry is one retained step of a node's update history: the delta
// (a json.Array of edit ops, per internal/json) that turns the data at
// version into the data at version.Next().
type historyEntry struct {
	version Version
	delta   json.Value
	bytes   int
}

// Node is a named, versioned JSON document with a byte-budgeted update
// history (spec §3 "Node", §4.C "Node store"). Safe for concurrent use.
type Node struct {
	mu sync.Mutex

	currentVersion Version
	oldestVersion  Version
	data           json.Value

	history      []historyEntry
	historyBytes int
}

// NewNode constructs a fresh node: current = oldest = version, data = value,
// history empty.
func NewNode(version Version, value json.Value) *Node {
	return &Node{currentVersion: version, oldestVersion: version, data: value}
}

// CurrentVersion returns the node's current version.
func (n *Node) CurrentVersion() Version {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentVersion
}

// OldestVersion returns the earliest version get_update_from can reconstruct.
func (n *Node) OldestVersion() Version {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.oldestVersion
}

// Data returns the node's current value.
func (n *Node) Data() json.Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.data
}

// Update applies a new value to the node, per spec §4.C:
//  1. If newValue is structurally equal to the current data, this is a
//     no-op: version, history, and data are all unchanged.
//  2. Otherwise compute a bounded delta from the current data to newValue;
//     if it fits maxHistoryBytes, append it to history, else drop the
//     whole history (a "reset" update — the only safe move once one step
//     can't be represented compactly).
//  3. Advance current_version and replace data.
//  4. Evict the oldest history entries until the total is within budget;
//     oldest_version tracks the earliest retained entry, or current_version
//     if history is now empty.
func (n *Node) Update(newValue json.Value, maxHistoryBytes int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.data.Equal(newValue) {
		return
	}

	ok, d := json.Delta(n.data, newValue, maxHistoryBytes)
	if ok {
		entry := historyEntry{version: n.currentVersion, delta: d, bytes: d.Size()}
		n.history = append(n.history, entry)
		n.historyBytes += entry.bytes
	} else {
		n.history = nil
		n.historyBytes = 0
	}

	n.currentVersion = n.currentVersion.Next()
	n.data = newValue

	for n.historyBytes > maxHistoryBytes && len(n.history) > 0 {
		evicted := n.history[0]
		n.history = n.history[1:]
		n.historyBytes -= evicted.bytes
	}
	if len(n.history) == 0 {
		n.oldestVersion = n.currentVersion
	} else {
		n.oldestVersion = n.history[0].version
	}
}

// GetUpdateFrom reports how to bring a subscriber last known to be at v up
// to date: (false, data) if v is already current or older than anything
// retained (the caller should just take the full value), (true, ops)
// otherwise, where ops is the concatenation of every retained delta from v
// onward.
func (n *Node) GetUpdateFrom(v Version) (bool, json.Value) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if v == n.currentVersion {
		return false, n.data
	}
	if v < n.oldestVersion {
		return false, n.data
	}

	var ops []json.Value
	for _, e := range n.history {
		if e.version < v {
			continue
		}
		if arr, ok := e.delta.(json.Array); ok {
			ops = append(ops, arr.Items()...)
		}
	}
	return true, json.NewArray(ops...)
}

// Digest returns a cheap content hash of the node's current data, reported
// in the admin API's node summaries (NodeInfo.Digest) so a change in the
// data can be seen without exposing the data itself.
func (n *Node) Digest() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return xxh3.HashString(json.ToJSON(n.data))
}
