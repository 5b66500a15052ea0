package pubsub

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/sioux/pubsub/internal/json"
	"github.com/sioux/pubsub/internal/taskqueue"
)

// subscribedNode is a node plus its live subscriber set and the
// configuration it was bound under at creation time (spec §3 "Subscribed
// node" — a node holds its configuration reference for its lifetime,
// independent of later AddConfiguration/RemoveConfiguration calls).
type subscribedNode struct {
	node   *Node
	config Configuration
	// Guards subscribers. A plain mutex, not xsync, because the set is
	// small and mutated far less often than the node map itself.
	mu          sync.Mutex
	subscribers map[Subscriber]struct{}
}

// Root is the subscription root (spec §4.D): the map of node name to node
// state, the subscriber sets, and the validate/authorize/init orchestration
// that binds subscribers to nodes via an embedder-supplied Adapter.
//
// Grounded on original_source/pubsub/root.cpp's root::impl /
// validator<Root> / configuration_list, with the node map itself following
// Resin's internal/topology/pool.go GlobalNodePool (*xsync.Map keyed by a
// stable hash/name, guarded Compute for atomic get-or-create).
type Root struct {
	adapter         Adapter
	queue           *taskqueue.Queue
	configs         *ConfigurationList
	maxHistoryBytes int

	nodes *xsync.Map[string, *subscribedNode]

	// Optional hooks for maintenance.GraceEvictor: emptiedHook fires (with
	// the node's map key) the moment a node's subscriber set becomes
	// empty; resubscribedHook fires when a subscriber joins a node that
	// may have a pending eviction. Root has no opinion on grace periods
	// itself (spec §3: "implementation-defined grace") — it just reports
	// the edges maintenance.go needs.
	emptiedHook      func(key string)
	resubscribedHook func(key string)

	// auditHook, if set, is called once per lifecycle outcome and once per
	// UpdateNode call (never per-subscriber-delivery) so internal/audit can
	// record an append-only trail without pubsub importing a persistence
	// package (spec §3: the audit log is "purely an observability
	// side-channel, never consulted by the core").
	auditHook func(AuditEvent)
}

// AuditEvent mirrors internal/audit.Event's shape without pubsub
// depending on that package.
type AuditEvent struct {
	Kind         string
	NodeName     string
	SubscriberID string
}

// SetAuditHook registers fn to be called for every subscription lifecycle
// outcome and node update.
func (r *Root) SetAuditHook(fn func(AuditEvent)) { r.auditHook = fn }

func (r *Root) emitAudit(kind, name, subscriberID string) {
	if r.auditHook != nil {
		r.auditHook(AuditEvent{Kind: kind, NodeName: name, SubscriberID: subscriberID})
	}
}

// subscriberID extracts an identifier from subscriber if it implements
// the optional `ID() string` method (internal/pubsubhttp.connSubscriber
// does); otherwise returns "".
func subscriberID(s Subscriber) string {
	if withID, ok := s.(interface{ ID() string }); ok {
		return withID.ID()
	}
	return ""
}

// SetEmptiedHook registers fn to be called whenever a node's subscriber set
// transitions from non-empty to empty.
func (r *Root) SetEmptiedHook(fn func(key string)) { r.emptiedHook = fn }

// SetResubscribedHook registers fn to be called whenever a subscriber joins
// a node (including at creation), so a pending grace-period eviction can be
// cancelled.
func (r *Root) SetResubscribedHook(fn func(key string)) { r.resubscribedHook = fn }

// NewRoot constructs a Root. queue is the shared task queue every
// subscriber notification (on_update and the lifecycle-failure reports,
// together with the adapter's matching failure hooks) is posted to. The
// adapter's ValidNode/Authorize/NodeInit are called directly, on whichever
// goroutine is driving the lifecycle at that step.
func NewRoot(adapter Adapter, queue *taskqueue.Queue, configs *ConfigurationList, maxHistoryBytes int) *Root {
	return &Root{
		adapter:         adapter,
		queue:           queue,
		configs:         configs,
		maxHistoryBytes: maxHistoryBytes,
		nodes:           xsync.NewMap[string, *subscribedNode](),
	}
}

// AddConfiguration binds cfg to group under label.
func (r *Root) AddConfiguration(label string, group NodeGroup, cfg Configuration) {
	r.configs.AddConfiguration(label, group, cfg)
}

// RemoveConfiguration unbinds the configuration registered under label.
// Nodes already bound to it keep their reference (spec §3, §5 "Shared
// resources": "remove_configuration does not invalidate nodes already
// bound to it").
func (r *Root) RemoveConfiguration(label string) error {
	return r.configs.RemoveConfiguration(label)
}

// Subscribe drives the four-step validate→authorize→init→deliver lifecycle
// (spec §4.D). Exactly one of the Subscriber's on_update / lifecycle-
// failure callbacks is invoked for this call, posted on the Root's task
// queue (spec §8 universal invariant).
func (r *Root) Subscribe(subscriber Subscriber, name Name) {
	if existing, ok := r.nodes.Load(name.String()); ok {
		// Resolved Open Question (spec §9): joining an existing node skips
		// validate/authorize/init — they already ran for its first
		// subscriber — and immediately delivers the current data.
		existing.mu.Lock()
		existing.subscribers[subscriber] = struct{}{}
		existing.mu.Unlock()
		r.notifyResubscribed(name.String())
		r.emitAudit("subscribe", name.String(), subscriberID(subscriber))

		nd := existing.node
		r.queue.Post(func() {
			subscriber.OnUpdate(name, nd)
		})
		return
	}

	cfg := r.configs.GetConfiguration(name)

	validCb := newValidationCallback(func(valid bool) {
		if !valid {
			r.emitAudit("invalid", name.String(), subscriberID(subscriber))
			r.queue.Post(func() {
				r.adapter.InvalidNodeSubscription(name, subscriber)
				subscriber.OnInvalidNodeSubscription(name)
			})
			return
		}
		r.afterValidated(subscriber, name, cfg)
	})
	r.adapter.ValidNode(name, validCb)
}

func (r *Root) afterValidated(subscriber Subscriber, name Name, cfg Configuration) {
	if !cfg.AuthorizationRequired {
		r.afterAuthorized(subscriber, name, cfg)
		return
	}

	authCb := newAuthorizationCallback(func(authorized bool) {
		if !authorized {
			r.emitAudit("unauthorized", name.String(), subscriberID(subscriber))
			r.queue.Post(func() {
				r.adapter.UnauthorizedSubscription(name, subscriber)
				subscriber.OnUnauthorizedNodeSubscription(name)
			})
			return
		}
		r.afterAuthorized(subscriber, name, cfg)
	})
	r.adapter.Authorize(subscriber, name, authCb)
}

func (r *Root) afterAuthorized(subscriber Subscriber, name Name, cfg Configuration) {
	initCb := newInitializationCallback(func(ok bool, value json.Value) {
		if !ok {
			r.emitAudit("init_failed", name.String(), subscriberID(subscriber))
			r.queue.Post(func() {
				r.adapter.InitializationFailed(name, subscriber)
				subscriber.OnFailedNodeSubscription(name)
			})
			return
		}
		r.insertNode(subscriber, name, cfg, value)
	})
	r.adapter.NodeInit(name, initCb)
}

func (r *Root) insertNode(subscriber Subscriber, name Name, cfg Configuration, value json.Value) {
	sn := &subscribedNode{
		node:        NewNode(FirstVersion, value),
		config:      cfg,
		subscribers: map[Subscriber]struct{}{subscriber: {}},
	}

	actual, loaded := r.nodes.LoadOrStore(name.String(), sn)
	if loaded {
		// Lost the race against a concurrent first subscriber: join the
		// node that won instead, per the same join-existing-node path
		// Subscribe takes above.
		actual.mu.Lock()
		actual.subscribers[subscriber] = struct{}{}
		actual.mu.Unlock()
		sn = actual
	}
	r.notifyResubscribed(name.String())
	r.emitAudit("subscribe", name.String(), subscriberID(subscriber))

	nd := sn.node
	r.queue.Post(func() {
		subscriber.OnUpdate(name, nd)
	})
}

// Unsubscribe removes subscriber from name's subscriber set, if present.
func (r *Root) Unsubscribe(subscriber Subscriber, name Name) {
	sn, ok := r.nodes.Load(name.String())
	if !ok {
		return
	}
	sn.mu.Lock()
	_, present := sn.subscribers[subscriber]
	delete(sn.subscribers, subscriber)
	empty := len(sn.subscribers) == 0
	sn.mu.Unlock()
	r.emitAudit("unsubscribe", name.String(), subscriberID(subscriber))
	if present && empty {
		r.notifyEmptied(name.String())
	}
}

// UnsubscribeAll removes subscriber from every node's subscriber set
// (called on connection teardown — spec §4.F).
func (r *Root) UnsubscribeAll(subscriber Subscriber) {
	id := subscriberID(subscriber)
	r.nodes.Range(func(key string, sn *subscribedNode) bool {
		sn.mu.Lock()
		_, present := sn.subscribers[subscriber]
		delete(sn.subscribers, subscriber)
		empty := len(sn.subscribers) == 0
		sn.mu.Unlock()
		if present {
			r.emitAudit("unsubscribe", key, id)
		}
		if present && empty {
			r.notifyEmptied(key)
		}
		return true
	})
}

func (r *Root) notifyEmptied(key string) {
	if r.emptiedHook != nil {
		r.emptiedHook(key)
	}
}

func (r *Root) notifyResubscribed(key string) {
	if r.resubscribedHook != nil {
		r.resubscribedHook(key)
	}
}

// UpdateNode applies newData to name's node (creating nothing — a node
// only comes into being via a successful Subscribe, per spec §3
// lifecycle) and posts on_update to every current subscriber, each in its
// own queued task so that delivery order for one subscriber stays FIFO
// while imposing no ordering across subscribers (spec §4.D, §5).
func (r *Root) UpdateNode(name Name, newData json.Value) {
	sn, ok := r.nodes.Load(name.String())
	if !ok {
		return
	}
	sn.node.Update(newData, r.maxHistoryBytes)
	r.emitAudit("update", name.String(), "")

	sn.mu.Lock()
	subs := make([]Subscriber, 0, len(sn.subscribers))
	for s := range sn.subscribers {
		subs = append(subs, s)
	}
	sn.mu.Unlock()

	nd := sn.node
	for _, s := range subs {
		sub := s
		r.queue.Post(func() {
			sub.OnUpdate(name, nd)
		})
	}
}

// NodeCount reports the number of live nodes, for admin/diagnostic use.
func (r *Root) NodeCount() int { return r.nodes.Size() }

// NodeInfo is a read-only summary of one node, for internal/adminapi's
// GET /api/v1/nodes (SPEC_FULL §6) — never exposes the adapter-supplied
// data itself, only version/digest/subscriber-count metadata.
type NodeInfo struct {
	Name            string
	CurrentVersion  Version
	OldestVersion   Version
	Digest          uint64
	SubscriberCount int
}

func nodeInfo(key string, sn *subscribedNode) NodeInfo {
	sn.mu.Lock()
	count := len(sn.subscribers)
	sn.mu.Unlock()
	return NodeInfo{
		Name:            key,
		CurrentVersion:  sn.node.CurrentVersion(),
		OldestVersion:   sn.node.OldestVersion(),
		Digest:          sn.node.Digest(),
		SubscriberCount: count,
	}
}

// ListNodes returns a summary of every live node.
func (r *Root) ListNodes() []NodeInfo {
	out := make([]NodeInfo, 0, r.nodes.Size())
	r.nodes.Range(func(key string, sn *subscribedNode) bool {
		out = append(out, nodeInfo(key, sn))
		return true
	})
	return out
}

// GetNodeInfo returns name's summary, if a node by that name exists.
func (r *Root) GetNodeInfo(name Name) (NodeInfo, bool) {
	return r.GetNodeInfoByKey(name.String())
}

// GetNodeInfoByKey is GetNodeInfo keyed directly by a name's canonical
// String() form, for callers (internal/adminapi) that only have the
// string, not a constructed Name.
func (r *Root) GetNodeInfoByKey(key string) (NodeInfo, bool) {
	sn, ok := r.nodes.Load(key)
	if !ok {
		return NodeInfo{}, false
	}
	return nodeInfo(key, sn), true
}

// EvictIfUnsubscribed removes name's node if it currently has no
// subscribers, returning whether it was removed. Used by maintenance.go's
// grace-period sweep (spec §3 "Node... destroyed when no subscribers
// remain AND no pending update has been observed within an
// implementation-defined grace").
func (r *Root) EvictIfUnsubscribed(name Name) bool {
	sn, ok := r.nodes.Load(name.String())
	if !ok {
		return false
	}
	sn.mu.Lock()
	empty := len(sn.subscribers) == 0
	sn.mu.Unlock()
	if !empty {
		return false
	}
	r.nodes.Delete(name.String())
	return true
}

// EvictIfUnsubscribedByKey is EvictIfUnsubscribed keyed directly by the map
// key RangeUnsubscribedNodes hands out, avoiding re-deriving a Name.
func (r *Root) EvictIfUnsubscribedByKey(key string) bool {
	sn, ok := r.nodes.Load(key)
	if !ok {
		return false
	}
	sn.mu.Lock()
	empty := len(sn.subscribers) == 0
	sn.mu.Unlock()
	if !empty {
		return false
	}
	r.nodes.Delete(key)
	return true
}

// RangeUnsubscribedNodes calls fn for every currently subscriber-less
// node's name. fn must not call back into Root.
func (r *Root) RangeUnsubscribedNodes(fn func(name string)) {
	r.nodes.Range(func(key string, sn *subscribedNode) bool {
		sn.mu.Lock()
		empty := len(sn.subscribers) == 0
		sn.mu.Unlock()
		if empty {
			fn(key)
		}
		return true
	})
}
