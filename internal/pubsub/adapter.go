package pubsub

import (
	"sync"

	"github.com/sioux/pubsub/internal/json"
)

// Subscriber is the long-lived receiver of node updates tied to one HTTP
// connection (spec §6 "Subscriber interface"). Implementations must not
// block.
type Subscriber interface {
	OnUpdate(name Name, node *Node)
	OnInvalidNodeSubscription(name Name)
	OnUnauthorizedNodeSubscription(name Name)
	OnFailedNodeSubscription(name Name)
}

// Adapter resolves subscription policy: node validity, subscriber
// authorization, and a node's initial value (spec §6 "Adapter interface").
// Each *Callback argument may be answered synchronously (before the method
// returns), asynchronously (from any goroutine, later), or dropped — see
// the callback types below.
type Adapter interface {
	ValidNode(name Name, cb *ValidationCallback)
	Authorize(subscriber Subscriber, name Name, cb *AuthorizationCallback)
	NodeInit(name Name, cb *InitializationCallback)

	InvalidNodeSubscription(name Name, subscriber Subscriber)
	UnauthorizedSubscription(name Name, subscriber Subscriber)
	InitializationFailed(name Name, subscriber Subscriber)
}

// Go has no destructors, so there is nothing to observe an adapter quietly
// losing interest in a callback (spec §9 "Destructor-observed lifecycle
// failure": the C++ reference drops a shared_ptr and the callback's
// destructor reports the pending stage as failed). Each callback type below
// stands that contract up explicitly instead: IsValid/NotValid/etc. answer
// it, and Drop reports failure on behalf of an adapter that decided not to
// retain the callback at all. Every terminal call (including Drop) is
// idempotent — only the first one is observed, matching "synchronous
// answers must produce the same observable sequence as asynchronous ones".

// ValidationCallback is handed to Adapter.ValidNode.
type ValidationCallback struct {
	mu       sync.Mutex
	answered bool
	onResult func(valid bool)
}

func newValidationCallback(onResult func(valid bool)) *ValidationCallback {
	return &ValidationCallback{onResult: onResult}
}

// IsValid reports that name may be subscribed to.
func (c *ValidationCallback) IsValid() { c.answer(true) }

// NotValid reports that name is not a valid subscription target.
func (c *ValidationCallback) NotValid() { c.answer(false) }

// Drop reports failure on behalf of an adapter abandoning this callback
// without answering it.
func (c *ValidationCallback) Drop() { c.answer(false) }

func (c *ValidationCallback) answer(valid bool) {
	c.mu.Lock()
	if c.answered {
		c.mu.Unlock()
		return
	}
	c.answered = true
	c.mu.Unlock()
	c.onResult(valid)
}

// AuthorizationCallback is handed to Adapter.Authorize.
type AuthorizationCallback struct {
	mu       sync.Mutex
	answered bool
	onResult func(authorized bool)
}

func newAuthorizationCallback(onResult func(authorized bool)) *AuthorizationCallback {
	return &AuthorizationCallback{onResult: onResult}
}

// IsAuthorized reports that the subscriber may subscribe to name.
func (c *AuthorizationCallback) IsAuthorized() { c.answer(true) }

// NotAuthorized reports that the subscriber may not subscribe to name.
func (c *AuthorizationCallback) NotAuthorized() { c.answer(false) }

// Drop reports failure on behalf of an adapter abandoning this callback.
func (c *AuthorizationCallback) Drop() { c.answer(false) }

func (c *AuthorizationCallback) answer(authorized bool) {
	c.mu.Lock()
	if c.answered {
		c.mu.Unlock()
		return
	}
	c.answered = true
	c.mu.Unlock()
	c.onResult(authorized)
}

// InitializationCallback is handed to Adapter.NodeInit.
type InitializationCallback struct {
	mu       sync.Mutex
	answered bool
	onResult func(ok bool, value json.Value)
}

func newInitializationCallback(onResult func(ok bool, value json.Value)) *InitializationCallback {
	return &InitializationCallback{onResult: onResult}
}

// InitialValue supplies the node's starting document.
func (c *InitializationCallback) InitialValue(value json.Value) {
	c.mu.Lock()
	if c.answered {
		c.mu.Unlock()
		return
	}
	c.answered = true
	c.mu.Unlock()
	c.onResult(true, value)
}

// Drop reports initialization failure on behalf of an adapter abandoning
// this callback.
func (c *InitializationCallback) Drop() {
	c.mu.Lock()
	if c.answered {
		c.mu.Unlock()
		return
	}
	c.answered = true
	c.mu.Unlock()
	c.onResult(false, nil)
}
