// Package pubsubhttp bridges the HTTP connection layer (internal/server)
// to the subscription root (internal/pubsub): spec component 4.F,
// "Pub/sub HTTP response".
//
// A subscribe request is long-lived (the server keeps pushing update
// frames for as long as the client stays connected), which does not fit
// internal/server's one-request-one-response Connection FIFO. Grounded
// on Resin's internal/proxy/forward.go handleCONNECT: the connection is
// taken over directly (hijacked, in spirit) the same way a CONNECT
// tunnel takes over the client socket for bidirectional byte-copying
// instead of producing a single buffered response.
package pubsubhttp

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sioux/pubsub/internal/httpmsg"
	"github.com/sioux/pubsub/internal/json"
	"github.com/sioux/pubsub/internal/pubsub"
)

// Conn is the minimal I/O surface the bridge needs from a connection:
// satisfied by server.Conn / net.Conn.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// NameFromTarget derives a pubsub.Name from a request target's query
// string: each query parameter becomes one (domain, value) key.
// [EXPANSION] this implementation's own wire choice (SPEC_FULL §6): the
// original request-to-name mapping is out of scope since the raw HTTP
// parser itself is only specified as an interface.
func NameFromTarget(target string) (pubsub.Name, error) {
	u, err := url.Parse(target)
	if err != nil {
		return pubsub.Name{}, fmt.Errorf("pubsubhttp: bad subscribe target %q: %w", target, err)
	}
	q := u.Query()
	if len(q) == 0 {
		return pubsub.Name{}, fmt.Errorf("pubsubhttp: subscribe target %q names no node", target)
	}
	var name pubsub.Name
	for domain, values := range q {
		if len(values) == 0 {
			continue
		}
		name = name.With(domain, values[0])
	}
	return name, nil
}

// IsSubscribeTarget reports whether header names a subscription request,
// by convention any GET under "/subscribe".
func IsSubscribeTarget(header *httpmsg.RequestHeader) bool {
	return header.Method == "GET" && strings.HasPrefix(header.Target, "/subscribe")
}

// Serve takes over conn for the lifetime of one subscription: it
// subscribes sub's identity to name via root, streams a newline-delimited
// JSON frame for every update, and unsubscribes everything tied to this
// connection once the peer disconnects or a write fails. It blocks until
// the subscription ends.
//
// Frame format (SPEC_FULL §4.F):
//
//	{"node":<name-as-object>,"version":<int>,"delta":<bool>,"data":<value-or-ops>}
func Serve(conn Conn, root *pubsub.Root, name pubsub.Name) {
	sub := newConnSubscriber(conn, name)
	root.Subscribe(sub, name)

	// The peer sends nothing further on a subscribe connection; reading
	// here only exists to notice half-close/reset so the subscription can
	// be torn down promptly instead of leaking until a write eventually
	// fails.
	var discard [256]byte
	for {
		if _, err := conn.Read(discard[:]); err != nil {
			break
		}
	}
	root.UnsubscribeAll(sub)
	sub.close()
}

// connSubscriber adapts one HTTP connection to pubsub.Subscriber. Frames
// are serialized onto a small buffered channel and written by a single
// goroutine so that delivery for this subscriber stays FIFO even though
// OnUpdate may be invoked from the root's task queue workers.
type connSubscriber struct {
	conn Conn
	id   string

	mu       sync.Mutex
	lastSent map[string]pubsub.Version
	closed   bool
	frames   chan []byte
	doneCh   chan struct{}
	wg       sync.WaitGroup
}

func newConnSubscriber(conn Conn, name pubsub.Name) *connSubscriber {
	s := &connSubscriber{
		conn:     conn,
		id:       uuid.NewString(),
		lastSent: make(map[string]pubsub.Version),
		frames:   make(chan []byte, 32),
		doneCh:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s
}

// ID identifies this subscriber in internal/audit's event trail (picked
// up via pubsub.Root's optional `interface{ ID() string }` check).
func (s *connSubscriber) ID() string { return s.id }

func (s *connSubscriber) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case frame, ok := <-s.frames:
			if !ok {
				return
			}
			if _, err := s.conn.Write(frame); err != nil {
				s.teardown()
				return
			}
		case <-s.doneCh:
			return
		}
	}
}

func (s *connSubscriber) OnUpdate(name pubsub.Name, node *pubsub.Node) {
	key := name.String()
	s.mu.Lock()
	last, seen := s.lastSent[key]
	s.mu.Unlock()

	var (
		isDelta bool
		payload json.Value
		from    pubsub.Version
	)
	if !seen {
		isDelta, payload = false, node.Data()
	} else {
		isDelta, payload = node.GetUpdateFrom(last)
	}
	from = node.CurrentVersion()

	s.mu.Lock()
	s.lastSent[key] = from
	s.mu.Unlock()

	frame := buildFrame(name, from, isDelta, payload)
	s.enqueue(frame)
}

func (s *connSubscriber) OnInvalidNodeSubscription(name pubsub.Name) {
	s.enqueue(buildErrorFrame(name, "invalid_node"))
}

func (s *connSubscriber) OnUnauthorizedNodeSubscription(name pubsub.Name) {
	s.enqueue(buildErrorFrame(name, "unauthorized"))
}

func (s *connSubscriber) OnFailedNodeSubscription(name pubsub.Name) {
	s.enqueue(buildErrorFrame(name, "init_failed"))
}

func (s *connSubscriber) enqueue(frame []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case s.frames <- frame:
	case <-s.doneCh:
	}
}

// teardown signals the write loop to stop and closes conn, but does not
// join it — writeLoop itself calls teardown on a write failure, and
// joining its own wg there would deadlock (Done can't run until Wait
// returns, which can't happen until Done runs). Safe to call from any
// goroutine, any number of times.
func (s *connSubscriber) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.doneCh)
	s.conn.Close()
}

// close tears down the subscriber and waits for the write loop to exit.
// Only Serve calls this, from a goroutine other than writeLoop's.
func (s *connSubscriber) close() {
	s.teardown()
	s.wg.Wait()
}

func nameToObject(name pubsub.Name) json.Object {
	obj := json.NewObject()
	// Name doesn't expose its keys directly (only Get/Equal/String); the
	// canonical String() form is itself a valid, order-independent
	// rendering of the same domain=value pairs, so it is reused as the
	// wire's node identifier rather than re-deriving a key list.
	obj = obj.Add("id", json.NewString(name.String()))
	return obj
}

func buildFrame(name pubsub.Name, version pubsub.Version, isDelta bool, data json.Value) []byte {
	obj := json.NewObject().
		Add("node", nameToObject(name)).
		Add("version", json.NewNumberInt(int(version))).
		Add("delta", json.NewBool(isDelta)).
		Add("data", data)
	return []byte(json.ToJSON(obj) + "\n")
}

func buildErrorFrame(name pubsub.Name, reason string) []byte {
	obj := json.NewObject().
		Add("node", nameToObject(name)).
		Add("error", json.NewString(reason))
	return []byte(json.ToJSON(obj) + "\n")
}
