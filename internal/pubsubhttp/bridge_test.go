package pubsubhttp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	pjson "github.com/sioux/pubsub/internal/json"
	"github.com/sioux/pubsub/internal/pubsub"
	"github.com/sioux/pubsub/internal/taskqueue"
)

// pipeConn is a minimal in-memory Conn: written frames are buffered for the
// test to read; Close unblocks the bridge's read loop by making Read
// return io.EOF, simulating the client disconnecting.
type pipeConn struct {
	mu     sync.Mutex
	out    bytes.Buffer
	closed chan struct{}
}

func newPipeConn() *pipeConn {
	return &pipeConn{closed: make(chan struct{})}
}

func (c *pipeConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, io.EOF
}

func (c *pipeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *pipeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *pipeConn) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	sc := bufio.NewScanner(strings.NewReader(c.out.String()))
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

// erroringWriteConn fails every Write, simulating a client that
// disconnected mid-stream: the write loop should tear itself down via
// teardown (not the wg-joining close) and Serve's own close must still
// return once conn.Read also unblocks.
type erroringWriteConn struct {
	closed chan struct{}
}

func newErroringWriteConn() *erroringWriteConn {
	return &erroringWriteConn{closed: make(chan struct{})}
}

func (c *erroringWriteConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, io.EOF
}

func (c *erroringWriteConn) Write(p []byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func (c *erroringWriteConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

type passAdapter struct{}

func (passAdapter) ValidNode(name pubsub.Name, cb *pubsub.ValidationCallback) { cb.IsValid() }

func (passAdapter) Authorize(s pubsub.Subscriber, n pubsub.Name, cb *pubsub.AuthorizationCallback) {
	cb.IsAuthorized()
}

func (passAdapter) NodeInit(name pubsub.Name, cb *pubsub.InitializationCallback) {
	cb.InitialValue(pjson.NewObject().Add("greeting", pjson.NewString("hi")))
}

func (passAdapter) InvalidNodeSubscription(pubsub.Name, pubsub.Subscriber)  {}
func (passAdapter) UnauthorizedSubscription(pubsub.Name, pubsub.Subscriber) {}
func (passAdapter) InitializationFailed(pubsub.Name, pubsub.Subscriber)     {}

func TestNameFromTargetParsesQueryIntoName(t *testing.T) {
	name, err := NameFromTarget("/subscribe?host=a&region=us")
	if err != nil {
		t.Fatalf("NameFromTarget: %v", err)
	}
	if v, ok := name.Get("host"); !ok || v != "a" {
		t.Fatalf("expected host=a, got %q ok=%v", v, ok)
	}
	if v, ok := name.Get("region"); !ok || v != "us" {
		t.Fatalf("expected region=us, got %q ok=%v", v, ok)
	}
}

func TestNameFromTargetRejectsNoQuery(t *testing.T) {
	if _, err := NameFromTarget("/subscribe"); err == nil {
		t.Fatalf("expected an error for a target with no query parameters")
	}
}

func TestServeStreamsInitialValueThenUpdateFrame(t *testing.T) {
	queue := taskqueue.New(64)
	defer queue.Stop()
	configs := pubsub.NewConfigurationList(pubsub.DefaultConfiguration())
	root := pubsub.NewRoot(passAdapter{}, queue, configs, 4096)

	conn := newPipeConn()
	name := pubsub.NewName([2]string{"host", "a"})

	done := make(chan struct{})
	go func() {
		Serve(conn, root, name)
		close(done)
	}()

	deadline := time.After(time.Second)
	for len(conn.lines()) < 1 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the initial frame")
		case <-time.After(5 * time.Millisecond):
		}
	}

	root.UpdateNode(name, pjson.NewObject().Add("greeting", pjson.NewString("bye")))

	for len(conn.lines()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the update frame")
		case <-time.After(5 * time.Millisecond):
		}
	}

	lines := conn.lines()
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("frame 0 not valid JSON: %v (%q)", err, lines[0])
	}
	if first["delta"] != false {
		t.Fatalf("expected the initial frame to be a full value, got %v", first)
	}

	conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return after the connection closed")
	}
}

// TestServeReturnsWhenWriteFails exercises the client-disconnect-mid-
// stream path: a failing Write makes the write loop tear itself down
// (via teardown, not close) while Serve is still blocked in conn.Read,
// and the whole thing must still unwind once Close unblocks that read.
func TestServeReturnsWhenWriteFails(t *testing.T) {
	queue := taskqueue.New(64)
	defer queue.Stop()
	configs := pubsub.NewConfigurationList(pubsub.DefaultConfiguration())
	root := pubsub.NewRoot(passAdapter{}, queue, configs, 4096)

	conn := newErroringWriteConn()
	name := pubsub.NewName([2]string{"host", "a"})

	done := make(chan struct{})
	go func() {
		Serve(conn, root, name)
		close(done)
	}()

	// The initial frame's failed Write tears the write loop down well
	// before the peer ever disconnects; give it a moment to happen.
	time.Sleep(20 * time.Millisecond)

	conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return after a write failure plus connection close")
	}
}
