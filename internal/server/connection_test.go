package server

import (
	"strings"
	"sync"
	"testing"

	"github.com/sioux/pubsub/internal/server/servertest"
)

func helloFactory() ResponseFactory {
	return ResponseFactoryFunc(func(h *RequestHeader) []byte {
		return []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nHello")
	})
}

func TestPipelinedRequestsEachProduceOneResponse(t *testing.T) {
	var plan servertest.ReadPlan
	plan.Add("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\nConnection: close\r\n\r\n")

	sock := servertest.NewSocket(&plan, nil)
	c := NewConnection(sock, helloFactory(), Config{MaxRequestBytes: 4096})
	c.Serve()

	out := string(sock.Written())
	if n := strings.Count(out, "HTTP/1.1 200 OK"); n != 2 {
		t.Fatalf("expected 2 responses for 2 pipelined requests, got %d in %q", n, out)
	}
	if !sock.Closed() {
		t.Fatalf("expected the connection to be closed after Connection: close")
	}
}

func TestConnectionCloseRespondsOnceThenCloses(t *testing.T) {
	var plan servertest.ReadPlan
	plan.Add("GET / HTTP/1.1\r\nConnection: close\r\n\r\n")

	sock := servertest.NewSocket(&plan, nil)
	c := NewConnection(sock, helloFactory(), Config{MaxRequestBytes: 4096})
	c.Serve()

	if !strings.Contains(string(sock.Written()), "200 OK") {
		t.Fatalf("expected exactly one response to be written")
	}
	if !sock.Closed() {
		t.Fatalf("expected the connection to close after responding")
	}
}

func TestHalfClosedPeerClosesSilentlyWithoutACompleteRequest(t *testing.T) {
	var plan servertest.ReadPlan
	plan.Add("GET / HTTP/1.1\r\n") // no terminating blank line: incomplete

	sock := servertest.NewSocket(&plan, nil)
	c := NewConnection(sock, helloFactory(), Config{MaxRequestBytes: 4096})
	c.Serve()

	if len(sock.Written()) != 0 {
		t.Fatalf("expected no response for an incomplete request, got %q", sock.Written())
	}
	if !sock.Closed() {
		t.Fatalf("expected the connection to close")
	}
}

func TestOversizedHeaderProducesSingleBufferFullResponse(t *testing.T) {
	var plan servertest.ReadPlan
	plan.Add("GET / HTTP/1.1\r\n")
	plan.Add(strings.Repeat("X-Pad: aaaaaaaaaa\r\n", 2000)) // never terminated

	sock := servertest.NewSocket(&plan, nil)
	c := NewConnection(sock, helloFactory(), Config{MaxRequestBytes: 1024})
	c.Serve()

	out := string(sock.Written())
	if !strings.Contains(out, "431") {
		t.Fatalf("expected a single buffer_full (431) response, got %q", out)
	}
	if strings.Count(out, "HTTP/1.1") != 1 {
		t.Fatalf("expected exactly one response, got %q", out)
	}
	if !sock.Closed() {
		t.Fatalf("expected the connection to close after buffer_full")
	}
}

// hijackFactory answers CreateResponse normally but hijacks any request
// whose target matches want, recording the bytes it sees (including
// whatever Connection's bufio.Reader had already buffered past the
// header) instead of ever producing a response.
type hijackFactory struct {
	want string
	mu   sync.Mutex
	got  []byte
}

func (f *hijackFactory) CreateResponse(h *RequestHeader) []byte {
	return []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nHello")
}

func (f *hijackFactory) Hijack(h *RequestHeader, conn Conn) bool {
	if h.Target != f.want {
		return false
	}
	buf := make([]byte, 64)
	n, _ := conn.Read(buf)
	f.mu.Lock()
	f.got = append([]byte(nil), buf[:n]...)
	f.mu.Unlock()
	conn.Close()
	return true
}

func TestHijackerTakesConnectionOverWithoutWritingAResponse(t *testing.T) {
	var plan servertest.ReadPlan
	plan.Add("GET /subscribe?host=a HTTP/1.1\r\n\r\nleftover-body-bytes")

	sock := servertest.NewSocket(&plan, nil)
	f := &hijackFactory{want: "/subscribe?host=a"}
	c := NewConnection(sock, f, Config{MaxRequestBytes: 4096})
	c.Serve()

	if len(sock.Written()) != 0 {
		t.Fatalf("expected no response written for a hijacked request, got %q", sock.Written())
	}
	if string(f.got) != "leftover-body-bytes" {
		t.Fatalf("expected the hijacker to see bytes Connection had already buffered, got %q", f.got)
	}
}

func TestHijackerDecliningFallsBackToNormalResponse(t *testing.T) {
	var plan servertest.ReadPlan
	plan.Add("GET /other HTTP/1.1\r\nConnection: close\r\n\r\n")

	sock := servertest.NewSocket(&plan, nil)
	f := &hijackFactory{want: "/subscribe"}
	c := NewConnection(sock, f, Config{MaxRequestBytes: 4096})
	c.Serve()

	if !strings.Contains(string(sock.Written()), "200 OK") {
		t.Fatalf("expected a normal response when Hijack declines, got %q", sock.Written())
	}
}

// countingTimer counts Arm/Cancel calls instead of actually scheduling
// anything, so a test can assert the idle timer's arm/cancel pattern
// directly (spec §4.E: "timers never fire while a response is
// writing/queued").
type countingTimer struct {
	mu     sync.Mutex
	armed  int
	cancel int
}

func (t *countingTimer) Arm(func(int)) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed++
	return t.armed
}

func (t *countingTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel++
}

func (t *countingTimer) counts() (armed, cancelled int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed, t.cancel
}

func TestIdleTimerCancelledWhileResponseQueuedThenRearmed(t *testing.T) {
	var plan servertest.ReadPlan
	plan.Add("GET / HTTP/1.1\r\n\r\n")

	sock := servertest.NewSocket(&plan, nil)
	idle := &countingTimer{}

	c := NewConnection(sock, helloFactory(), Config{
		MaxRequestBytes: 4096,
		NewIdleTimer:    func() Timer { return idle },
	})
	c.Serve()

	armed, cancelled := idle.counts()
	// Sequence: Serve arms on start (arm 1); enqueueResponse cancels
	// before handing the response to the writer (cancel 1) and writeOne
	// cancels again on entry (cancel 2) before re-arming once the FIFO
	// empties (arm 2); Close cancels once more on teardown (cancel 3), so
	// the timer is never left armed past the final Close. What matters
	// here is that a cancel always precedes the one re-arm, and arm never
	// happens while the response is still in flight.
	if armed != 2 {
		t.Fatalf("expected the idle timer to be (re)armed exactly twice (start + post-flush), got %d", armed)
	}
	if cancelled < armed {
		t.Fatalf("expected at least one cancel per arm (response in flight must cancel idle), armed=%d cancelled=%d", armed, cancelled)
	}
}
