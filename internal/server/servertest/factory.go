package servertest

import (
	"sync"

	"github.com/sioux/pubsub/internal/httpmsg"
)

// ResponseFactory is the connection-under-test's pluggable response
// builder (spec component G). A test's own factory implements this by
// returning canned bytes for each request.
type ResponseFactory interface {
	CreateResponse(header *httpmsg.RequestHeader) []byte
}

// ResponseFactoryFunc adapts a plain function to ResponseFactory.
type ResponseFactoryFunc func(*httpmsg.RequestHeader) []byte

func (f ResponseFactoryFunc) CreateResponse(h *httpmsg.RequestHeader) []byte { return f(h) }

// HelloFactory answers every request with a fixed "Hello" body, mirroring
// test_traits.h's default response_factory ("The default behavior of an
// incoming request is to answer with a simple Hello string").
func HelloFactory() ResponseFactory {
	return ResponseFactoryFunc(func(h *httpmsg.RequestHeader) []byte {
		return []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nHello")
	})
}

// RecordingFactory wraps another factory, recording every request header
// it was asked to answer for later assertion — mirrors test_traits.h's
// traits::impl (add_request/requests()).
type RecordingFactory struct {
	mu       sync.Mutex
	inner    ResponseFactory
	requests []*httpmsg.RequestHeader
}

// NewRecordingFactory wraps inner (HelloFactory() if inner is nil).
func NewRecordingFactory(inner ResponseFactory) *RecordingFactory {
	if inner == nil {
		inner = HelloFactory()
	}
	return &RecordingFactory{inner: inner}
}

func (f *RecordingFactory) CreateResponse(h *httpmsg.RequestHeader) []byte {
	f.mu.Lock()
	f.requests = append(f.requests, h)
	f.mu.Unlock()
	return f.inner.CreateResponse(h)
}

// Requests returns every request header seen so far.
func (f *RecordingFactory) Requests() []*httpmsg.RequestHeader {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*httpmsg.RequestHeader, len(f.requests))
	copy(out, f.requests)
	return out
}
