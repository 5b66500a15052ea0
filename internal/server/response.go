package server

import "github.com/sioux/pubsub/internal/httpmsg"

// RequestHeader aliases httpmsg.RequestHeader so callers in this package
// need not import internal/httpmsg directly.
type RequestHeader = httpmsg.RequestHeader

// Canned responses for connection-level conditions that never reach a
// ResponseFactory (spec §4.E/§7): an oversized, still-incomplete request
// (buffer_full) and a malformed request line/header block.
var (
	bufferFullResponse = []byte("HTTP/1.1 431 Request Header Fields Too Large\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
	badRequestResponse  = []byte("HTTP/1.1 400 Bad Request\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
)

// ResponseFactory builds the response bytes for one fully-parsed request.
// Implementations own header+body framing entirely; Connection only knows
// how to place the result into the response FIFO (spec component G).
type ResponseFactory interface {
	CreateResponse(header *RequestHeader) []byte
}

// ResponseFactoryFunc adapts a plain function to ResponseFactory.
type ResponseFactoryFunc func(*RequestHeader) []byte

func (f ResponseFactoryFunc) CreateResponse(h *RequestHeader) []byte { return f(h) }

// Hijacker is an optional ResponseFactory extension for requests that open
// a long-lived, non-request/response stream (spec §4.F: a subscribe
// response keeps pushing frames for as long as the client stays
// connected, which doesn't fit the one-request-one-response FIFO).
// Grounded on Resin's internal/proxy/forward.go CONNECT-tunnel hijack: a
// factory that recognizes header takes conn over directly — reading,
// writing, and eventually closing it itself — and returns true: Connection
// then walks away from this socket entirely instead of writing a response
// and expecting a further pipelined request. Returning false leaves the
// connection exactly as it was; Connection falls back to CreateResponse.
type Hijacker interface {
	Hijack(header *RequestHeader, conn Conn) bool
}
