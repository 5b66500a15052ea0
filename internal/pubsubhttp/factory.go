package pubsubhttp

import (
	"strconv"

	"github.com/sioux/pubsub/internal/pubsub"
	"github.com/sioux/pubsub/internal/server"
)

// Factory is the primary pub/sub listener's server.ResponseFactory /
// server.Hijacker: every GET under "/subscribe" is handed to Serve for
// the lifetime of the connection (spec §4.F), everything else gets a
// plain 404 (the HTTP surface names nothing else — SPEC_FULL §6).
type Factory struct {
	Root *pubsub.Root
}

// NewFactory builds a Factory bound to root.
func NewFactory(root *pubsub.Root) *Factory {
	return &Factory{Root: root}
}

// Hijack implements server.Hijacker.
func (f *Factory) Hijack(header *server.RequestHeader, conn server.Conn) bool {
	if !IsSubscribeTarget(header) {
		return false
	}
	name, err := NameFromTarget(header.Target)
	if err != nil {
		return false
	}
	go Serve(conn, f.Root, name)
	return true
}

// CreateResponse implements server.ResponseFactory for any request Hijack
// declined (i.e. not a subscribe target).
func (f *Factory) CreateResponse(header *server.RequestHeader) []byte {
	const body = `{"error":"not found"}`
	return []byte("HTTP/1.1 404 Not Found\r\nContent-Type: application/json\r\nContent-Length: " +
		strconv.Itoa(len(body)) + "\r\nConnection: close\r\n\r\n" + body)
}
