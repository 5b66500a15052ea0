package server

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// ListenConfig bounds every accepted Connection's timers and buffer
// limits (spec §3 Configuration defaults: keep_alive_timeout 30s,
// io_timeout 3s).
type ListenConfig struct {
	MaxRequestBytes  int
	KeepAliveTimeout time.Duration
	IOTimeout        time.Duration
}

// DefaultListenConfig mirrors pubsub.DefaultConfiguration's transport
// fields.
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		MaxRequestBytes:  64 * 1024,
		KeepAliveTimeout: 30 * time.Second,
		IOTimeout:        3 * time.Second,
	}
}

// ListenAndServe accepts connections on addr and serves each with its own
// Connection built around factory, until the listener is closed or accept
// fails. [EXPANSION] SPEC_FULL §4.E: wires the same connection state
// machine used under servertest.Socket to a real net.Listener — only the
// I/O source differs. registry, if non-nil, tracks every live Connection
// for the admin API's connection listing (SPEC_FULL §6).
func ListenAndServe(addr string, factory ResponseFactory, cfg ListenConfig, registry *Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go serveConn(conn, factory, cfg, registry)
	}
}

func serveConn(conn net.Conn, factory ResponseFactory, cfg ListenConfig, registry *Registry) {
	c := NewConnection(conn, factory, Config{
		MaxRequestBytes: cfg.MaxRequestBytes,
		NewIdleTimer:    func() Timer { return NewRealTimer(cfg.KeepAliveTimeout) },
		NewReadTimer:    func() Timer { return NewRealTimer(cfg.IOTimeout) },
		NewWriteTimer:   func() Timer { return NewRealTimer(cfg.IOTimeout) },
		ID:              uuid.NewString(),
		RemoteAddr:      conn.RemoteAddr().String(),
		Registry:        registry,
	})
	c.Serve()
}
