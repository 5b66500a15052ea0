// Package httpmsg implements the minimal HTTP/1.1 request header parse
// needed by internal/server: nothing in spec scope produces a
// RequestHeader (the raw HTTP parser is "specified only as interface",
// spec §1/§6), but internal/server's connection state machine and
// internal/pubsubhttp both need one to exist.
//
// Grounded on stdlib bufio/textproto's own request-line/header-block
// shape, with field-name validation delegated to
// golang.org/x/net/http/httpguts (adopted from the pack: Resin's
// internal/platform/fixed_account_headers.go uses the same package for
// the same RFC-7230 token check rather than a hand-rolled one).
package httpmsg

import (
	"bufio"
	"errors"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ErrMalformedRequest is returned for anything that isn't a well-formed
// request line followed by a valid header block.
var ErrMalformedRequest = errors.New("httpmsg: malformed request")

// RequestHeader is a parsed HTTP/1.1 request line plus header fields.
type RequestHeader struct {
	Method  string
	Target  string
	Version string
	Header  textproto.MIMEHeader
}

// ContentLength returns the parsed Content-Length header, or 0 if absent
// or invalid.
func (h *RequestHeader) ContentLength() int64 {
	v := h.Header.Get("Content-Length")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// KeepAlive reports whether the connection should stay open after this
// request per its declared version and any Connection header, matching
// HTTP/1.1's default-keepalive / HTTP/1.0's default-close rule.
func (h *RequestHeader) KeepAlive() bool {
	conn := strings.ToLower(h.Header.Get("Connection"))
	if strings.Contains(conn, "close") {
		return false
	}
	if strings.Contains(conn, "keep-alive") {
		return true
	}
	return h.Version == "HTTP/1.1"
}

// ParseRequestHeader reads one request line and header block from r,
// stopping right after the blank line that terminates the header block
// (the body, if any, is left in r for the caller to read per
// ContentLength). Returns ErrMalformedRequest wrapped with detail for any
// structural problem.
func ParseRequestHeader(r *bufio.Reader) (*RequestHeader, error) {
	tp := textproto.NewReader(r)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, err
	}
	method, target, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	hdr, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	for name := range hdr {
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, fmt.Errorf("%w: invalid header field name %q", ErrMalformedRequest, name)
		}
	}

	return &RequestHeader{Method: method, Target: target, Version: version, Header: hdr}, nil
}

func parseRequestLine(line string) (method, target, version string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, line)
	}
	method, target, version = parts[0], parts[1], parts[2]
	if !httpguts.ValidHeaderFieldName(method) {
		return "", "", "", fmt.Errorf("%w: bad method %q", ErrMalformedRequest, method)
	}
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return "", "", "", fmt.Errorf("%w: unsupported version %q", ErrMalformedRequest, version)
	}
	return method, target, version, nil
}
