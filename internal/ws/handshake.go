package ws

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"github.com/gobwas/httphead"
	"github.com/gobwas/pool/pbytes"
)

// guid is the RFC 6455 magic string concatenated onto the client nonce
// before hashing (§4.5).
const guid = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Accept computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key header value. The "<key><guid>" scratch buffer is
// pooled via pbytes.GetLen/Put, the same way gobwas-ws's own Writer
// pools its masking scratch space, to avoid an allocation per upgrade on a
// busy listener.
func Accept(key string) string {
	buf := pbytes.GetLen(len(key) + len(guid))
	defer pbytes.Put(buf)

	n := copy(buf, key)
	copy(buf[n:], guid)

	sum := sha1.Sum(buf)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SelectProtocol picks the first subprotocol out of a comma-separated
// Sec-WebSocket-Protocol header value that ok accepts, preserving the
// client's preference order.
func SelectProtocol(header string, ok func(string) bool) (string, bool) {
	for _, p := range strings.Split(header, ",") {
		p = strings.TrimSpace(p)
		if p != "" && ok(p) {
			return p, true
		}
	}
	return "", false
}

// Extension is a negotiated Sec-WebSocket-Extensions token with its
// parameters, mirroring httphead.Option without exposing that dependency
// in callers' signatures.
type Extension struct {
	Name   string
	Params map[string]string
}

// ParseExtensions decodes a Sec-WebSocket-Extensions header value into its
// requested extension tokens and parameters (§4.5), using the same
// structured-header grammar scanner as extension negotiation in dialer
// code, in a single pass over the header.
func ParseExtensions(header string) []Extension {
	var out []Extension
	var cur *Extension
	var index int = -1

	httphead.ScanOptions([]byte(header), func(i int, name, attr, val []byte) httphead.Control {
		if i != index {
			index = i
			out = append(out, Extension{Name: string(name), Params: map[string]string{}})
			cur = &out[len(out)-1]
		}
		if attr != nil {
			cur.Params[string(attr)] = string(val)
		}
		return httphead.ControlContinue
	})
	return out
}

// SelectExtensions filters requested down to the subset ok accepts, in
// the order requested.
func SelectExtensions(requested []Extension, ok func(Extension) bool) []Extension {
	var out []Extension
	for _, e := range requested {
		if ok(e) {
			out = append(out, e)
		}
	}
	return out
}
