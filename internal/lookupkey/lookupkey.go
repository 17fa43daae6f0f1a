// Package lookupkey builds cache and table lookup key prefixes from
// connection context. Keys built here combine per-service, per-request
// and per-destination fields; routing every consumer through one builder
// keeps shared context consistent, so equal keys never mean different
// things to different caches.
package lookupkey

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Field selects one key field. Combine fields with bitwise OR; the fields
// always appear in a fixed order regardless of how the caller combines
// them.
type Field int

const (
	// FieldService is the global service name, a proxy for
	// destination-independent and request-independent context.
	FieldService Field = 1 << iota

	// FieldSender is the envelope sender address, a proxy for
	// sender-dependent context such as per-sender authentication. A
	// placeholder is used when sender-dependent context is disabled.
	FieldSender

	// FieldRequestNexthop is the request nexthop destination:
	// destination-dependent, host-independent context.
	FieldRequestNexthop

	// FieldNexthop is the current delivery attempt's nexthop, including
	// optional [] and :port, the form users write in lookup tables.
	FieldNexthop

	// FieldHostname is the remote hostname of the current delivery
	// attempt.
	FieldHostname

	// FieldAddr is the remote address of the current delivery attempt.
	FieldAddr

	// FieldPort is the remote port of the current delivery attempt.
	FieldPort

	// FieldSASL selects the current (obfuscated) SASL username and
	// password, or placeholders when the session has none.
	FieldSASL

	// FieldNoSASL selects placeholders that match only sessions without
	// SASL authentication.
	FieldNoSASL

	fieldAll = FieldService | FieldSender | FieldRequestNexthop | FieldNexthop |
		FieldHostname | FieldAddr | FieldPort | FieldSASL | FieldNoSASL
)

// ClientInfo carries the context fields a key prefix may draw from.
type ClientInfo struct {
	Service        string
	Sender         string
	RequestNexthop string
	Nexthop        string
	Hostname       string
	Addr           string
	Port           uint16

	// SenderDependent enables the sender field; when false, FieldSender
	// contributes a placeholder so keys from sender-independent
	// configurations never collide with sender-specific ones.
	SenderDependent bool

	SASLUsername string
	SASLPassword string
}

// Builder formats key prefixes with a configurable field delimiter and
// optional placeholder for unavailable or inapplicable fields.
//
// Fields containing the delimiter or placeholder character are
// base64-encoded, so the delimiter must not be part of the base64
// alphabet.
type Builder struct {
	delim       byte
	placeholder byte // 0 = none
}

// NewBuilder returns a Builder using the given delimiter-and-placeholder
// string: the first byte is the field delimiter, the optional second byte
// the placeholder. Panics on an empty string or a delimiter drawn from
// the base64 alphabet; that is a configuration bug, not runtime input.
func NewBuilder(delimNA string) *Builder {
	if delimNA == "" {
		panic("lookupkey: empty delimiter")
	}
	if isBase64Byte(delimNA[0]) {
		panic(fmt.Sprintf("lookupkey: delimiter %q is in the base64 alphabet", delimNA[0]))
	}
	b := &Builder{delim: delimNA[0]}
	if len(delimNA) > 1 {
		b.placeholder = delimNA[1]
	}
	return b
}

// Prefix appends the selected fields of info to buf and returns the
// result. The caller is free to append additional application-specific
// context before using the key.
//
// Zero flags or unknown flag bits are programmer errors and panic.
func (b *Builder) Prefix(buf *strings.Builder, flags Field, info *ClientInfo) string {
	if flags == 0 {
		panic("lookupkey: zero flags")
	}
	if flags&^fieldAll != 0 {
		panic(fmt.Sprintf("lookupkey: unknown key flags 0x%x", int(flags&^fieldAll)))
	}

	if flags&FieldService != 0 {
		b.appendString(buf, info.Service)
	}
	if flags&FieldSender != 0 {
		if info.SenderDependent {
			b.appendString(buf, info.Sender)
		} else {
			b.appendNA(buf)
		}
	}

	if flags&FieldRequestNexthop != 0 {
		b.appendString(buf, info.RequestNexthop)
	}
	if flags&FieldNexthop != 0 {
		b.appendString(buf, info.Nexthop)
	}

	if flags&FieldHostname != 0 {
		b.appendString(buf, info.Hostname)
	}
	if flags&FieldAddr != 0 {
		b.appendString(buf, info.Addr)
	}
	if flags&FieldPort != 0 {
		b.appendUint(buf, uint(info.Port))
	}

	if flags&FieldNoSASL != 0 {
		b.appendNA(buf) // username n/a
		b.appendNA(buf) // password n/a
	}
	if flags&FieldSASL != 0 {
		if info.SASLUsername == "" {
			b.appendNA(buf) // username n/a
			b.appendNA(buf) // password n/a
		} else {
			b.appendBase64(buf, info.SASLUsername)
			b.appendBase64(buf, info.SASLPassword)
		}
	}

	return buf.String()
}

// appendNA appends the placeholder field.
func (b *Builder) appendNA(buf *strings.Builder) {
	if b.placeholder != 0 {
		buf.WriteByte(b.placeholder)
	}
	buf.WriteByte(b.delim)
}

// appendBase64 appends a field that is always base64-encoded, for content
// that needs obfuscation such as credentials.
func (b *Builder) appendBase64(buf *strings.Builder, s string) {
	if s == "" {
		b.appendNA(buf)
		return
	}
	buf.WriteString(base64.StdEncoding.EncodeToString([]byte(s)))
	buf.WriteByte(b.delim)
}

// appendString appends a string field, base64-encoding it only when it
// contains the delimiter or placeholder character.
func (b *Builder) appendString(buf *strings.Builder, s string) {
	switch {
	case s == "":
		b.appendNA(buf)
	case strings.IndexByte(s, b.delim) >= 0 ||
		(b.placeholder != 0 && strings.IndexByte(s, b.placeholder) >= 0):
		b.appendBase64(buf, s)
	default:
		buf.WriteString(s)
		buf.WriteByte(b.delim)
	}
}

// appendUint appends an unsigned decimal field.
func (b *Builder) appendUint(buf *strings.Builder, n uint) {
	buf.WriteString(strconv.FormatUint(uint64(n), 10))
	buf.WriteByte(b.delim)
}

func isBase64Byte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+' || c == '/' || c == '=':
		return true
	}
	return false
}
