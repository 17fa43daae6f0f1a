package attr

import "fmt"

type requestKind int

const (
	reqInvalid requestKind = iota
	reqUint32
	reqUint64
	reqString
	reqMapping
)

// Request is one entry in a scan descriptor: a named, typed attribute the
// caller wants recovered, or a catch-all mapping sink. Construct Requests
// with WantUint32, WantUint64, WantString or WantMapping; the zero value
// causes Scan to panic.
type Request struct {
	kind    requestKind
	name    string
	u32     *uint32
	u64     *uint64
	str     *string
	mapping map[string]string
}

// WantUint32 requests an unsigned 32-bit numeric attribute.
func WantUint32(name string, target *uint32) Request {
	return Request{kind: reqUint32, name: name, u32: target}
}

// WantUint64 requests an unsigned 64-bit numeric attribute.
func WantUint64(name string, target *uint64) Request {
	return Request{kind: reqUint64, name: name, u64: target}
}

// WantString requests an opaque string attribute. The value may contain
// arbitrary bytes, including NUL and the protocol's framing characters.
func WantString(name string, target *string) Request {
	return Request{kind: reqString, name: name, str: target}
}

// WantMapping requests catch-all capture: every remaining attribute up to
// the list terminator is stored in sink as a string, keyed by the
// attribute name from the input. Only the first instance of each name is
// stored; existing entries are never replaced.
//
// A WantMapping request must be the last request passed to Scan.
//
// N.B. The sink receives attribute names from a possibly untrusted peer.
// This is unsafe unless the sink is queried only with known-good names.
func WantMapping(sink map[string]string) Request {
	return Request{kind: reqMapping, mapping: sink}
}

// wantedLabel names the request in diagnostics.
func (r Request) wantedLabel() string {
	switch r.kind {
	case reqMapping:
		return "(any attribute name or list terminator)"
	case reqInvalid:
		return "(list terminator)"
	default:
		return r.name
	}
}

// checkDescriptor enforces descriptor well-formedness. Violations are
// caller bugs, not wire errors, and abort the process.
func checkDescriptor(requests []Request) {
	for i, r := range requests {
		switch r.kind {
		case reqUint32, reqUint64, reqString:
			// ok
		case reqMapping:
			if i != len(requests)-1 {
				panic("attr: mapping request not followed by end of descriptor")
			}
			if r.mapping == nil {
				panic("attr: mapping request with nil sink")
			}
		default:
			panic(fmt.Sprintf("attr: unknown request type code: %d", r.kind))
		}
	}
}
