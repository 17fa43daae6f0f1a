// Package proto defines the attribute names and status codes shared by
// the lookup daemon and its clients. Both sides must agree on these; the
// wire protocol itself lives in internal/attr.
package proto

// Attribute names in lookup requests and replies.
const (
	AttrRequest = "request"
	AttrTable   = "table"
	AttrFlags   = "flags"
	AttrKey     = "key"
	AttrStatus  = "status"
	AttrValue   = "value"
)

// Request types.
const (
	RequestLookup = "lookup"
)

// Reply status codes. The numeric values are wire protocol; changing one
// breaks peers that were built against the old value.
const (
	// StatOK means the requested operation succeeded and a value is
	// present.
	StatOK uint32 = 0

	// StatNoKey means the table has no entry for the requested key.
	StatNoKey uint32 = 1

	// StatRetry means the lookup failed in a way that may succeed later,
	// such as an unreachable backend.
	StatRetry uint32 = 2

	// StatBad means the request itself was malformed.
	StatBad uint32 = 3

	// StatDeny means the requested table is not available to this
	// client.
	StatDeny uint32 = 4
)

// StatText returns a human-readable label for a status code.
func StatText(stat uint32) string {
	switch stat {
	case StatOK:
		return "ok"
	case StatNoKey:
		return "no_key"
	case StatRetry:
		return "retry"
	case StatBad:
		return "bad_request"
	case StatDeny:
		return "denied"
	default:
		return "unknown"
	}
}
