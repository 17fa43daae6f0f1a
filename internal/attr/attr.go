// Package attr implements the line-oriented, type-tagged attribute-list
// protocol that cooperating mail-system daemons use to exchange structured
// requests and replies over a duplex byte stream.
//
// The wire format is:
//
//	attr-list   :== simple-attr* newline
//	simple-attr :== base64(name) ":" base64(value) newline
//
// All attribute names and values are base64-encoded with the standard
// alphabet and no line wrapping, so arbitrary byte strings (including the
// framing characters themselves) transport safely. A zero-length name
// followed directly by a newline terminates the list.
//
// Senders drive Print with an ordered list of typed attributes. Receivers
// drive Scan with an ordered request descriptor; the sender's attribute
// order does not have to match, and unrequested attributes are skipped or
// rejected under control of the scan flags.
package attr

import "errors"

// Flags control how Scan treats missing, extra and partially consumed
// attribute lists.
type Flags int

const (
	// None requests default processing: extra attributes are skipped,
	// missing attributes end the scan silently.
	None Flags = 0

	// ReportMissing logs a warning when the input list terminates before
	// all requested attributes are recovered. It is always an error when
	// the input ends without the list terminator.
	ReportMissing Flags = 1 << iota

	// RejectExtra logs a warning and stops attribute recovery when the
	// input contains an attribute that was not requested, including a
	// second instance of a requested attribute.
	RejectExtra

	// LeaveMore leaves the input positioned for further Scan calls on
	// the same attribute list instead of skipping forward past the list
	// terminator.
	LeaveMore

	// Strict combines ReportMissing and RejectExtra.
	Strict = ReportMissing | RejectExtra

	flagAll = ReportMissing | RejectExtra | LeaveMore
)

// Protocol errors reported by Scan. These indicate a malformed peer; the
// stream is desynchronized and the caller should close the connection.
var (
	// ErrBadBase64 reports a name or value field that is not valid base64.
	ErrBadBase64 = errors.New("malformed base64 data")

	// ErrBadNumber reports a numeric attribute whose text is not a
	// complete unsigned decimal literal.
	ErrBadNumber = errors.New("malformed numeric data")

	// ErrMultiValue reports an attribute line carrying more than one
	// value field.
	ErrMultiValue = errors.New("multiple values for attribute")

	// ErrMissingValue reports a typed attribute with no value field.
	ErrMissingValue = errors.New("missing value for attribute")

	// ErrFieldTooLong reports a field whose base64 span exceeds twice
	// the configured line-length limit.
	ErrFieldTooLong = errors.New("field length limit exceeded")
)
