package attr

import (
	"fmt"
	"strconv"
)

// Scan recovers attribute values from the stream, which carries an
// attribute list possibly generated by Print. The requests describe, in
// order, the attributes the caller wants; the input may carry extra,
// reordered or repeated attributes, which are skipped or rejected under
// control of flags.
//
// Scan returns the number of attributes successfully bound (a mapping
// sink counts as the number of entries stored). On malformed input or a
// stream fault it returns -1 and a non-nil error; any bindings already
// written before the failure are undefined.
//
// A descriptor bug (unknown flag bits, a zero-value Request, a mapping
// request that is not last) is a programmer error and panics.
func Scan(s *Stream, flags Flags, requests ...Request) (int, error) {
	if flags&^flagAll != 0 {
		panic(fmt.Sprintf("attr: bad flags: 0x%x", int(flags)))
	}
	checkDescriptor(requests)

	if err := s.Fault(); err != nil {
		return -1, err
	}

	conversions := 0
	next := 0
	inMapping := false

	// The zero Request marks the end of the descriptor.
	var wanted Request

	for {

		// Determine the next attribute on the caller's wish list. Once
		// a mapping request is reached there is no next entry: the sink
		// consumes everything up to the list terminator.
		if !inMapping {
			if next < len(requests) {
				wanted = requests[next]
				next++
				if wanted.kind == reqMapping {
					inMapping = true
				}
			} else {
				wanted = Request{}
				if flags&LeaveMore != 0 {
					return conversions, nil
				}
			}
		}

		// Locate the next attribute of interest in the input.
		var attrName string
		var delim byte
		for {
			name, d, err := s.readField("input attribute name")
			if err != nil {
				return -1, err
			}
			s.logger.Debug("scan attribute",
				"stream", s.name,
				"wanted", wanted.wantedLabel())

			// A zero-length name ends the list. Ending early is fine
			// when the caller is prepared for missing attributes; a
			// missing list terminator never is.
			if d == '\n' && len(name) == 0 {
				if wanted.kind == reqInvalid || wanted.kind == reqMapping {
					return conversions, nil
				}
				if flags&ReportMissing != 0 {
					s.logger.Warn("missing attribute in input",
						"stream", s.name,
						"attribute", wanted.name)
				}
				return conversions, nil
			}

			if wanted.kind == reqMapping ||
				(wanted.kind != reqInvalid && wanted.name == string(name)) {
				// Copy out of scratch storage before the value field
				// overwrites it.
				attrName = string(name)
				delim = d
				break
			}

			if flags&RejectExtra != 0 {
				s.logger.Warn("spurious attribute in input",
					"stream", s.name,
					"attribute", printable(name))
				return conversions, nil
			}

			// The caller did not ask for this attribute.
			if d != '\n' {
				if err := s.skipLine(); err != nil {
					return -1, err
				}
			}
		}

		// Do the requested conversion. A non-mapping attribute must
		// carry exactly one value: no value at all, or a second field
		// on the same line, is malformed input.
		if delim != ':' {
			return -1, fmt.Errorf("missing value for attribute %s from %s: %w",
				attrName, s.name, ErrMissingValue)
		}

		switch wanted.kind {
		case reqUint32:
			v, d, err := s.readNumber(32)
			if err != nil {
				return -1, err
			}
			if d != '\n' {
				return -1, multiValueError(s, attrName)
			}
			*wanted.u32 = uint32(v)

		case reqUint64:
			v, d, err := s.readNumber(64)
			if err != nil {
				return -1, err
			}
			if d != '\n' {
				return -1, multiValueError(s, attrName)
			}
			*wanted.u64 = v

		case reqString:
			value, d, err := s.readField("input attribute value")
			if err != nil {
				return -1, err
			}
			if d != '\n' {
				return -1, multiValueError(s, attrName)
			}
			*wanted.str = string(value)

		case reqMapping:
			value, d, err := s.readField("input attribute value")
			if err != nil {
				return -1, err
			}
			if d != '\n' {
				return -1, multiValueError(s, attrName)
			}
			if _, ok := wanted.mapping[attrName]; ok {
				if flags&RejectExtra != 0 {
					s.logger.Warn("duplicate attribute in input",
						"stream", s.name,
						"attribute", attrName)
					return conversions, nil
				}
				// First occurrence wins; the duplicate is invisible to
				// the caller and does not count as a conversion.
				continue
			}
			wanted.mapping[attrName] = string(value)

		default:
			panic(fmt.Sprintf("attr: unknown request type code: %d", wanted.kind))
		}

		conversions++
	}
}

// readNumber reads a value field and parses it as a complete unsigned
// decimal literal. Sign characters, whitespace, trailing junk and
// overflow are all malformed input, never a best-effort parse.
func (s *Stream) readNumber(bits int) (uint64, byte, error) {
	value, delim, err := s.readField("input attribute value")
	if err != nil {
		return 0, 0, err
	}
	n, perr := strconv.ParseUint(string(value), 10, bits)
	if perr != nil {
		return 0, 0, fmt.Errorf("malformed numerical data from %s: %.100s: %w",
			s.name, printable(value), ErrBadNumber)
	}
	return n, delim, nil
}

func multiValueError(s *Stream, name string) error {
	return fmt.Errorf("multiple values for attribute %s from %s: %w",
		name, s.name, ErrMultiValue)
}

// printable censors control characters for diagnostics.
func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c == 0x7f {
			c = '?'
		}
		out[i] = c
	}
	return string(out)
}
