package attr

import (
	"fmt"
	"sort"
	"strconv"
)

type attrKind int

const (
	attrUint32 attrKind = iota + 1
	attrUint64
	attrString
	attrMapping
)

// Attribute is one named, typed value to be sent by Print. Construct
// Attributes with Uint32, Uint64, String or Mapping.
type Attribute struct {
	kind    attrKind
	name    string
	num     uint64
	str     string
	mapping map[string]string
}

// Uint32 builds an unsigned 32-bit numeric attribute.
func Uint32(name string, value uint32) Attribute {
	return Attribute{kind: attrUint32, name: name, num: uint64(value)}
}

// Uint64 builds an unsigned 64-bit numeric attribute.
func Uint64(name string, value uint64) Attribute {
	return Attribute{kind: attrUint64, name: name, num: value}
}

// String builds an opaque string attribute. The value may contain
// arbitrary bytes.
func String(name, value string) Attribute {
	return Attribute{kind: attrString, name: name, str: value}
}

// Mapping builds one attribute per entry of m, each sent as a string
// attribute. Entries are sent in sorted key order so output is
// deterministic.
func Mapping(m map[string]string) Attribute {
	return Attribute{kind: attrMapping, mapping: m}
}

// Print sends the given attributes as one attribute list, terminator
// included, and flushes the stream. Any byte sequence is representable,
// so Print fails only on a stream fault, which is latched and returned.
//
// An Attribute that was not built by one of the constructors is a
// programmer error and panics.
func Print(s *Stream, attrs ...Attribute) error {
	if err := s.Fault(); err != nil {
		return err
	}

	var numbuf [20]byte
	for _, a := range attrs {
		switch a.kind {
		case attrUint32, attrUint64:
			if err := s.writeField([]byte(a.name), ':'); err != nil {
				return err
			}
			if err := s.writeField(strconv.AppendUint(numbuf[:0], a.num, 10), '\n'); err != nil {
				return err
			}

		case attrString:
			if err := s.writeField([]byte(a.name), ':'); err != nil {
				return err
			}
			if err := s.writeField([]byte(a.str), '\n'); err != nil {
				return err
			}

		case attrMapping:
			keys := make([]string, 0, len(a.mapping))
			for k := range a.mapping {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if err := s.writeField([]byte(k), ':'); err != nil {
					return err
				}
				if err := s.writeField([]byte(a.mapping[k]), '\n'); err != nil {
					return err
				}
			}

		default:
			panic(fmt.Sprintf("attr: unknown attribute type code: %d", a.kind))
		}
	}

	// List terminator: a zero-length name, no value, no colon.
	if err := s.w.WriteByte('\n'); err != nil {
		return s.setFault(fmt.Errorf("write to %s: %w", s.name, err))
	}
	return s.flush()
}
