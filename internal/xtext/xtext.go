// Package xtext implements the xtext encoding of RFC 3461, used to quote
// attribute values in SMTP command parameters such as XCLIENT and ORCPT.
package xtext

import (
	"fmt"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// Quote encodes s as xtext. Characters outside the printable ASCII range,
// '+', '=' and any character in special are replaced by +HH with
// uppercase hex digits.
func Quote(s string, special string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '!' || c > '~' || c == '+' || c == '=' || strings.IndexByte(special, c) >= 0 {
			b.WriteByte('+')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Unquote decodes xtext. A '+' not followed by two hex digits is
// malformed input.
func Unquote(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '+' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("xtext: truncated escape at offset %d", i)
		}
		hi := hexVal(s[i+1])
		lo := hexVal(s[i+2])
		if hi < 0 || lo < 0 {
			return "", fmt.Errorf("xtext: bad escape %q at offset %d", s[i:i+3], i)
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), nil
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}
