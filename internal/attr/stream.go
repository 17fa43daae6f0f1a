package attr

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
)

// DefaultLineLimit is the default length limit for one protocol line.
// A base64-encoded field may be at most twice this long.
const DefaultLineLimit = 2048

// Stream wraps an already-open duplex byte stream for attribute-list
// encoding and decoding. The caller owns connection setup, deadlines and
// teardown; Stream owns buffering, per-stream scratch storage and fault
// tracking.
//
// A Stream is not safe for concurrent use. Callers sharing one stream
// across goroutines must serialize access externally.
type Stream struct {
	r      *bufio.Reader
	w      *bufio.Writer
	name   string
	limit  int
	logger *slog.Logger

	// fault latches the first stream-level error. Once set, every later
	// codec call on this stream fails immediately without touching the
	// underlying reader or writer.
	fault error

	// Per-stream scratch buffers, reused across fields to avoid
	// per-field allocation. Never shared between streams.
	raw     []byte
	decoded []byte
}

// StreamConfig holds configuration for a new Stream.
type StreamConfig struct {
	// Name identifies the peer in diagnostics, typically a socket path
	// or remote address. Defaults to "stream".
	Name string

	// LineLimit bounds the length of one protocol line. Fields whose
	// base64 encoding exceeds twice this limit are rejected.
	// Defaults to DefaultLineLimit.
	LineLimit int

	// Logger receives protocol diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewStream creates a Stream over rw.
func NewStream(rw io.ReadWriter, cfg StreamConfig) *Stream {
	name := cfg.Name
	if name == "" {
		name = "stream"
	}
	limit := cfg.LineLimit
	if limit <= 0 {
		limit = DefaultLineLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Stream{
		r:      bufio.NewReader(rw),
		w:      bufio.NewWriter(rw),
		name:   name,
		limit:  limit,
		logger: logger,
	}
}

// Name returns the peer label used in diagnostics.
func (s *Stream) Name() string {
	return s.name
}

// Fault returns the latched stream error, or nil if the stream is usable.
func (s *Stream) Fault() error {
	return s.fault
}

// setFault latches the first stream-level error and returns it.
func (s *Stream) setFault(err error) error {
	if s.fault == nil {
		s.fault = err
	}
	return s.fault
}

// readField reads one base64-encoded field up to a ':' or '\n' delimiter
// and returns the decoded bytes along with the delimiter that ended the
// field. The returned slice aliases per-stream scratch storage and is
// valid until the next readField call.
//
// End-of-input before a delimiter latches a stream fault. An oversized or
// malformed base64 span is a protocol error and leaves the stream
// unlatched but desynchronized.
func (s *Stream) readField(context string) ([]byte, byte, error) {
	limit := s.limit * 2

	s.raw = s.raw[:0]
	var delim byte
	for {
		ch, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, 0, s.setFault(fmt.Errorf(
				"premature end-of-input from %s while reading %s: %w",
				s.name, context, err))
		}
		if ch == ':' || ch == '\n' {
			delim = ch
			break
		}
		s.raw = append(s.raw, ch)
		if len(s.raw) > limit {
			return nil, 0, fmt.Errorf(
				"string length > %d characters from %s while reading %s: %w",
				limit, s.name, context, ErrFieldTooLong)
		}
	}

	if need := base64.StdEncoding.DecodedLen(len(s.raw)); cap(s.decoded) < need {
		s.decoded = make([]byte, need)
	}
	n, err := base64.StdEncoding.Decode(s.decoded[:cap(s.decoded)], s.raw)
	if err != nil {
		return nil, 0, fmt.Errorf("malformed base64 data from %s: %.100s: %w",
			s.name, s.raw, ErrBadBase64)
	}
	decoded := s.decoded[:n]
	s.decoded = decoded
	return decoded, delim, nil
}

// skipLine discards input up to and including the next newline.
func (s *Stream) skipLine() error {
	for {
		ch, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return s.setFault(fmt.Errorf(
				"premature end-of-input from %s while skipping input: %w",
				s.name, err))
		}
		if ch == '\n' {
			return nil
		}
	}
}

// writeField base64-encodes value and appends the given delimiter.
func (s *Stream) writeField(value []byte, delim byte) error {
	if need := base64.StdEncoding.EncodedLen(len(value)); cap(s.raw) < need {
		s.raw = make([]byte, need)
	} else {
		s.raw = s.raw[:need]
	}
	base64.StdEncoding.Encode(s.raw, value)
	if _, err := s.w.Write(s.raw); err != nil {
		return s.setFault(fmt.Errorf("write to %s: %w", s.name, err))
	}
	if err := s.w.WriteByte(delim); err != nil {
		return s.setFault(fmt.Errorf("write to %s: %w", s.name, err))
	}
	return nil
}

// flush drains the write buffer to the underlying stream.
func (s *Stream) flush() error {
	if err := s.w.Flush(); err != nil {
		return s.setFault(fmt.Errorf("flush to %s: %w", s.name, err))
	}
	return nil
}
