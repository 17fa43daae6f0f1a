package attr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
)

// b64 encodes a field the way a peer would put it on the wire.
func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// line builds one simple-attr wire line.
func line(name, value string) string {
	return b64(name) + ":" + b64(value) + "\n"
}

// newTestStream wraps wire input in a Stream for scanning.
func newTestStream(input string) *Stream {
	return NewStream(&readWriter{r: strings.NewReader(input)}, StreamConfig{Name: "test"})
}

// readWriter joins a reader with a write buffer so tests can inspect
// output and feed input independently.
type readWriter struct {
	r   io.Reader
	out bytes.Buffer
}

func (rw *readWriter) Read(p []byte) (int, error)  { return rw.r.Read(p) }
func (rw *readWriter) Write(p []byte) (int, error) { return rw.out.Write(p) }

func TestScan_PositionalMatch(t *testing.T) {
	input := line("count", "42") + line("queue_id", "3F6E21A") + "\n"
	s := newTestStream(input)

	var count uint32
	var queueID string
	n, err := Scan(s, Strict,
		WantUint32("count", &count),
		WantString("queue_id", &queueID),
	)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Scan() = %d, want 2", n)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
	if queueID != "3F6E21A" {
		t.Errorf("queue_id = %q, want %q", queueID, "3F6E21A")
	}
}

func TestScan_SenderOrderDiffers(t *testing.T) {
	// The sender may order attributes differently than the descriptor.
	// With default flags the scanner skips forward to each wanted name.
	input := line("b", "2") + line("a", "1") + "\n"
	s := newTestStream(input)

	var b uint32
	n, err := Scan(s, None, WantUint32("b", &b))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 1 || b != 2 {
		t.Errorf("Scan() = %d, b = %d, want 1, 2", n, b)
	}
}

func TestScan_ExtraAttributeSkipped(t *testing.T) {
	input := line("a", "1") + line("extra", "99") + line("b", "2") + "\n"
	s := newTestStream(input)

	var a, b uint32
	n, err := Scan(s, None, WantUint32("a", &a), WantUint32("b", &b))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Scan() = %d, want 2", n)
	}
	if a != 1 || b != 2 {
		t.Errorf("a = %d, b = %d, want 1, 2", a, b)
	}
}

func TestScan_ExtraAttributeRejected(t *testing.T) {
	input := line("a", "1") + line("extra", "99") + line("b", "2") + "\n"
	s := newTestStream(input)

	var a, b uint32
	n, err := Scan(s, RejectExtra, WantUint32("a", &a), WantUint32("b", &b))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Scan() = %d, want 1 (recovery stops at the spurious attribute)", n)
	}
	if a != 1 {
		t.Errorf("a = %d, want 1", a)
	}
}

func TestScan_MissingAtEnd(t *testing.T) {
	// A list that ends before all requested attributes is a soft
	// condition: the count tells the caller what arrived, with or
	// without the diagnostic flag.
	for _, flags := range []Flags{None, ReportMissing} {
		s := newTestStream(line("a", "1") + "\n")

		var a, b uint32
		n, err := Scan(s, flags, WantUint32("a", &a), WantUint32("b", &b))
		if err != nil {
			t.Fatalf("flags %v: Scan() error = %v", flags, err)
		}
		if n != 1 {
			t.Errorf("flags %v: Scan() = %d, want 1", flags, n)
		}
	}
}

func TestScan_MappingCapture(t *testing.T) {
	input := line("x", "1") + line("y", "2") + line("x", "3") + "\n"
	s := newTestStream(input)

	sink := make(map[string]string)
	n, err := Scan(s, None, WantMapping(sink))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Scan() = %d, want 2 (duplicate is invisible)", n)
	}
	if sink["x"] != "1" {
		t.Errorf("sink[x] = %q, want %q (first occurrence wins)", sink["x"], "1")
	}
	if sink["y"] != "2" {
		t.Errorf("sink[y] = %q, want %q", sink["y"], "2")
	}
}

func TestScan_MappingDuplicateRejected(t *testing.T) {
	input := line("x", "1") + line("x", "3") + line("y", "2") + "\n"
	s := newTestStream(input)

	sink := make(map[string]string)
	n, err := Scan(s, RejectExtra, WantMapping(sink))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Scan() = %d, want 1 (duplicate stops recovery)", n)
	}
	if sink["x"] != "1" {
		t.Errorf("sink[x] = %q, want %q", sink["x"], "1")
	}
	if _, ok := sink["y"]; ok {
		t.Error("sink[y] present, want recovery stopped before y")
	}
}

func TestScan_MappingAfterPositional(t *testing.T) {
	input := line("status", "0") + line("reason", "ok") + line("detail", "none") + "\n"
	s := newTestStream(input)

	var status uint32
	sink := make(map[string]string)
	n, err := Scan(s, Strict, WantUint32("status", &status), WantMapping(sink))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Scan() = %d, want 3", n)
	}
	if sink["reason"] != "ok" || sink["detail"] != "none" {
		t.Errorf("sink = %v, want reason/detail captured", sink)
	}
}

func TestScan_LeaveMoreChaining(t *testing.T) {
	input := line("a", "1") + line("b", "2") + line("c", "3") + "\n"
	s := newTestStream(input)

	var a uint32
	n, err := Scan(s, LeaveMore, WantUint32("a", &a))
	if err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}
	if n != 1 || a != 1 {
		t.Fatalf("first Scan() = %d, a = %d, want 1, 1", n, a)
	}

	// The stream is positioned just after "a"; a second scan over the
	// same list picks up where the first left off.
	var b, c uint32
	n, err = Scan(s, None, WantUint32("b", &b), WantUint32("c", &c))
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}
	if n != 2 || b != 2 || c != 3 {
		t.Errorf("second Scan() = %d, b = %d, c = %d, want 2, 2, 3", n, b, c)
	}
}

func TestScan_LeaveMoreEquivalence(t *testing.T) {
	input := line("a", "1") + line("b", "2") + "\n"

	var a1, b1 uint32
	n, err := Scan(newTestStream(input), None,
		WantUint32("a", &a1), WantUint32("b", &b1))
	if err != nil || n != 2 {
		t.Fatalf("combined Scan() = %d, %v", n, err)
	}

	s := newTestStream(input)
	var a2, b2 uint32
	if _, err := Scan(s, LeaveMore, WantUint32("a", &a2)); err != nil {
		t.Fatalf("chained Scan() error = %v", err)
	}
	if _, err := Scan(s, None, WantUint32("b", &b2)); err != nil {
		t.Fatalf("chained Scan() error = %v", err)
	}

	if a1 != a2 || b1 != b2 {
		t.Errorf("chained bindings (%d, %d) differ from combined (%d, %d)",
			a2, b2, a1, b1)
	}
}

func TestScan_TrailingAttributesDiscarded(t *testing.T) {
	// Without LeaveMore the scanner skips past the terminator, leaving
	// the stream ready for the next attribute list.
	input := line("a", "1") + line("junk", "x") + "\n" + line("next", "2") + "\n"
	s := newTestStream(input)

	var a uint32
	if n, err := Scan(s, None, WantUint32("a", &a)); err != nil || n != 1 {
		t.Fatalf("first Scan() = %d, %v", n, err)
	}

	var next uint32
	if n, err := Scan(s, None, WantUint32("next", &next)); err != nil || n != 1 {
		t.Fatalf("second Scan() = %d, %v", n, err)
	}
	if next != 2 {
		t.Errorf("next = %d, want 2", next)
	}
}

func TestScan_MalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    error
		request Request
	}{
		{
			name:    "numeric with trailing junk",
			input:   line("n", "12x") + "\n",
			want:    ErrBadNumber,
			request: WantUint32("n", new(uint32)),
		},
		{
			name:    "numeric with sign",
			input:   line("n", "-1") + "\n",
			want:    ErrBadNumber,
			request: WantUint32("n", new(uint32)),
		},
		{
			name:    "numeric with leading space",
			input:   line("n", " 1") + "\n",
			want:    ErrBadNumber,
			request: WantUint32("n", new(uint32)),
		},
		{
			name:    "numeric empty",
			input:   line("n", "") + "\n",
			want:    ErrBadNumber,
			request: WantUint32("n", new(uint32)),
		},
		{
			name:    "uint32 overflow",
			input:   line("n", "4294967296") + "\n",
			want:    ErrBadNumber,
			request: WantUint32("n", new(uint32)),
		},
		{
			name:    "uint64 overflow",
			input:   line("n", "18446744073709551616") + "\n",
			want:    ErrBadNumber,
			request: WantUint64("n", new(uint64)),
		},
		{
			name:    "bad base64 in name",
			input:   "!!!:" + b64("1") + "\n\n",
			want:    ErrBadBase64,
			request: WantUint32("n", new(uint32)),
		},
		{
			name:    "bad base64 in value",
			input:   b64("s") + ":@@@\n\n",
			want:    ErrBadBase64,
			request: WantString("s", new(string)),
		},
		{
			name:    "multiple values on one line",
			input:   b64("s") + ":" + b64("1") + ":" + b64("2") + "\n\n",
			want:    ErrMultiValue,
			request: WantString("s", new(string)),
		},
		{
			name:    "missing value for typed attribute",
			input:   b64("n") + "\n\n",
			want:    ErrMissingValue,
			request: WantUint32("n", new(uint32)),
		},
		{
			name:    "truncated after value",
			input:   line("a", "1"),
			want:    io.ErrUnexpectedEOF,
			request: WantUint32("a", new(uint32)),
		},
		{
			name:    "truncated mid value",
			input:   b64("a") + ":" + b64("1"),
			want:    io.ErrUnexpectedEOF,
			request: WantUint32("a", new(uint32)),
		},
		{
			name:    "empty input",
			input:   "",
			want:    io.ErrUnexpectedEOF,
			request: WantUint32("a", new(uint32)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStream(tt.input)
			n, err := Scan(s, None, tt.request)
			if n != -1 {
				t.Errorf("Scan() = %d, want -1", n)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Scan() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScan_TerminatorAlwaysRequired(t *testing.T) {
	// Even when every wanted attribute was recovered, a stream that ends
	// without the list terminator is a hard failure.
	s := newTestStream(line("a", "1"))

	var a uint32
	n, err := Scan(s, None, WantUint32("a", &a))
	if n != -1 {
		t.Errorf("Scan() = %d, want -1", n)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Scan() error = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestScan_FieldLengthBound(t *testing.T) {
	// A peer that never sends a delimiter must not grow memory without
	// bound; the accumulated span is capped at twice the line limit.
	s := NewStream(&readWriter{r: strings.NewReader(strings.Repeat("A", 10000))},
		StreamConfig{Name: "test", LineLimit: 128})

	var a uint32
	n, err := Scan(s, None, WantUint32("a", &a))
	if n != -1 {
		t.Errorf("Scan() = %d, want -1", n)
	}
	if !errors.Is(err, ErrFieldTooLong) {
		t.Errorf("Scan() error = %v, want %v", err, ErrFieldTooLong)
	}
}

func TestScan_StickyFault(t *testing.T) {
	s := newTestStream("")

	if n, _ := Scan(s, None, WantUint32("a", new(uint32))); n != -1 {
		t.Fatalf("Scan() = %d, want -1", n)
	}
	if s.Fault() == nil {
		t.Fatal("Fault() = nil after end-of-input, want latched error")
	}

	// Later calls fail without touching the stream.
	n, err := Scan(s, None, WantUint32("a", new(uint32)))
	if n != -1 || err == nil {
		t.Errorf("Scan() on faulted stream = %d, %v, want -1 and error", n, err)
	}
	if err := Print(s, Uint32("a", 1)); err == nil {
		t.Error("Print() on faulted stream = nil, want error")
	}
}

func TestScan_PanicsOnDescriptorBugs(t *testing.T) {
	tests := []struct {
		name string
		call func()
	}{
		{
			name: "unknown flag bits",
			call: func() {
				Scan(newTestStream("\n"), Flags(0x1000))
			},
		},
		{
			name: "zero value request",
			call: func() {
				Scan(newTestStream("\n"), None, Request{})
			},
		},
		{
			name: "mapping not last",
			call: func() {
				Scan(newTestStream("\n"), None,
					WantMapping(map[string]string{}),
					WantString("s", new(string)))
			},
		},
		{
			name: "nil mapping sink",
			call: func() {
				Scan(newTestStream("\n"), None, WantMapping(nil))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("no panic, want panic")
				}
			}()
			tt.call()
		})
	}
}

func TestScan_BinaryNames(t *testing.T) {
	// Names and values may contain the framing characters themselves.
	name := "a:b\nc"
	value := "x\x00y:\n"
	s := newTestStream(line(name, value) + "\n")

	var got string
	n, err := Scan(s, Strict, WantString(name, &got))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Scan() = %d, want 1", n)
	}
	if got != value {
		t.Errorf("value = %q, want %q", got, value)
	}
}
