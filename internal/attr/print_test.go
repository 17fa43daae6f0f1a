package attr

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPrint_WireFormat(t *testing.T) {
	rw := &readWriter{r: strings.NewReader("")}
	s := NewStream(rw, StreamConfig{Name: "test"})

	err := Print(s,
		String("queue_id", "3F6E21A"),
		Uint32("status", 0),
	)
	if err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	want := line("queue_id", "3F6E21A") + line("status", "0") + "\n"
	if got := rw.out.String(); got != want {
		t.Errorf("Print() wrote %q, want %q", got, want)
	}
}

func TestPrint_EmptyList(t *testing.T) {
	rw := &readWriter{r: strings.NewReader("")}
	s := NewStream(rw, StreamConfig{Name: "test"})

	if err := Print(s); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if got := rw.out.String(); got != "\n" {
		t.Errorf("Print() wrote %q, want bare terminator", got)
	}
}

func TestPrint_MappingSorted(t *testing.T) {
	rw := &readWriter{r: strings.NewReader("")}
	s := NewStream(rw, StreamConfig{Name: "test"})

	err := Print(s, Mapping(map[string]string{"b": "2", "a": "1"}))
	if err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	want := line("a", "1") + line("b", "2") + "\n"
	if got := rw.out.String(); got != want {
		t.Errorf("Print() wrote %q, want %q", got, want)
	}
}

func TestPrint_WriteError(t *testing.T) {
	s := NewStream(&failWriter{}, StreamConfig{Name: "test"})

	if err := Print(s, Uint32("a", 1)); err == nil {
		t.Fatal("Print() = nil, want error")
	}
	if s.Fault() == nil {
		t.Error("Fault() = nil, want latched write error")
	}
}

func TestPrint_PanicsOnZeroAttribute(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("no panic, want panic")
		}
	}()
	rw := &readWriter{r: strings.NewReader("")}
	Print(NewStream(rw, StreamConfig{}), Attribute{})
}

type failWriter struct{}

func (failWriter) Read(p []byte) (int, error)  { return 0, errors.New("closed") }
func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		attrs []Attribute
	}{
		{
			name: "typical request",
			attrs: []Attribute{
				String("request", "lookup"),
				String("table", "verify"),
				String("key", "user@example.com"),
			},
		},
		{
			name: "all value kinds",
			attrs: []Attribute{
				Uint32("status", 4294967295),
				Uint64("offset", 18446744073709551615),
				String("reason", "over quota"),
			},
		},
		{
			name: "delimiters and control bytes in names and values",
			attrs: []Attribute{
				String("colon:name", "value:with:colons"),
				String("newline\nname", "line1\nline2"),
				String("nul\x00byte", "\x00\x01\x02\xff"),
				String("", "empty name"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Print(NewStream(&buf, StreamConfig{Name: "out"}), tt.attrs...); err != nil {
				t.Fatalf("Print() error = %v", err)
			}

			s := NewStream(&buf, StreamConfig{Name: "in"})
			requests := make([]Request, len(tt.attrs))
			u32s := make([]uint32, len(tt.attrs))
			u64s := make([]uint64, len(tt.attrs))
			strs := make([]string, len(tt.attrs))
			for i, a := range tt.attrs {
				switch a.kind {
				case attrUint32:
					requests[i] = WantUint32(a.name, &u32s[i])
				case attrUint64:
					requests[i] = WantUint64(a.name, &u64s[i])
				case attrString:
					requests[i] = WantString(a.name, &strs[i])
				}
			}

			n, err := Scan(s, Strict, requests...)
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if n != len(tt.attrs) {
				t.Fatalf("Scan() = %d, want %d", n, len(tt.attrs))
			}
			for i, a := range tt.attrs {
				switch a.kind {
				case attrUint32:
					if uint64(u32s[i]) != a.num {
						t.Errorf("attribute %q = %d, want %d", a.name, u32s[i], a.num)
					}
				case attrUint64:
					if u64s[i] != a.num {
						t.Errorf("attribute %q = %d, want %d", a.name, u64s[i], a.num)
					}
				case attrString:
					if strs[i] != a.str {
						t.Errorf("attribute %q = %q, want %q", a.name, strs[i], a.str)
					}
				}
			}
		})
	}
}

func TestRoundTrip_MappingCapture(t *testing.T) {
	var buf bytes.Buffer
	sent := map[string]string{
		"client_name": "mail.example.com",
		"client_addr": "192.0.2.1",
		"helo_name":   "example.com",
	}
	if err := Print(NewStream(&buf, StreamConfig{Name: "out"}), Mapping(sent)); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	sink := make(map[string]string)
	n, err := Scan(NewStream(&buf, StreamConfig{Name: "in"}), Strict, WantMapping(sink))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != len(sent) {
		t.Errorf("Scan() = %d, want %d", n, len(sent))
	}
	for k, v := range sent {
		if sink[k] != v {
			t.Errorf("sink[%q] = %q, want %q", k, sink[k], v)
		}
	}
}
