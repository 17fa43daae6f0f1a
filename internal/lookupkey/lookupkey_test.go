package lookupkey

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testInfo() *ClientInfo {
	return &ClientInfo{
		Service:        "smtp",
		Sender:         "sender@example.com",
		RequestNexthop: "example.com",
		Nexthop:        "[mail.example.com]:587",
		Hostname:       "mail.example.com",
		Addr:           "192.0.2.1",
		Port:           587,
	}
}

func TestPrefix_FieldSelection(t *testing.T) {
	b := NewBuilder("#")

	tests := []struct {
		name  string
		flags Field
		want  string
	}{
		{"service only", FieldService, "smtp#"},
		{"service and nexthop", FieldService | FieldNexthop, "smtp#[mail.example.com]:587#"},
		{"host context", FieldHostname | FieldAddr | FieldPort, "mail.example.com#192.0.2.1#587#"},
		{
			"order is fixed regardless of flag construction",
			FieldPort | FieldService,
			"smtp#587#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			if got := b.Prefix(&buf, tt.flags, testInfo()); got != tt.want {
				t.Errorf("Prefix() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrefix_Placeholder(t *testing.T) {
	b := NewBuilder("#-")
	info := testInfo()
	info.Hostname = ""

	var buf strings.Builder
	got := b.Prefix(&buf, FieldService|FieldHostname, info)
	if want := "smtp#-#"; got != want {
		t.Errorf("Prefix() = %q, want %q", got, want)
	}
}

func TestPrefix_NoPlaceholderChar(t *testing.T) {
	// A single-byte delimiter string means empty fields stay empty.
	b := NewBuilder("#")
	info := testInfo()
	info.Hostname = ""

	var buf strings.Builder
	got := b.Prefix(&buf, FieldService|FieldHostname, info)
	if want := "smtp##"; got != want {
		t.Errorf("Prefix() = %q, want %q", got, want)
	}
}

func TestPrefix_DelimiterInFieldIsEncoded(t *testing.T) {
	b := NewBuilder("#")
	info := testInfo()
	info.Nexthop = "odd#host"

	var buf strings.Builder
	got := b.Prefix(&buf, FieldNexthop, info)
	want := base64.StdEncoding.EncodeToString([]byte("odd#host")) + "#"
	if got != want {
		t.Errorf("Prefix() = %q, want %q", got, want)
	}
}

func TestPrefix_SenderDependent(t *testing.T) {
	b := NewBuilder("#-")
	info := testInfo()

	var buf strings.Builder
	if got := b.Prefix(&buf, FieldSender, info); got != "-#" {
		t.Errorf("sender-independent Prefix() = %q, want placeholder", got)
	}

	info.SenderDependent = true
	buf.Reset()
	if got := b.Prefix(&buf, FieldSender, info); got != "sender@example.com#" {
		t.Errorf("sender-dependent Prefix() = %q", got)
	}
}

func TestPrefix_SASLCredentials(t *testing.T) {
	b := NewBuilder("#-")
	info := testInfo()

	// Without credentials, FieldSASL and FieldNoSASL both yield two
	// placeholder fields.
	var buf strings.Builder
	if got := b.Prefix(&buf, FieldSASL, info); got != "-#-#" {
		t.Errorf("Prefix(FieldSASL) without creds = %q, want %q", got, "-#-#")
	}
	buf.Reset()
	if got := b.Prefix(&buf, FieldNoSASL, info); got != "-#-#" {
		t.Errorf("Prefix(FieldNoSASL) = %q, want %q", got, "-#-#")
	}

	// Credentials are always obfuscated, never written verbatim.
	info.SASLUsername = "user"
	info.SASLPassword = "secret"
	buf.Reset()
	got := b.Prefix(&buf, FieldSASL, info)
	if strings.Contains(got, "user") || strings.Contains(got, "secret") {
		t.Errorf("Prefix(FieldSASL) = %q leaks credentials", got)
	}
	want := base64.StdEncoding.EncodeToString([]byte("user")) + "#" +
		base64.StdEncoding.EncodeToString([]byte("secret")) + "#"
	if got != want {
		t.Errorf("Prefix(FieldSASL) = %q, want %q", got, want)
	}
}

func TestPrefix_CallerAppends(t *testing.T) {
	b := NewBuilder("#")
	var buf strings.Builder
	b.Prefix(&buf, FieldService, testInfo())
	buf.WriteString("extra-context")

	if got := buf.String(); got != "smtp#extra-context" {
		t.Errorf("appended key = %q", got)
	}
}

func TestPrefix_Panics(t *testing.T) {
	tests := []struct {
		name string
		call func()
	}{
		{"zero flags", func() {
			var buf strings.Builder
			NewBuilder("#").Prefix(&buf, 0, testInfo())
		}},
		{"unknown flags", func() {
			var buf strings.Builder
			NewBuilder("#").Prefix(&buf, Field(1<<30), testInfo())
		}},
		{"empty delimiter", func() { NewBuilder("") }},
		{"base64 delimiter", func() { NewBuilder("A") }},
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
