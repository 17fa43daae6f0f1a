// Package proxy implements the client side of a before-queue content
// filter: an SMTP session that replays the envelope of an accepted message
// to a downstream filter and streams the content through it. The filter
// must accept everything the upstream server accepted; an unexpected
// reply is passed back to the caller so it can be relayed verbatim.
package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"

	"github.com/infodancer/mtawire/internal/lookupkey"
	"github.com/infodancer/mtawire/internal/metrics"
	"github.com/infodancer/mtawire/internal/table"
	"github.com/infodancer/mtawire/internal/xtext"
)

// ReplyClass states what kind of reply a command expects.
type ReplyClass int

const (
	// WantNone sends the command without waiting for a reply, as after
	// QUIT.
	WantNone ReplyClass = iota

	// WantAny accepts any well-formed reply.
	WantAny

	// WantOK expects a 2xx reply.
	WantOK

	// WantMore expects a 3xx reply, as after DATA.
	WantMore
)

// DefaultLineLimit bounds one reply line and the stored multi-line reply
// text when the configuration does not say otherwise.
const DefaultLineLimit = 2048

// unavailableReply is reported upstream when the filter connection itself
// fails, so the remote client sees a retryable error rather than the
// filter's breakage.
const unavailableReply = "451 Error: queue file write error"

// UnexpectedReplyError reports a filter reply outside the expected class.
// The reply text is complete and printable, suitable for relaying to the
// remote client.
type UnexpectedReplyError struct {
	Command string
	Reply   string
}

func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("proxy rejected %q: %q", e.Command, e.Reply)
}

// Config holds the settings for one proxy session.
type Config struct {
	// Address is the filter's host:port.
	Address string

	// Timeout bounds each I/O operation on the filter connection.
	Timeout time.Duration

	// EhloName is the hostname announced to the filter.
	EhloName string

	// Username and Password enable AUTH PLAIN when the filter offers
	// AUTH.
	Username string
	Password string

	// Credentials optionally supplies per-destination AUTH credentials,
	// stored as "username:password", when Username is empty. Keys are
	// built from the service name and the filter address.
	Credentials table.Table

	// LineLimit bounds one reply line; zero means DefaultLineLimit.
	LineLimit int

	Logger  *slog.Logger
	Metrics metrics.Collector
}

// SessionInfo carries the remote client attributes forwarded to the
// filter with XCLIENT, so the filter logs the real client instead of us.
// Empty fields are forwarded as unavailable.
type SessionInfo struct {
	ClientName string
	ClientAddr string
	HeloName   string
	Protocol   string
}

// Client is an open proxy session. It is not safe for concurrent use.
type Client struct {
	cfg     Config
	conn    net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	logger  *slog.Logger
	metrics metrics.Collector

	hasXclient bool
	hasAuth    bool

	// reply holds the last reply text; err latches the first stream
	// failure so later calls fail without touching the connection.
	reply string
	err   error
}

// Open connects to the filter and replays the session preamble: greeting
// banner, EHLO, client information via XCLIENT when offered, AUTH when
// credentials are configured, and finally the caller's MAIL FROM command.
// A non-nil error means the session is unusable; when the filter itself
// rejected a command the error is an *UnexpectedReplyError carrying the
// reply text to relay.
func Open(ctx context.Context, cfg Config, info *SessionInfo, mailFrom string) (*Client, error) {
	if cfg.LineLimit <= 0 {
		cfg.LineLimit = DefaultLineLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}

	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		collector.ProxySessionFailed("connect")
		logger.Warn("connect to proxy failed",
			slog.String("address", cfg.Address),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("connect to proxy %s: %w", cfg.Address, err)
	}

	c := &Client{
		cfg:     cfg,
		conn:    conn,
		br:      bufio.NewReader(conn),
		bw:      bufio.NewWriter(conn),
		logger:  logger.With(slog.String("proxy", cfg.Address)),
		metrics: collector,
	}

	fail := func(stage string, err error) (*Client, error) {
		c.metrics.ProxySessionFailed(stage)
		_ = c.conn.Close()
		return nil, err
	}

	// The filter must greet us and accept our EHLO; both are session
	// setup, not client traffic, so failures here are ours to report.
	if err := c.Cmd(WantOK, ""); err != nil {
		return fail("banner", err)
	}
	if err := c.Cmd(WantOK, "EHLO %s", cfg.EhloName); err != nil {
		return fail("ehlo", err)
	}
	c.parseFeatures(c.reply)

	if c.hasXclient && info != nil {
		if err := c.sendXclient(info); err != nil {
			return fail("xclient", err)
		}
	}

	if err := c.authenticate(ctx); err != nil {
		return fail("auth", err)
	}

	// Pass through the client's MAIL FROM command. The filter should
	// accept whatever we accepted; if it does not, the reply goes back
	// to the client.
	if err := c.Cmd(WantOK, "%s", mailFrom); err != nil {
		return fail("mail", err)
	}

	c.metrics.ProxySessionOpened()
	return c, nil
}

// parseFeatures scans an EHLO reply for the extensions this client uses.
func (c *Client) parseFeatures(reply string) {
	for _, line := range strings.Split(reply, "\n") {
		if len(line) < 4 || line[3] != ' ' && line[3] != '-' {
			continue
		}
		keyword, _, _ := strings.Cut(line[4:], " ")
		switch strings.ToUpper(keyword) {
		case "XCLIENT":
			c.hasXclient = true
		case "AUTH":
			c.hasAuth = true
		}
	}
}

// sendXclient forwards the remote client's identity. The attributes are
// split over two commands to keep each line short, and values are xtext
// quoted. Any reply is acceptable: a filter that ignores XCLIENT details
// still filters mail.
func (c *Client) sendXclient(info *SessionInfo) error {
	var buf strings.Builder
	buf.WriteString("XCLIENT NAME=")
	writeXclientValue(&buf, info.ClientName)
	buf.WriteString(" ADDR=")
	writeXclientValue(&buf, info.ClientAddr)
	if err := c.Cmd(WantAny, "%s", buf.String()); err != nil {
		return err
	}

	buf.Reset()
	buf.WriteString("XCLIENT HELO=")
	writeXclientValue(&buf, info.HeloName)
	buf.WriteString(" PROTO=")
	writeXclientValue(&buf, info.Protocol)
	return c.Cmd(WantAny, "%s", buf.String())
}

// writeXclientValue appends an xtext-quoted attribute value, or the
// [UNAVAILABLE] marker for an empty one.
func writeXclientValue(buf *strings.Builder, value string) {
	if value == "" {
		buf.WriteString("[UNAVAILABLE]")
		return
	}
	buf.WriteString(xtext.Quote(value, ""))
}

// authenticate runs AUTH PLAIN when the filter offers AUTH and
// credentials are available, from the configuration or from the
// per-destination credential table.
func (c *Client) authenticate(ctx context.Context) error {
	if !c.hasAuth {
		return nil
	}
	username, password := c.cfg.Username, c.cfg.Password
	if username == "" && c.cfg.Credentials != nil {
		var err error
		username, password, err = lookupCredentials(ctx, c.cfg.Credentials, c.cfg.Address)
		if err != nil {
			return err
		}
	}
	if username == "" {
		return nil
	}

	_, resp, err := sasl.NewPlainClient("", username, password).Start()
	if err != nil {
		return fmt.Errorf("starting AUTH PLAIN: %w", err)
	}
	return c.Cmd(WantOK, "AUTH PLAIN %s", base64.StdEncoding.EncodeToString(resp))
}

// lookupCredentials fetches "username:password" for a destination. The
// key carries the service name and the filter address so one table can
// hold credentials for many destinations.
func lookupCredentials(ctx context.Context, tbl table.Table, address string) (string, string, error) {
	var buf strings.Builder
	key := lookupkey.NewBuilder("|").Prefix(&buf,
		lookupkey.FieldService|lookupkey.FieldNexthop,
		&lookupkey.ClientInfo{
			Service: "proxy",
			Nexthop: address,
		})

	value, found, err := tbl.Lookup(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("proxy credential lookup: %w", err)
	}
	if !found {
		return "", "", nil
	}
	username, password, ok := strings.Cut(value, ":")
	if !ok {
		return "", "", fmt.Errorf("proxy credential entry for %s is not username:password", address)
	}
	return username, password, nil
}

// Cmd formats and sends one command, then collects the reply and checks
// it against the expected class. An empty format sends nothing and just
// reads, which collects the greeting banner. After a stream failure all
// calls return the original error without touching the connection.
func (c *Client) Cmd(expect ReplyClass, format string, args ...any) error {
	if c.err != nil {
		return c.err
	}

	var command string
	if format != "" {
		command = fmt.Sprintf(format, args...)
		c.logger.Debug("proxy command", slog.String("command", command))
		c.setDeadline()
		if _, err := c.bw.WriteString(command); err != nil {
			return c.ioError(err)
		}
		if _, err := c.bw.WriteString("\r\n"); err != nil {
			return c.ioError(err)
		}
	} else {
		command = "connection request"
	}

	// No reply wanted after QUIT; push the command out and move on.
	if expect == WantNone {
		if err := c.bw.Flush(); err != nil {
			return c.ioError(err)
		}
		return nil
	}

	if err := c.bw.Flush(); err != nil {
		return c.ioError(err)
	}

	// Collect the complete multi-line reply, censoring non-printable
	// bytes and capping the stored text so a hostile filter cannot buy
	// unbounded memory with continuation lines.
	var reply strings.Builder
	for {
		c.setDeadline()
		line, complete, err := c.readLine()
		if err != nil {
			return c.ioError(err)
		}
		line = printable(line)
		if !complete {
			c.logger.Warn("reply line longer than limit",
				slog.Int("limit", c.cfg.LineLimit),
				slog.String("line", clip(line, 30)),
			)
		}
		c.logger.Debug("proxy reply", slog.String("line", clip(line, 100)))

		if reply.Len() < c.cfg.LineLimit {
			if reply.Len() > 0 {
				reply.WriteByte('\n')
			}
			reply.WriteString(line)
		}

		// Anything except a three-digit code followed by space or end
		// of line keeps the reply going, like the '-' continuation.
		digits := 0
		for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
			digits++
		}
		if digits == 3 {
			if digits < len(line) && line[digits] == '-' {
				continue
			}
			if digits == len(line) || line[digits] == ' ' {
				break
			}
		}
		c.logger.Warn("garbage reply from proxy",
			slog.String("line", clip(line, 100)),
		)
	}
	c.reply = reply.String()

	if expect != WantAny && !replyMatches(expect, c.reply) {
		c.logger.Warn("proxy rejected command",
			slog.String("command", command),
			slog.String("reply", c.reply),
		)
		return &UnexpectedReplyError{Command: command, Reply: c.reply}
	}
	return nil
}

// replyMatches classifies the first digit of the reply against the
// expectation: WantOK is 2xx, WantMore is 3xx.
func replyMatches(expect ReplyClass, reply string) bool {
	switch expect {
	case WantOK:
		return len(reply) > 0 && reply[0] == '2'
	case WantMore:
		return len(reply) > 0 && reply[0] == '3'
	}
	return true
}

// WriteLine sends one message content line with the line terminator.
// Errors are latched; the caller finds out at the next Cmd, mirroring
// how content is streamed without per-line replies.
func (c *Client) WriteLine(line string) error {
	if c.err != nil {
		return c.err
	}
	c.setDeadline()
	if _, err := c.bw.WriteString(line); err != nil {
		return c.ioError(err)
	}
	if _, err := c.bw.WriteString("\r\n"); err != nil {
		return c.ioError(err)
	}
	return nil
}

// WriteRaw sends a partial content record with no line terminator, for
// lines longer than the caller's record size.
func (c *Client) WriteRaw(data string) error {
	if c.err != nil {
		return c.err
	}
	c.setDeadline()
	if _, err := c.bw.WriteString(data); err != nil {
		return c.ioError(err)
	}
	return nil
}

// LastReply returns the text of the last reply collected, printable and
// newline-separated for multi-line replies.
func (c *Client) LastReply() string {
	return c.reply
}

// Close sends QUIT if the session is still healthy, then closes the
// connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if c.err == nil {
		_ = c.Cmd(WantNone, "QUIT")
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// readLine reads one reply line of at most LineLimit bytes. When the
// limit is hit the partial line is returned with complete=false and the
// remainder shows up as the next line.
func (c *Client) readLine() (string, bool, error) {
	buf := make([]byte, 0, 128)
	for len(buf) < c.cfg.LineLimit {
		ch, err := c.br.ReadByte()
		if err != nil {
			return "", false, err
		}
		if ch == '\n' {
			return strings.TrimSuffix(string(buf), "\r"), true, nil
		}
		buf = append(buf, ch)
	}
	return string(buf), false, nil
}

// ioError latches a stream failure and substitutes the retryable reply
// text for whatever the caller might relay.
func (c *Client) ioError(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		c.logger.Warn("timeout talking to proxy")
	} else {
		c.logger.Warn("lost connection with proxy",
			slog.String("error", err.Error()),
		)
	}
	c.err = fmt.Errorf("proxy %s: %w", c.cfg.Address, err)
	c.reply = unavailableReply
	return c.err
}

func (c *Client) setDeadline() {
	if c.cfg.Timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	}
}

// printable replaces control and non-ASCII bytes with '?' so reply text
// is safe to log and relay.
func printable(s string) string {
	clean := []byte(s)
	dirty := false
	for i, ch := range clean {
		if ch < ' ' || ch > '~' {
			clean[i] = '?'
			dirty = true
		}
	}
	if !dirty {
		return s
	}
	return string(clean)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
