// Package lookupd serves lookup-table queries over the attribute-list
// protocol. Each request is one attribute list naming a table and a key;
// each reply is one attribute list carrying a status code and, on success,
// the value found.
package lookupd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/infodancer/mtawire/internal/attr"
	"github.com/infodancer/mtawire/internal/metrics"
	"github.com/infodancer/mtawire/internal/proto"
	"github.com/infodancer/mtawire/internal/server"
	"github.com/infodancer/mtawire/internal/table"
)

// errIncompleteRequest ends a connection whose request list stopped short
// of the full descriptor.
var errIncompleteRequest = errors.New("incomplete request")

// Handler serves lookup requests on accepted connections.
type Handler struct {
	tables  *table.Registry
	metrics metrics.Collector
	logger  *slog.Logger
}

// HandlerConfig holds the dependencies for a Handler.
type HandlerConfig struct {
	Tables  *table.Registry
	Metrics metrics.Collector
	Logger  *slog.Logger
}

// NewHandler creates a Handler over the given table registry.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Handler{
		tables:  cfg.Tables,
		metrics: collector,
		logger:  logger,
	}
}

// Handle serves requests on conn until the peer disconnects, the stream
// desynchronizes or the context is cancelled. It matches the
// server.ConnectionHandler signature.
func (h *Handler) Handle(ctx context.Context, conn *server.Connection) {
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()
	if conn.IsTLS() {
		h.metrics.TLSConnectionEstablished()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := h.serveRequest(ctx, conn); err != nil {
			return
		}
		if err := conn.ResetIdleTimeout(); err != nil {
			return
		}
	}
}

// serveRequest reads one request list and writes one reply list. A non-nil
// return means the connection is no longer usable.
func (h *Handler) serveRequest(ctx context.Context, conn *server.Connection) error {
	if err := conn.SetRequestTimeout(); err != nil {
		return err
	}

	var (
		request   string
		tableName string
		flags     uint32
		key       string
	)
	start := time.Now()
	n, err := attr.Scan(conn.Stream(), attr.Strict,
		attr.WantString(proto.AttrRequest, &request),
		attr.WantString(proto.AttrTable, &tableName),
		attr.WantUint32(proto.AttrFlags, &flags),
		attr.WantString(proto.AttrKey, &key),
	)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			conn.Logger().Debug("peer disconnected")
		} else {
			h.metrics.DecodeError(decodeErrorKind(err))
			conn.Logger().Warn("unusable request",
				slog.String("error", err.Error()),
			)
		}
		return err
	}
	if n < 4 {
		// The stream may be mid-list after a short scan, so answer this
		// request and then give up on the connection.
		conn.Logger().Warn("incomplete request",
			slog.Int("attributes", n),
		)
		_ = h.reply(conn, "unknown", start, proto.StatBad, "")
		return errIncompleteRequest
	}

	if request != proto.RequestLookup {
		conn.Logger().Warn("unknown request type",
			slog.String("request", request),
		)
		return h.reply(conn, tableName, start, proto.StatBad, "")
	}

	tbl, ok := h.tables.Get(tableName)
	if !ok {
		conn.Logger().Warn("request for unavailable table",
			slog.String("table", tableName),
		)
		return h.reply(conn, tableName, start, proto.StatDeny, "")
	}

	value, found, err := tbl.Lookup(ctx, key)
	if err != nil {
		conn.Logger().Error("table lookup failed",
			slog.String("table", tableName),
			slog.String("error", err.Error()),
		)
		return h.reply(conn, tableName, start, proto.StatRetry, "")
	}
	if !found {
		return h.reply(conn, tableName, start, proto.StatNoKey, "")
	}
	return h.reply(conn, tableName, start, proto.StatOK, value)
}

// reply writes the status/value list and records request metrics.
func (h *Handler) reply(conn *server.Connection, tableName string, start time.Time, status uint32, value string) error {
	err := attr.Print(conn.Stream(),
		attr.Uint32(proto.AttrStatus, status),
		attr.String(proto.AttrValue, value),
	)
	if err != nil {
		conn.Logger().Debug("reply failed",
			slog.String("error", err.Error()),
		)
		return err
	}

	h.metrics.RequestProcessed(tableName, proto.StatText(status))
	h.metrics.RequestDuration(tableName, time.Since(start).Seconds())
	return nil
}

// decodeErrorKind classifies a Scan failure for the decode-error metric.
func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, attr.ErrBadBase64),
		errors.Is(err, attr.ErrBadNumber),
		errors.Is(err, attr.ErrMultiValue),
		errors.Is(err, attr.ErrMissingValue),
		errors.Is(err, attr.ErrFieldTooLong):
		return "malformed"
	default:
		return "stream"
	}
}
