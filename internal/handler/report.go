package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/akave-ai/gpsrelay/internal/model"
	"github.com/akave-ai/gpsrelay/internal/report"
)

const (
	ack = "OK"

	DefaultMirrorTimeout = 2 * time.Second
)

var (
	// ErrMissingTimestamp marks requests that are not genuine telemetry reports.
	ErrMissingTimestamp = errors.New("missing timestamp")
	// ErrInternal wraps a recovered panic.
	ErrInternal = errors.New("internal fault")
)

// RecordLog is the durable record log every accepted report is appended to.
type RecordLog interface {
	BuildRecord(raw model.RawReport, source string) model.LogRecord
	Append(ctx context.Context, rec model.LogRecord) error
}

// RecordMirror receives a copy of each record. Optional.
type RecordMirror interface {
	Append(ctx context.Context, rec model.LogRecord) error
}

// Deliverer sends a payload downstream and reports what happened.
type Deliverer interface {
	Deliver(ctx context.Context, payload model.RelayPayload) model.DeliveryOutcome
}

// ReportHandler accepts GPSLogger reports (GET/POST <path>). The caller
// always gets 200 "OK"; everything that happens afterwards only reaches the
// diagnostic log.
type ReportHandler struct {
	Records           RecordLog
	Mirror            RecordMirror
	Relay             Deliverer
	IncludeEnrichment bool
	// MirrorTimeout bounds each mirror write; DefaultMirrorTimeout when zero.
	MirrorTimeout time.Duration
	Log           zerolog.Logger
}

// Result summarizes how far one report got through processing.
type Result struct {
	ReportID string
	Logged   bool
	Outcome  *model.DeliveryOutcome
	Err      error
}

// Handle acknowledges the request and then processes it.
func (h *ReportHandler) Handle(c echo.Context) error {
	// HTTP/1.x bodies must be consumed before the response is written.
	raw := report.Extract(h.formValues(c))
	source := c.RealIP()

	// An explicit length keeps the ack from being chunked, so the client sees
	// the end of the body before processing starts.
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(ack)))
	if err := c.String(http.StatusOK, ack); err != nil {
		h.Log.Warn().Err(err).Msg("could not write acknowledgement")
	}
	_ = http.NewResponseController(c.Response().Writer).Flush()

	h.Process(context.WithoutCancel(c.Request().Context()), raw, source)
	return nil
}

func (h *ReportHandler) mirror(ctx context.Context, rec model.LogRecord) error {
	timeout := h.MirrorTimeout
	if timeout <= 0 {
		timeout = DefaultMirrorTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return h.Mirror.Append(ctx, rec)
}

func (h *ReportHandler) formValues(c echo.Context) url.Values {
	params, err := c.FormParams()
	if err == nil {
		return params
	}
	h.Log.Warn().Err(err).Msg("could not parse form, using what was parsed")
	if form := c.Request().Form; form != nil {
		return form
	}
	return c.QueryParams()
}

// Process runs the report pipeline. It never panics and never returns an
// error to the caller; the Result is informational.
func (h *ReportHandler) Process(ctx context.Context, raw model.RawReport, source string) (res Result) {
	res.ReportID = uuid.NewString()
	log := h.Log.With().Str("report_id", res.ReportID).Str("source", source).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrInternal, r)
			log.Error().Interface("panic", r).Msg("report processing aborted")
		}
	}()

	if strings.TrimSpace(raw.Get("timestamp")) == "" {
		res.Err = ErrMissingTimestamp
		log.Debug().Int("fields", len(raw)).Msg("no timestamp, ignoring request")
		return res
	}

	rec := h.Records.BuildRecord(raw, source)
	if err := h.Records.Append(ctx, rec); err != nil {
		log.Error().Err(err).Msg("could not append record")
	} else {
		res.Logged = true
	}
	if h.Mirror != nil {
		if err := h.mirror(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("could not mirror record")
		}
	}

	device := report.DeviceID(raw)
	log = log.With().Str("device", device).Logger()

	payload, err := report.BuildPayload(raw, h.IncludeEnrichment)
	if err != nil {
		res.Err = err
		log.Info().Str("lat", raw.Get("lat")).Str("lon", raw.Get("lon")).Msg("incomplete coordinates, not relaying")
		return res
	}

	out := h.Relay.Deliver(ctx, payload)
	res.Outcome = &out
	switch {
	case out.Disabled:
		log.Debug().Msg("delivery disabled")
	case out.Success:
		log.Info().Int("status", out.StatusCode).Int("fields", len(payload)).Msg("report relayed")
	default:
		log.Warn().Str("outcome", out.String()).Msg("delivery failed")
	}
	return res
}
