package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/akave-ai/gpsrelay/internal/config"
	"github.com/akave-ai/gpsrelay/internal/handler"
	"github.com/akave-ai/gpsrelay/internal/observability"
	"github.com/akave-ai/gpsrelay/internal/relay"
	"github.com/akave-ai/gpsrelay/internal/repository"
	"github.com/akave-ai/gpsrelay/internal/response"
	"github.com/akave-ai/gpsrelay/internal/storage"
)

const (
	shutdownTimeout    = 10 * time.Second
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Deps are the process-level resources the server is built from.
type Deps struct {
	Log      zerolog.Logger
	Pool     *pgxpool.Pool         // optional; enables the record mirror
	NewRelic *newrelic.Application // optional
}

// Server holds the Echo app and dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	log    zerolog.Logger
}

// New builds the Echo server and registers routes.
func New(cfg *config.Config, deps Deps) *Server {
	log := deps.Log

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.Server.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	e.Use(
		middleware.Recover(),
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				log.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Msg("request")
				return nil
			},
		}),
		observability.Middleware(deps.NewRelic),
	)

	records := storage.NewCSVLog(cfg.Records.CSVPath, nil)
	client := relay.New(relay.Options{
		URL:       cfg.Relay.URL,
		Timeout:   cfg.Relay.Timeout,
		Enabled:   cfg.Relay.Enabled,
		UserAgent: cfg.Relay.UserAgent,
		Transport: observability.Transport(deps.NewRelic, http.DefaultTransport),
	})

	reportHandler := &handler.ReportHandler{
		Records:           records,
		Relay:             client,
		IncludeEnrichment: cfg.Relay.IncludeEnrichment,
		MirrorTimeout:     cfg.Database.Timeout,
		Log:               log,
	}
	var reports *repository.ReportRepository
	if deps.Pool != nil {
		reports = repository.NewReportRepository(deps.Pool)
		reportHandler.Mirror = reports
	}

	e.Match([]string{http.MethodGet, http.MethodPost}, cfg.Server.Path, reportHandler.Handle)

	e.GET("/health", func(c echo.Context) error {
		return response.OK(c, map[string]any{
			"status":             "ok",
			"delivery_enabled":   client.Enabled(),
			"include_enrichment": cfg.Relay.IncludeEnrichment,
			"mirror_enabled":     reports != nil,
		}, "")
	})

	// Recent records from the database mirror.
	e.GET("/reports/recent", func(c echo.Context) error {
		if reports == nil {
			return response.NotFound(c, "database mirror not configured", "database.url is empty")
		}
		limit := defaultRecentLimit
		if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
			limit = min(n, maxRecentLimit)
		}
		list, err := reports.ListRecent(c.Request().Context(), limit)
		if err != nil {
			return response.InternalError(c, "list reports failed", err.Error())
		}
		return response.OK(c, map[string]any{"reports": list}, "")
	})

	log.Info().
		Str("path", cfg.Server.Path).
		Str("csv", records.Path()).
		Bool("delivery", cfg.Relay.Enabled).
		Bool("enrichment", cfg.Relay.IncludeEnrichment).
		Bool("mirror", reports != nil).
		Msg("routes registered")

	return &Server{Echo: e, Config: cfg, log: log}
}

// Start starts the HTTP server. Blocks until the context is cancelled or the
// server fails. On cancel, in-flight reports are drained before it returns.
func (s *Server) Start(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("shutdown")
		}
	}()
	addr := ":" + s.Config.Server.Port
	s.log.Info().Str("addr", addr).Msg("listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-drained
	return nil
}

// Shutdown gracefully shuts down the server, letting in-flight reports finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
