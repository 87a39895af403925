// Package observability wires optional New Relic APM into the server and the relay client.
package observability

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/akave-ai/gpsrelay/internal/config"
)

// NewApplication returns nil, nil when no license key is configured.
func NewApplication(cfg *config.ObservabilityConfig) (*newrelic.Application, error) {
	if cfg == nil || cfg.NewRelic.LicenseKey == "" {
		return nil, nil
	}
	return newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.NewRelic.AppName),
		newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
		newrelic.ConfigEnabled(true),
		func(c *newrelic.Config) {
			c.Labels = map[string]string{"env": cfg.Environment}
		},
	)
}

// Middleware starts one web transaction per request and puts it in the request context.
func Middleware(app *newrelic.Application) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if app == nil {
				return next(c)
			}
			req := c.Request()
			txn := app.StartTransaction(req.Method + " " + c.Path())
			defer txn.End()

			txn.SetWebRequestHTTP(req)
			c.Response().Writer = txn.SetWebResponse(c.Response().Writer)
			c.SetRequest(req.WithContext(newrelic.NewContext(req.Context(), txn)))

			err := next(c)
			if err != nil {
				txn.NoticeError(err)
			}
			return err
		}
	}
}

// Transport wraps base so outbound calls become external segments of the
// transaction in the request context. base is returned as-is when app is nil.
func Transport(app *newrelic.Application, base http.RoundTripper) http.RoundTripper {
	if app == nil {
		return base
	}
	return newrelic.NewRoundTripper(base)
}
