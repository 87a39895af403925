package server

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/gpsrelay/internal/config"
)

type webhook struct {
	mu    sync.Mutex
	forms []url.Values
	*httptest.Server
}

func newWebhook(t *testing.T, status int) *webhook {
	w := &webhook{}
	w.Server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		w.mu.Lock()
		w.forms = append(w.forms, r.PostForm)
		w.mu.Unlock()
		rw.WriteHeader(status)
	}))
	t.Cleanup(w.Close)
	return w
}

func testConfig(t *testing.T, hookURL string) *config.Config {
	cfg := config.Default()
	cfg.Relay.URL = hookURL
	cfg.Records.CSVPath = filepath.Join(t.TempDir(), "gpslogger.csv")
	return cfg
}

func TestReportEndToEnd(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	cfg := testConfig(t, hook.URL)
	srv := New(cfg, Deps{Log: zerolog.Nop()})

	req := httptest.NewRequest(http.MethodGet,
		"/gpslogger?timestamp=2024-01-01T10:00:00Z&ser=phone1&lat=12.34&lon=56.78&batt=91&acc=5&desc=home", nil)
	rr := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "OK", rr.Body.String())

	f, err := os.Open(cfg.Records.CSVPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, []string{"2024-01-01T10:00:00Z", "91", "192.0.2.1", "56.78", "12.34", "5", "home"}, rows[0][1:])

	require.Len(t, hook.forms, 1)
	require.Equal(t, url.Values{
		"device":    {"phone1"},
		"latitude":  {"12.34"},
		"longitude": {"56.78"},
		"battery":   {"91"},
		"accuracy":  {"5"},
	}, hook.forms[0])
}

func TestReportDeliveryDisabled(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	cfg := testConfig(t, hook.URL)
	cfg.Relay.Enabled = false
	srv := New(cfg, Deps{Log: zerolog.Nop()})

	rr := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/gpslogger?timestamp=1&lat=1&lon=2", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, hook.forms)
	_, err := os.Stat(cfg.Records.CSVPath)
	require.NoError(t, err)
}

func TestTrustProxyUsesForwardedFor(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	cfg := testConfig(t, hook.URL)
	cfg.Server.TrustProxy = true
	srv := New(cfg, Deps{Log: zerolog.Nop()})

	req := httptest.NewRequest(http.MethodGet, "/gpslogger?timestamp=1", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	srv.Echo.ServeHTTP(httptest.NewRecorder(), req)

	data, err := os.ReadFile(cfg.Records.CSVPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "203.0.113.9")
}

func TestHealth(t *testing.T) {
	srv := New(testConfig(t, "http://127.0.0.1:1/hook"), Deps{Log: zerolog.Nop()})

	rr := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Data["status"])
	require.Equal(t, true, body.Data["delivery_enabled"])
	require.Equal(t, false, body.Data["mirror_enabled"])
}

func TestRecentReportsWithoutMirror(t *testing.T) {
	srv := New(testConfig(t, "http://127.0.0.1:1/hook"), Deps{Log: zerolog.Nop()})

	rr := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/recent", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
