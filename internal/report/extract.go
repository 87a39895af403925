// Package report turns GPSLogger form submissions into raw reports and relay payloads.
package report

import (
	"net/url"

	"github.com/akave-ai/gpsrelay/internal/model"
)

// Extract flattens form values into a RawReport.
// Entries with an empty name are skipped. A repeated name keeps its last value.
func Extract(values url.Values) model.RawReport {
	raw := make(model.RawReport, len(values))
	for name, vals := range values {
		if name == "" || len(vals) == 0 {
			continue
		}
		raw[name] = vals[len(vals)-1]
	}
	return raw
}
