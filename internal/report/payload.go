package report

import (
	"errors"
	"strings"

	"github.com/akave-ai/gpsrelay/internal/model"
)

// UnknownDevice is used when a report carries neither a serial nor an android id.
const UnknownDevice = "gpslogger_unknown"

// ErrIncompleteCoordinates is returned when lat or lon is empty after trimming.
var ErrIncompleteCoordinates = errors.New("incomplete coordinates")

// enrichment maps source fields to payload keys, in a stable order.
var enrichment = []struct {
	source string
	dest   string
}{
	{"batt", "battery"},
	{"acc", "accuracy"},
	{"alt", "altitude"},
	{"spd", "speed"},
	{"dir", "direction"},
	{"prov", "provider"},
	{"act", "activity"},
}

// DeviceID returns trim(ser), falling back to trim(aid) and then UnknownDevice.
func DeviceID(raw model.RawReport) string {
	if id := strings.TrimSpace(raw.Get("ser")); id != "" {
		return id
	}
	if id := strings.TrimSpace(raw.Get("aid")); id != "" {
		return id
	}
	return UnknownDevice
}

// BuildPayload projects raw onto the relay whitelist.
// With includeEnrichment false the payload holds exactly device, latitude and longitude.
func BuildPayload(raw model.RawReport, includeEnrichment bool) (model.RelayPayload, error) {
	lat := strings.TrimSpace(raw.Get("lat"))
	lon := strings.TrimSpace(raw.Get("lon"))
	if lat == "" || lon == "" {
		return nil, ErrIncompleteCoordinates
	}

	payload := model.RelayPayload{
		"device":    DeviceID(raw),
		"latitude":  lat,
		"longitude": lon,
	}
	if !includeEnrichment {
		return payload, nil
	}
	for _, f := range enrichment {
		if v := strings.TrimSpace(raw.Get(f.source)); v != "" {
			payload[f.dest] = v
		}
	}
	return payload, nil
}
