package model

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// RawReport holds the form fields of one inbound GPSLogger request.
// Keys are whatever the app sends; only the validation gates care about specific names.
type RawReport map[string]string

// Get returns the value for name, or "" if absent.
func (r RawReport) Get(name string) string {
	return r[name]
}

// LogRecord is one row of the durable CSV log. Column order is fixed.
type LogRecord struct {
	ReceiptTime     string `json:"receipt_time"`
	ReportTimestamp string `json:"report_timestamp"`
	Battery         string `json:"battery"`
	SourceAddress   string `json:"source_address"`
	Longitude       string `json:"longitude"`
	Latitude        string `json:"latitude"`
	Accuracy        string `json:"accuracy"`
	Description     string `json:"description"`
}

// Row returns the record's columns in file order.
func (r LogRecord) Row() []string {
	return []string{
		r.ReceiptTime,
		r.ReportTimestamp,
		r.Battery,
		r.SourceAddress,
		r.Longitude,
		r.Latitude,
		r.Accuracy,
		r.Description,
	}
}

// StoredRecord is a LogRecord as persisted in the database mirror.
type StoredRecord struct {
	ID uuid.UUID `db:"id"`
	LogRecord
	ReceivedAt time.Time `db:"received_at"`
}

// RelayPayload is the whitelisted body sent to the downstream webhook.
type RelayPayload map[string]string

// Values returns the payload as form values, ready to be url-encoded.
func (p RelayPayload) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// DeliveryOutcome describes the result of one delivery attempt.
type DeliveryOutcome struct {
	Success    bool
	Disabled   bool
	StatusCode int
	Detail     string
}

func (o DeliveryOutcome) String() string {
	switch {
	case o.Disabled:
		return "delivery disabled"
	case o.StatusCode != 0:
		return fmt.Sprintf("status %d: %s", o.StatusCode, o.Detail)
	default:
		return o.Detail
	}
}
