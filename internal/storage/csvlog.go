// Package storage holds the durable append-only record log.
package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/akave-ai/gpsrelay/internal/model"
)

// ReceiptTimeLayout is HH:MM:SS MM/DD/YY in local time.
const ReceiptTimeLayout = "15:04:05 01/02/06"

// CSVLog appends LogRecords to a CSV file, one row per accepted report.
type CSVLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewCSVLog returns a CSVLog writing to path. now defaults to time.Now.
func NewCSVLog(path string, now func() time.Time) *CSVLog {
	if now == nil {
		now = time.Now
	}
	return &CSVLog{path: path, now: now}
}

// Path returns the file the log appends to.
func (l *CSVLog) Path() string { return l.path }

// BuildRecord reads the fixed fields from raw. Absent fields become "".
func (l *CSVLog) BuildRecord(raw model.RawReport, source string) model.LogRecord {
	return model.LogRecord{
		ReceiptTime:     l.now().Local().Format(ReceiptTimeLayout),
		ReportTimestamp: raw.Get("timestamp"),
		Battery:         raw.Get("batt"),
		SourceAddress:   source,
		Longitude:       raw.Get("lon"),
		Latitude:        raw.Get("lat"),
		Accuracy:        raw.Get("acc"),
		Description:     raw.Get("desc"),
	}
}

// Append writes rec as a single row. The row is encoded up front and written
// with one write call on an O_APPEND descriptor so rows never interleave.
func (l *CSVLog) Append(_ context.Context, rec model.LogRecord) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rec.Row()); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", l.path, err)
	}
	return f.Close()
}
