package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akave-ai/gpsrelay/internal/model"
)

func fixedNow() time.Time {
	return time.Date(2024, 1, 1, 10, 0, 5, 0, time.Local)
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestBuildRecord(t *testing.T) {
	l := NewCSVLog("unused.csv", fixedNow)
	rec := l.BuildRecord(model.RawReport{
		"timestamp": "2024-01-01 10:00:00",
		"batt":      "91",
		"lat":       "12.34",
		"lon":       "56.78",
		"ser":       "phone1",
	}, "10.0.0.7")

	require.Equal(t, model.LogRecord{
		ReceiptTime:     "10:00:05 01/01/24",
		ReportTimestamp: "2024-01-01 10:00:00",
		Battery:         "91",
		SourceAddress:   "10.0.0.7",
		Longitude:       "56.78",
		Latitude:        "12.34",
		Accuracy:        "",
		Description:     "",
	}, rec)
}

func TestAppendWritesOneRowPerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslogger.csv")
	l := NewCSVLog(path, fixedNow)

	first := l.BuildRecord(model.RawReport{"timestamp": "1", "desc": "with, comma"}, "a")
	second := l.BuildRecord(model.RawReport{"timestamp": "2", "desc": "line\nbreak"}, "b")
	require.NoError(t, l.Append(context.Background(), first))
	require.NoError(t, l.Append(context.Background(), second))

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	require.Equal(t, first.Row(), rows[0])
	require.Equal(t, second.Row(), rows[1])
	require.Len(t, rows[0], 8)
}

func TestAppendConcurrentRowsStayIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslogger.csv")
	l := NewCSVLog(path, fixedNow)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := l.BuildRecord(model.RawReport{
				"timestamp": fmt.Sprintf("ts-%d", i),
				"desc":      fmt.Sprintf("report number %d", i),
			}, "127.0.0.1")
			require.NoError(t, l.Append(context.Background(), rec))
		}(i)
	}
	wg.Wait()

	rows := readRows(t, path)
	require.Len(t, rows, n)
	for _, row := range rows {
		require.Len(t, row, 8)
	}
}

func TestAppendUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "gpslogger.csv")
	l := NewCSVLog(path, fixedNow)
	err := l.Append(context.Background(), model.LogRecord{ReportTimestamp: "1"})
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}
