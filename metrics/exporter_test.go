package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashlog/log"
)

func newScrapedEngine(t *testing.T) *log.Engine {
	t.Helper()
	eng := log.New(log.Cfg{
		LogPath: filepath.Join(t.TempDir(), "flashlog.log"),
		Console: io.Discard,
		Diag:    io.Discard,
	})
	require.NoError(t, eng.Begin())
	return eng
}

func TestCollectorReportsEngineState(t *testing.T) {
	eng := newScrapedEngine(t)

	eng.Info("one")
	eng.Info("two")
	eng.Error("three")
	require.NoError(t, eng.End())

	c := NewCollector(eng)
	assert.Equal(t, 11, testutil.CollectAndCount(c))

	expected := `
# HELP flashlog_dropped_total Entries discarded because the queue stayed full under backpressure.
# TYPE flashlog_dropped_total counter
flashlog_dropped_total 0
# HELP flashlog_file_lines Terminated records currently in the log file.
# TYPE flashlog_file_lines gauge
flashlog_file_lines 3
# HELP flashlog_rotations_total Completed keep-latest log rotations.
# TYPE flashlog_rotations_total counter
flashlog_rotations_total 0
`
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"flashlog_dropped_total", "flashlog_file_lines", "flashlog_rotations_total"))
}

func TestCollectorLabelsEntriesBySeverity(t *testing.T) {
	eng := newScrapedEngine(t)

	eng.Info("a")
	eng.Info("b")
	eng.Warning("c")
	require.NoError(t, eng.End())

	c := NewCollector(eng)
	expected := `
# HELP flashlog_entries_total Log submissions by severity, counted before any filtering.
# TYPE flashlog_entries_total counter
flashlog_entries_total{level="VERBOSE"} 0
flashlog_entries_total{level="DEBUG"} 0
flashlog_entries_total{level="INFO"} 2
flashlog_entries_total{level="WARNING"} 1
flashlog_entries_total{level="ERROR"} 0
flashlog_entries_total{level="FATAL"} 0
`
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"flashlog_entries_total"))
}

func TestServeExposesMetricsEndpoint(t *testing.T) {
	eng := newScrapedEngine(t)
	eng.Error("scrape me")
	require.NoError(t, eng.End())

	srv, addr, err := Serve("127.0.0.1:0", NewCollector(eng))
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `flashlog_entries_total{level="ERROR"} 1`)
	assert.Contains(t, string(body), "flashlog_queue_spaces_available")
}
