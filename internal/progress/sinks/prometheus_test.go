package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/coursefinder-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures gauges and counters follow the crawl.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageCrawlStart, Total: 4},
		{RunID: runID, TS: now, Stage: progress.StageItemDone, CourseID: "A", Completed: 1, Total: 4},
		{RunID: runID, TS: now, Stage: progress.StageItemDone, CourseID: "B", Completed: 2, Total: 4},
		{RunID: runID, TS: now, Stage: progress.StageCrawlDone, Completed: 4, Total: 4, Dur: 15 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.crawlsStarted))
	require.Equal(t, 4.0, testutil.ToFloat64(sink.itemsTotal))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.itemsCompleted))
	require.InDelta(t, 0.5, testutil.ToFloat64(sink.completedRatio), 1e-9)
	require.Equal(t, 1.0, testutil.ToFloat64(sink.crawlsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.crawlsCompleted.WithLabelValues("error")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.crawlRuntime, "coursefinder_crawl_runtime_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
