package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures collectors follow the event stream.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Topic: "franka"},
		{
			RunID:       runID,
			TS:          now,
			Stage:       progress.StageFetchDone,
			Topic:       "franka",
			URL:         "https://good.org/",
			StatusClass: progress.Status2xx,
			Bytes:       1024,
			Dur:         200 * time.Millisecond,
		},
		{RunID: runID, TS: now, Stage: progress.StageSoftBlock, Topic: "franka", URL: "https://good.org/"},
		{RunID: runID, TS: now, Stage: progress.StageDuplicate, Topic: "franka", Kind: "page"},
		{RunID: runID, TS: now, Stage: progress.StageArtifact, Topic: "franka", Kind: "table", Filename: "t.csv"},
		{RunID: runID, TS: now, Stage: progress.StageRunDone, Topic: "franka", Dur: 15 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsActive))
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.fetches.WithLabelValues("franka", "2xx")), 1e-9)
	require.InDelta(t, 1024.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("franka")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "crawler_fetch_duration_seconds"))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.softBlocks.WithLabelValues("franka")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.duplicates.WithLabelValues("franka", "page")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.artifacts.WithLabelValues("franka", "table")))
}

func TestPrometheusSinkRejectsDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
