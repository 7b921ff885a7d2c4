package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/topic-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	fetches       *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	softBlocks    *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	artifacts     *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_runs_started_total",
			Help: "Crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_runs_completed_total",
			Help: "Crawl runs completed partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_runs_active",
			Help: "Crawl runs currently in progress.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600},
		}, []string{"result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_fetches_total",
			Help: "Fetch attempts partitioned by topic and status class.",
		}, []string{"topic", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_fetch_bytes_total",
			Help: "Response bytes downloaded per topic.",
		}, []string{"topic"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Fetch latency partitioned by topic.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"topic"}),
		softBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_soft_blocks_total",
			Help: "Soft-block responses per topic.",
		}, []string{"topic"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_duplicates_total",
			Help: "Payloads skipped as duplicates per topic and kind.",
		}, []string{"topic", "kind"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_artifacts_written_total",
			Help: "Artifacts written per topic and kind.",
		}, []string{"topic", "kind"}),
	}
	for _, c := range []prometheus.Collector{
		s.runsStarted, s.runsCompleted, s.runsActive, s.runDuration,
		s.fetches, s.fetchBytes, s.fetchDuration,
		s.softBlocks, s.duplicates, s.artifacts,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	topic := evt.Topic
	if topic == "" {
		topic = "unknown"
	}
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		s.runsActive.Inc()
	case progress.StageRunDone, progress.StageRunError:
		result := "success"
		if evt.Stage == progress.StageRunError {
			result = "error"
		}
		s.runsCompleted.WithLabelValues(result).Inc()
		s.runsActive.Dec()
		if evt.Dur > 0 {
			s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchDone:
		s.fetches.WithLabelValues(topic, string(evt.StatusClass)).Inc()
		if evt.Bytes > 0 {
			s.fetchBytes.WithLabelValues(topic).Add(float64(evt.Bytes))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(topic).Observe(evt.Dur.Seconds())
		}
	case progress.StageSoftBlock:
		s.softBlocks.WithLabelValues(topic).Inc()
	case progress.StageDuplicate:
		s.duplicates.WithLabelValues(topic, evt.Kind).Inc()
	case progress.StageArtifact:
		s.artifacts.WithLabelValues(topic, evt.Kind).Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
