package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchOutcomes counts fetch attempts by classified outcome.
	FetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_fetch_outcomes_total",
		Help: "Fetch attempts partitioned by outcome.",
	}, []string{"outcome"})
	// DuplicateContent counts payloads skipped because their hash was already in the ledger.
	DuplicateContent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_duplicate_content_total",
		Help: "Payloads skipped by the dedup ledger, partitioned by payload kind.",
	}, []string{"kind"})
	// SoftBlockDrops counts URLs abandoned after exhausting their soft-block retries.
	SoftBlockDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_soft_block_drops_total",
		Help: "URLs dropped after exceeding the soft-block retry cap.",
	})
)

// ObserveOutcome increments the outcome counter.
func ObserveOutcome(o Outcome) {
	FetchOutcomes.WithLabelValues(o.String()).Inc()
}
