package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

var (
	// IndexesCached is the number of jurisdictions held in memory.
	IndexesCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lexivoice",
			Subsystem: "registry",
			Name:      "indexes_cached",
			Help:      "Number of jurisdiction indexes held in memory",
		},
	)

	// IndexChunks is the chunk count of each cached index.
	// Labels: jurisdiction
	IndexChunks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lexivoice",
			Subsystem: "registry",
			Name:      "index_chunks",
			Help:      "Number of chunks in each cached jurisdiction index",
		},
		[]string{"jurisdiction"},
	)

	// IndexFailures counts failed loads and builds.
	// Labels: jurisdiction, kind (index_not_found, index_corrupt, malformed_document, ...)
	IndexFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexivoice",
			Subsystem: "registry",
			Name:      "index_failures_total",
			Help:      "Total number of index loads or builds that failed, by error kind",
		},
		[]string{"jurisdiction", "kind"},
	)
)

func (r *Registry) publishGauges() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	IndexesCached.Set(float64(len(r.indexes)))
	for j, idx := range r.indexes {
		IndexChunks.WithLabelValues(j).Set(float64(idx.Len()))
	}
}

func recordFailure(jurisdiction string, err error) {
	IndexFailures.WithLabelValues(jurisdiction, errkind.Of(err).String()).Inc()
}
