package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestMetrics_RecordGeneration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newMetrics(mp.Meter(instrumentationName), zap.NewNop())
	ctx := context.Background()

	m.RecordGeneration(ctx, "all-MiniLM-L6-v2", "embed_documents", 100*time.Millisecond, 10, nil)
	m.RecordGeneration(ctx, "all-MiniLM-L6-v2", "embed_query", 5*time.Millisecond, 1, nil)
	m.RecordGeneration(ctx, "all-MiniLM-L6-v2", "embed_documents", 25*time.Millisecond, 5, errors.New("generation failed"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					counts[md.Name] += int64(dp.Count)
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					counts[md.Name] += int64(dp.Count)
				}
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					counts[md.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(3), counts["lexivoice.embedding.duration_seconds"])
	assert.Equal(t, int64(3), counts["lexivoice.embedding.texts"])
	assert.Equal(t, int64(1), counts["lexivoice.embedding.errors_total"])
}
