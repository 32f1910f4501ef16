package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/shape"
)

var (
	ElementsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osmshape_elements_read_total",
			Help: "Total number of OSM elements read from the input",
		},
	)

	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmshape_records_written_total",
			Help: "Total number of shaped records passed to the outputs",
		},
		[]string{"type"},
	)

	ElementsExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmshape_elements_excluded_total",
			Help: "Total number of elements dropped while shaping",
		},
		[]string{"reason"},
	)

	SinkWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmshape_sink_write_duration_seconds",
			Help:    "Duration of a batch write in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"sink"},
	)
)

// Export all label values from the start, also those that stay at zero.
func init() {
	for _, kind := range []string{element.NodeKind, element.WayKind} {
		RecordsWritten.WithLabelValues(kind)
	}
	for _, reason := range shape.Reasons {
		ElementsExcluded.WithLabelValues(reason.String())
	}
}

// ObserveWrite records the duration of one batch write to sink.
func ObserveWrite(sink string, d time.Duration) {
	SinkWriteDuration.WithLabelValues(sink).Observe(d.Seconds())
}
