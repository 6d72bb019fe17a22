// Package metrics provides the Prometheus collectors for record operations.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeDuplicate = "duplicate"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// Records counts create/update/delete calls and stored uploads.
type Records struct {
	Operations *prometheus.CounterVec
	Uploads    prometheus.Counter
	UploadSize prometheus.Histogram
}

// NewRecords creates the record collectors and registers them on registry.
func NewRecords(registry prometheus.Registerer) (*Records, error) {
	m := &Records{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barrancos_record_operations_total",
			Help: "Record operations by kind and outcome",
		}, []string{"op", "outcome"}),
		Uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barrancos_uploads_total",
			Help: "Total number of images written to the upload directory",
		}),
		UploadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "barrancos_upload_size_bytes",
			Help:    "Size of stored images in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{m.Operations, m.Uploads, m.UploadSize} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register record metrics: %w", err)
		}
	}
	return m, nil
}

// Observe counts one operation. A nil receiver is a no-op.
func (m *Records) Observe(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

// ObserveUpload records a stored image of n bytes. A nil receiver is a no-op.
func (m *Records) ObserveUpload(n int64) {
	if m == nil {
		return
	}
	m.Uploads.Inc()
	m.UploadSize.Observe(float64(n))
}
