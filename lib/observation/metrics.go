package observation

import (
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// storeMetrics holds the counters of one Store. Every Store has its own set,
// so several stores (e.g. in tests) never share counters.
type storeMetrics struct {
	set *metrics.Set

	added          *metrics.Counter
	deleted        *metrics.Counter
	cleared        *metrics.Counter
	decodeFailures *metrics.Counter
	writeFailures  *metrics.Counter
}

func newStoreMetrics() *storeMetrics {
	set := metrics.NewSet()
	return &storeMetrics{
		set:            set,
		added:          set.NewCounter("fieldlog_observations_added_total"),
		deleted:        set.NewCounter("fieldlog_observations_deleted_total"),
		cleared:        set.NewCounter("fieldlog_observations_cleared_total"),
		decodeFailures: set.NewCounter("fieldlog_observations_decode_failures_total"),
		writeFailures:  set.NewCounter("fieldlog_observations_write_failures_total"),
	}
}

// observe records the duration of a store operation
func (m *storeMetrics) observe(op string, start time.Time) {
	m.set.GetOrCreateHistogram(`fieldlog_store_op_duration_seconds{op="` + op + `"}`).Update(time.Since(start).Seconds())
}

// WritePrometheus writes the metrics of the store in Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}
