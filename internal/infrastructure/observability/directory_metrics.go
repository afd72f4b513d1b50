package observability

import "github.com/prometheus/client_golang/prometheus"

// DirectoryMetrics exposes prometheus collectors for directory health.
// A nil *DirectoryMetrics is a valid no-op.
type DirectoryMetrics struct {
	aggregateSize  prometheus.Gauge
	droppedRecords *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
	staleLoads     prometheus.Counter
	searches       *prometheus.CounterVec
}

// NewDirectoryMetrics registers directory collectors on reg, or on the
// default registerer when reg is nil.
func NewDirectoryMetrics(reg prometheus.Registerer) *DirectoryMetrics {
	m := &DirectoryMetrics{
		aggregateSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cartosante",
			Subsystem: "directory",
			Name:      "aggregate_size",
			Help:      "Number of providers in the current aggregate",
		}),
		droppedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartosante",
			Subsystem: "directory",
			Name:      "dropped_records_total",
			Help:      "Raw records dropped by normalization",
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartosante",
			Subsystem: "directory",
			Name:      "source_failures_total",
			Help:      "Source fetch failures during directory loads",
		}, []string{"source"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cartosante",
			Subsystem: "directory",
			Name:      "load_duration_seconds",
			Help:      "Duration of directory loads and geodata syncs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		staleLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cartosante",
			Subsystem: "directory",
			Name:      "stale_loads_total",
			Help:      "Loads discarded because a newer aggregate was already committed",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartosante",
			Subsystem: "directory",
			Name:      "searches_total",
			Help:      "Directory searches by sort key",
		}, []string{"sort"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.aggregateSize, m.droppedRecords, m.sourceFailures, m.loadDuration, m.staleLoads, m.searches)
	return m
}

func (m *DirectoryMetrics) SetAggregateSize(n int) {
	if m == nil {
		return
	}
	m.aggregateSize.Set(float64(n))
}

func (m *DirectoryMetrics) ObserveDropped(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.droppedRecords.WithLabelValues(source).Add(float64(n))
}

func (m *DirectoryMetrics) ObserveSourceFailure(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *DirectoryMetrics) ObserveDuration(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.loadDuration.WithLabelValues(operation, status).Observe(seconds)
}

func (m *DirectoryMetrics) ObserveStaleLoad() {
	if m == nil {
		return
	}
	m.staleLoads.Inc()
}

func (m *DirectoryMetrics) ObserveSearch(sort string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(sort).Inc()
}
