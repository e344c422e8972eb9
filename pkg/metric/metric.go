package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (

	// should be initialized in main
	sentDataBytesHistogram *prometheus.HistogramVec
	recvDataBytesHistogram *prometheus.HistogramVec
	procTimeHistogram      *prometheus.HistogramVec
	rttTimeHistogram       *prometheus.HistogramVec
	scoreHistogram         prometheus.Histogram

	procTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "processing_time_ms",
			Help: "Gauge of processing times per operation.",
		},
		[]string{"op"})
	rTTTimes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtt_times_ms",
			Help: "Gauge of round-trip times for different services.",
		},
		[]string{"service"})
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_map_cache_lookups_total",
			Help: "Score map cache lookups by result.",
		},
		[]string{"result"})
	attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attempts_total",
			Help: "Scored attempts by pair and quality.",
		},
		[]string{"pair", "quality"})
)

var scoreBucketsDefault = []float64{-0.2, 0, 0.2, 0.4, 0.6, 0.8, 0.9, 0.95, 1}

func (m *Metric) RegisterMetrics(sentDataBuckets, procTimeBuckets, rttTimeBuckets, scoreBuckets []float64) {

	if sentDataBuckets == nil {
		sentDataBuckets = prometheus.ExponentialBuckets(256, 4, 8)
	}
	if procTimeBuckets == nil {
		procTimeBuckets = prometheus.DefBuckets
	}
	if rttTimeBuckets == nil {
		rttTimeBuckets = prometheus.DefBuckets
	}
	if scoreBuckets == nil {
		scoreBuckets = scoreBucketsDefault
	}

	sentDataBytesHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sent_data_bytes_histogram",
			Help:    "Histogram of sent data bytes.",
			Buckets: sentDataBuckets,
		},
		[]string{"service"},
	)
	recvDataBytesHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "received_data_bytes_histogram",
			Help:    "Histogram of received data bytes.",
			Buckets: sentDataBuckets,
		},
		[]string{"service"},
	)
	procTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processing_time_ms_histogram",
			Help:    "Histogram of processing times.",
			Buckets: procTimeBuckets,
		},
		[]string{"op"},
	)
	rttTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rtt_times_ms_histogram",
			Help:    "Histogram of round-trip times.",
			Buckets: rttTimeBuckets,
		},
		[]string{"service"},
	)
	scoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_score_histogram",
			Help:    "Histogram of pairwise match scores.",
			Buckets: scoreBuckets,
		},
	)

	// Register the metrics with Prometheus
	prometheus.MustRegister(sentDataBytesHistogram)
	prometheus.MustRegister(recvDataBytesHistogram)
	prometheus.MustRegister(procTimeHistogram)
	prometheus.MustRegister(rttTimeHistogram)
	prometheus.MustRegister(scoreHistogram)
	prometheus.MustRegister(procTime)
	prometheus.MustRegister(rTTTimes)
	prometheus.MustRegister(cacheLookups)
	prometheus.MustRegister(attempts)

	m.mu.Lock()
	m.registered = true
	m.mu.Unlock()
}

// Metric records observations once RegisterMetrics has run. A nil or
// unregistered Metric drops everything, which keeps it optional in tests.
type Metric struct {
	mu         sync.Mutex
	registered bool
}

func (m *Metric) AddSentDataBytes(s string, bytes float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	sentDataBytesHistogram.WithLabelValues(s).Observe(bytes)
}

func (m *Metric) AddReceivedDataBytes(s string, bytes float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	recvDataBytesHistogram.WithLabelValues(s).Observe(bytes)
}

func (m *Metric) AddProcessingTime(op string, time float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	procTimeHistogram.WithLabelValues(op).Observe(time)
	procTime.WithLabelValues(op).Set(time)
}

func (m *Metric) AddRttTime(s string, time float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	rttTimeHistogram.WithLabelValues(s).Observe(time)
	rTTTimes.WithLabelValues(s).Set(time)
}

func (m *Metric) AddScore(score float64) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	scoreHistogram.Observe(score)
}

func (m *Metric) AddCacheLookup(hit bool) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metric) AddAttempt(pair, quality string) {
	if !m.lock() {
		return
	}
	defer m.unlock()
	attempts.WithLabelValues(pair, quality).Inc()
}

// lock takes the mutex and reports whether observations should be recorded.
// When it returns false the mutex is not held.
func (m *Metric) lock() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	if !m.registered {
		m.mu.Unlock()
		return false
	}
	return true
}

func (m *Metric) unlock() {
	m.mu.Unlock()
}
