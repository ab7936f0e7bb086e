package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace"

type PrometheusRecorder struct {
	txTotal     *prometheus.CounterVec
	txLatency   *prometheus.HistogramVec
	pinTotal    *prometheus.CounterVec
	pinBytes    *prometheus.CounterVec
	pinLatency  *prometheus.HistogramVec
	switchTotal *prometheus.CounterVec
}

// NewPrometheusRecorder registers the collectors on reg. A nil reg means the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PrometheusRecorder{
		txTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "outcomes_total",
			Help:      "Terminal transaction outcomes",
		}, []string{"kind", "outcome", "chain"}),
		txLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "duration_seconds",
			Help:      "Time from trigger to terminal state",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind", "outcome"}),
		pinTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pin",
			Name:      "uploads_total",
			Help:      "Asset uploads by outcome",
		}, []string{"asset", "outcome"}),
		pinBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pin",
			Name:      "bytes_total",
			Help:      "Bytes sent to the content store",
		}, []string{"asset"}),
		pinLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pin",
			Name:      "duration_seconds",
			Help:      "Upload duration per asset",
			Buckets:   prometheus.DefBuckets,
		}, []string{"asset"}),
		switchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "switches_total",
			Help:      "Non-trivial chain switches",
		}, []string{"chain"}),
	}
}

func (p *PrometheusRecorder) TxOutcome(kind, outcome string, chainID uint64, d time.Duration) {
	p.txTotal.WithLabelValues(kind, outcome, chainLabel(chainID)).Inc()
	p.txLatency.WithLabelValues(kind, outcome).Observe(d.Seconds())
}

func (p *PrometheusRecorder) PinOutcome(asset, outcome string, bytes int64, d time.Duration) {
	p.pinTotal.WithLabelValues(asset, outcome).Inc()
	if bytes > 0 {
		p.pinBytes.WithLabelValues(asset).Add(float64(bytes))
	}
	p.pinLatency.WithLabelValues(asset).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ChainSwitch(chainID uint64) {
	p.switchTotal.WithLabelValues(chainLabel(chainID)).Inc()
}

func chainLabel(id uint64) string {
	if id == 0 {
		return "default"
	}
	return strconv.FormatUint(id, 10)
}
