package observability

import (
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	stakingMetricsOnce sync.Once
	stakingRegistry    *StakingMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// JSON-RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftstake",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

func moduleOf(method string) string {
	if module, _, ok := strings.Cut(method, "_"); ok && module != "" {
		return module
	}
	return "unknown"
}

// Observe records the outcome of a JSON-RPC call. A zero code marks success.
func (m *moduleMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	module := moduleOf(method)
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, strconv.Itoa(code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// StakingMetrics tracks custody and reward flows of the staking engine.
type StakingMetrics struct {
	operations  *prometheus.CounterVec
	tokens      *prometheus.CounterVec
	rewardsPaid prometheus.Counter
	currentRate prometheus.Gauge
	custody     prometheus.Gauge
}

// Staking returns the lazily-initialised staking metrics registry.
func Staking() *StakingMetrics {
	stakingMetricsOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Staking operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "engine",
				Name:      "tokens_total",
				Help:      "Tokens processed by committed staking operations.",
			}, []string{"operation"}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftstake",
				Subsystem: "engine",
				Name:      "rewards_paid_total",
				Help:      "Reward units paid out by claims and settled withdrawals.",
			}),
			currentRate: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nftstake",
				Subsystem: "engine",
				Name:      "reward_rate",
				Help:      "Reward rate of the latest checkpoint.",
			}),
			custody: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nftstake",
				Subsystem: "engine",
				Name:      "tokens_in_custody",
				Help:      "Tokens currently held by the vault.",
			}),
		}
		prometheus.MustRegister(
			stakingRegistry.operations,
			stakingRegistry.tokens,
			stakingRegistry.rewardsPaid,
			stakingRegistry.currentRate,
			stakingRegistry.custody,
		)
	})
	return stakingRegistry
}

// RecordOperation counts an engine call. Committed calls also count their
// tokens.
func (m *StakingMetrics) RecordOperation(operation string, tokens int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.operations.WithLabelValues(operation, "error").Inc()
		return
	}
	m.operations.WithLabelValues(operation, "success").Inc()
	if tokens > 0 {
		m.tokens.WithLabelValues(operation).Add(float64(tokens))
	}
}

// RecordPayout adds amount to the paid rewards counter.
func (m *StakingMetrics) RecordPayout(amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.rewardsPaid.Add(bigToFloat(amount))
}

// SetRate publishes the latest rate checkpoint.
func (m *StakingMetrics) SetRate(rate *big.Int) {
	if m == nil || rate == nil {
		return
	}
	m.currentRate.Set(bigToFloat(rate))
}

// AddCustody adjusts the custody gauge by delta tokens.
func (m *StakingMetrics) AddCustody(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.custody.Add(float64(delta))
}

// SetCustody overwrites the custody gauge.
func (m *StakingMetrics) SetCustody(count uint64) {
	if m == nil {
		return
	}
	m.custody.Set(float64(count))
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
