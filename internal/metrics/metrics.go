package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aevrHQ/ui/queue"
)

const namespace = "uploadkit"

// QueueSource 队列状态来源
type QueueSource interface {
	Pending() int
	Active() int
	Limit() int
}

// Metrics 上传服务的 Prometheus 指标
type Metrics struct {
	uploads        *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadBytes    *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	registerer     prometheus.Registerer
}

// New 创建并注册指标，reg 为空时使用默认注册器
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Settled uploads by provider and outcome (success, failure, error).",
		}, []string{"provider", "outcome"}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time from dispatch to settlement of an upload.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		uploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Payload bytes of successful uploads.",
		}, []string{"provider"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the API.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registerer: reg,
	}

	collectors := []prometheus.Collector{m.uploads, m.uploadDuration, m.uploadBytes, m.httpRequests, m.httpDuration}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// RegisterQueue 以 GaugeFunc 暴露队列状态，每次采集时实时读取
func (m *Metrics) RegisterQueue(q QueueSource) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending",
			Help:      "Uploads waiting for a free slot.",
		}, func() float64 { return float64(q.Pending()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_active",
			Help:      "Uploads currently in flight.",
		}, func() float64 { return float64(q.Active()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_limit",
			Help:      "Configured upload concurrency.",
		}, func() float64 { return float64(q.Limit()) }),
	}
	for _, g := range gauges {
		if err := m.registerer.Register(g); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register queue gauge: %w", err)
		}
	}
	return nil
}

// ObserveSettlement 记录一次上传结果，作为 queue.OnSettle 回调使用
func (m *Metrics) ObserveSettlement(s queue.Settlement) {
	if m == nil {
		return
	}
	provider := s.Provider
	if provider == "" {
		provider = "unknown"
	}
	m.uploads.WithLabelValues(provider, s.Outcome()).Inc()
	m.uploadDuration.WithLabelValues(provider).Observe(s.Duration.Seconds())
	if s.Succeeded() && s.Size > 0 {
		m.uploadBytes.WithLabelValues(provider).Add(float64(s.Size))
	}
}

// ObserveRequest 记录一次 HTTP 请求
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
