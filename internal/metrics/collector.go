// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 指标收集器
// 覆盖辩论生命周期：阶段耗时、后端调用、降级事件与提示词规模。
type Collector struct {
	// 辩论指标
	debatesTotal    prometheus.Counter
	debateDuration  prometheus.Histogram
	stageDuration   *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec

	// 后端指标
	backendCalls        *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec
	promptTokens        *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器。
// reg 为 nil 时使用默认注册表；测试传入独立 Registry 避免重复注册。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.debatesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "debates_total",
		Help:      "Total number of completed debates.",
	})

	c.debateDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "debate_duration_seconds",
		Help:      "End-to-end debate duration.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	c.stageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Per-stage duration.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage"})

	c.fallbacksTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallbacks_total",
		Help:      "Fallback substitutions applied, by stage and kind.",
	}, []string{"stage", "kind"})

	c.backendCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_calls_total",
		Help:      "Backend completion calls, by provider, stage and outcome.",
	}, []string{"provider", "stage", "outcome"})

	c.backendCallDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_call_duration_seconds",
		Help:      "Backend completion call latency.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"provider", "stage"})

	c.promptTokens = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prompt_tokens",
		Help:      "Estimated prompt token count per backend call.",
		Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
	}, []string{"stage"})

	return c
}

// RecordDebate 记录一次完成的辩论。
func (c *Collector) RecordDebate(d time.Duration) {
	if c == nil {
		return
	}
	c.debatesTotal.Inc()
	c.debateDuration.Observe(d.Seconds())
}

// ObserveStage 记录阶段耗时。
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordFallback 记录一次降级替换。
func (c *Collector) RecordFallback(stage, kind string) {
	if c == nil {
		return
	}
	c.fallbacksTotal.WithLabelValues(stage, kind).Inc()
}

// RecordBackendCall 记录一次后端调用及其结局。
func (c *Collector) RecordBackendCall(provider, stage, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.backendCalls.WithLabelValues(provider, stage, outcome).Inc()
	c.backendCallDuration.WithLabelValues(provider, stage).Observe(d.Seconds())
}

// ObservePromptTokens 记录提示词 token 估算值。
func (c *Collector) ObservePromptTokens(stage string, tokens int) {
	if c == nil {
		return
	}
	c.promptTokens.WithLabelValues(stage).Observe(float64(tokens))
}
