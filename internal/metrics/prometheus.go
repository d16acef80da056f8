package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "legalsmart"

var (
	answersDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "answers_total"),
		"Assistant asks answered, by source.",
		[]string{"source"}, nil,
	)
	answerDurationDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "answer_duration_seconds"),
		"Time spent answering asks, by source.",
		[]string{"source"}, nil,
	)
	throttledDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "throttled_total"),
		"Asks rejected by the rate limiter.",
		nil, nil,
	)
	attemptsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "model_attempts_total"),
		"Model call attempts, by model and outcome.",
		[]string{"model", "outcome"}, nil,
	)
	tokensDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "tokens_total"),
		"Estimated prompt tokens (in) and reported completion tokens (out).",
		[]string{"direction"}, nil,
	)
	costDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "cost_usd_total"),
		"Estimated model spend in USD.",
		nil, nil,
	)
	activeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "active_asks"),
		"Asks currently in flight.",
		nil, nil,
	)
	uptimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "uptime_seconds"),
		"Seconds since the collector was created.",
		nil, nil,
	)
)

// promCollector exposes a Collector through the prometheus.Collector
// interface without duplicating its state.
type promCollector struct {
	c *Collector
}

var _ prometheus.Collector = (*promCollector)(nil)

// NewPrometheusCollector wraps c for registration with a prometheus
// registry.
func NewPrometheusCollector(c *Collector) prometheus.Collector {
	return &promCollector{c: c}
}

func (p *promCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- answersDesc
	ch <- answerDurationDesc
	ch <- throttledDesc
	ch <- attemptsDesc
	ch <- tokensDesc
	ch <- costDesc
	ch <- activeDesc
	ch <- uptimeDesc
}

func (p *promCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.c.Stats()

	answers := []struct {
		source  string
		count   int64
		latency int64
	}{
		{SourceLive, s.LiveAnswers, loadInt(&p.c.liveLatency)},
		{SourceCache, s.CacheAnswers, loadInt(&p.c.cacheLatency)},
		{SourceFallback, s.FallbackAnswers, loadInt(&p.c.fallbackLatency)},
	}
	for _, a := range answers {
		ch <- prometheus.MustNewConstMetric(answersDesc, prometheus.CounterValue, float64(a.count), a.source)
		ch <- prometheus.MustNewConstSummary(answerDurationDesc,
			uint64(a.count), time.Duration(a.latency).Seconds(), nil, a.source)
	}

	ch <- prometheus.MustNewConstMetric(throttledDesc, prometheus.CounterValue, float64(s.Throttled))
	for _, a := range s.Attempts {
		ch <- prometheus.MustNewConstMetric(attemptsDesc, prometheus.CounterValue, float64(a.Count), a.Model, a.Outcome)
	}
	ch <- prometheus.MustNewConstMetric(tokensDesc, prometheus.CounterValue, float64(s.TokensIn), "in")
	ch <- prometheus.MustNewConstMetric(tokensDesc, prometheus.CounterValue, float64(s.TokensOut), "out")
	ch <- prometheus.MustNewConstMetric(costDesc, prometheus.CounterValue, s.CostUSD)
	ch <- prometheus.MustNewConstMetric(activeDesc, prometheus.GaugeValue, float64(s.ActiveAsks))
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, time.Since(p.c.startTime).Seconds())
}

// Handler serves c, any extra collectors, and the Go runtime collectors in
// Prometheus text format from a private registry.
func Handler(c *Collector, extra ...prometheus.Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewPrometheusCollector(c),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, e := range extra {
		reg.MustRegister(e)
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
