package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docfold"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	documentDuration prom.Histogram
	documentResults  *prom.CounterVec
	nodes            *prom.CounterVec
	keepNodes        *prom.CounterVec
	buildDuration    prom.Histogram
	buildOutcome     *prom.CounterVec
	workers          prom.Gauge
	retries          *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		documentDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "document_compile_duration_seconds",
			Help:      "Duration of compiling a single document",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		documentResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Compiled documents by result",
		}, []string{"result"}),
		nodes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "compiled_nodes_total",
			Help:      "Compiled nodes by form (folded or partial)",
		}, []string{"form"}),
		keepNodes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "keep_nodes_total",
			Help:      "Keep nodes by kind",
		}, []string{"kind"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		workers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "build_workers",
			Help:      "Worker count of the last build",
		}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried operations after transient failures",
		}, []string{"operation"}),
	}
	reg.MustRegister(pr.documentDuration, pr.documentResults, pr.nodes, pr.keepNodes,
		pr.buildDuration, pr.buildOutcome, pr.workers, pr.retries)
	return pr
}

func (p *PrometheusRecorder) ObserveDocumentDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.documentDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncDocumentResult(result ResultLabel) {
	if p == nil {
		return
	}
	p.documentResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) AddNodes(c NodeCounts) {
	if p == nil {
		return
	}
	p.nodes.WithLabelValues("folded").Add(float64(c.Folded))
	p.nodes.WithLabelValues("partial").Add(float64(c.Partial))
	for kind, n := range c.Keep {
		p.keepNodes.WithLabelValues(kind).Add(float64(n))
	}
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetWorkers(n int) {
	if p == nil {
		return
	}
	p.workers.Set(float64(n))
}

func (p *PrometheusRecorder) IncRetry(operation string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(operation).Inc()
}
