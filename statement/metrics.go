/*
metrics.go - Prometheus instrumentation for regeneration runs

PURPOSE:
  Counts regeneration passes and the artifact operations they produce.
  The engine works fine without metrics (Metrics field nil); the server
  wires them against its registry and serves them on /metrics.
*/
package statement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Runs      prometheus.Counter
	RunErrors prometheus.Counter
	Ops       *prometheus.CounterVec // labeled by op kind
}

// NewMetrics registers the engine metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "statement_regeneration_runs_total",
			Help: "Completed statement regeneration passes.",
		}),
		RunErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "statement_regeneration_errors_total",
			Help: "Regeneration passes aborted by an error.",
		}),
		Ops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statement_artifact_ops_total",
			Help: "Statement artifact operations applied, by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) observe(r Result) {
	m.Runs.Inc()
	m.Ops.WithLabelValues("create").Add(float64(r.Created))
	m.Ops.WithLabelValues("update").Add(float64(r.Updated))
	m.Ops.WithLabelValues("delete").Add(float64(r.Deleted))
}
