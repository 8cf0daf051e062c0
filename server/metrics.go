package server

import (
	"context"
	"errors"

	"github.com/aouyang1/go-marketmaster"
	"github.com/aouyang1/go-marketmaster/source"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK         = "ok"
	outcomeValidation = "validation"
	outcomeExternal   = "external"
	outcomeModel      = "model"
	outcomeLocked     = "locked"
	outcomeError      = "error"
)

// Metrics are the counters exposed on /metrics
type Metrics struct {
	StageRuns     *prometheus.CounterVec
	RemoteFetches *prometheus.CounterVec
	Sessions      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketmaster",
			Name:      "stage_runs_total",
			Help:      "Stage operations by stage and outcome.",
		}, []string{"stage", "outcome"}),
		RemoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketmaster",
			Name:      "remote_fetches_total",
			Help:      "Upstream quote fetches by outcome.",
		}, []string{"outcome"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketmaster",
			Name:      "sessions",
			Help:      "Open sessions.",
		}),
	}
	reg.MustRegister(m.StageRuns, m.RemoteFetches, m.Sessions)
	return m
}

// outcome classifies an error by its failure category
func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, marketmaster.ErrStageLocked):
		return outcomeLocked
	case errors.Is(err, marketmaster.ErrExternal):
		return outcomeExternal
	case errors.Is(err, marketmaster.ErrModel):
		return outcomeModel
	case errors.Is(err, marketmaster.ErrValidation):
		return outcomeValidation
	default:
		return outcomeError
	}
}

// countFetches records every upstream fetch outcome
func (m *Metrics) countFetches(next source.Fetcher) source.Fetcher {
	return source.FetcherFunc(func(ctx context.Context, req source.Request) (*source.Quote, error) {
		q, err := next.Fetch(ctx, req)
		label := outcomeOK
		switch {
		case errors.Is(err, source.ErrRateLimited):
			label = "rate_limited"
		case errors.Is(err, source.ErrNoData):
			label = "no_data"
		case err != nil:
			label = outcomeError
		}
		m.RemoteFetches.WithLabelValues(label).Inc()
		return q, err
	})
}
