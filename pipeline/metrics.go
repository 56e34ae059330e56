package pipeline

import (
	metricsUtil "github.com/Conflux-Chain/go-conflux-util/metrics"
	"github.com/rcrowley/go-metrics"
)

var pipelineMetrics Metrics

type Metrics struct{}

func (m *Metrics) Run() metrics.Timer {
	return metricsUtil.GetOrRegisterTimer("pipeline/run")
}

func (m *Metrics) NumTxs() metrics.Histogram {
	return metricsUtil.GetOrRegisterHistogram("pipeline/run/txs")
}
