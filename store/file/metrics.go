package file

import (
	metricsUtil "github.com/Conflux-Chain/go-conflux-util/metrics"
	"github.com/rcrowley/go-metrics"
)

type Metrics struct{}

func (m *Metrics) Write() metrics.Timer {
	return metricsUtil.GetOrRegisterTimer("store/file/write")
}

func (m *Metrics) NumTxs() metrics.Histogram {
	return metricsUtil.GetOrRegisterHistogram("store/file/num/txs")
}

func (m *Metrics) Hit() metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("store/file/hit")
}

func (m *Metrics) Miss() metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("store/file/miss")
}

func (m *Metrics) Pruned() metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("store/file/pruned")
}

func (m *Metrics) Entries() metrics.Gauge {
	return metricsUtil.GetOrRegisterGauge("store/file/entries")
}
