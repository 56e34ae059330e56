package rpc

import (
	metricsUtil "github.com/Conflux-Chain/go-conflux-util/metrics"
	"github.com/rcrowley/go-metrics"
)

var rpcMetrics Metrics

type Metrics struct{}

func (m *Metrics) Call(method string) metrics.Timer {
	return metricsUtil.GetOrRegisterTimer("rpc/node/%v", method)
}

func (m *Metrics) Errors(method string) metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("rpc/node/%v/errors", method)
}

func (m *Metrics) ResolveHit() metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("rpc/resolver/hit")
}

func (m *Metrics) ResolveMiss() metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("rpc/resolver/miss")
}
