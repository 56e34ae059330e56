package dispatch

import (
	metricsUtil "github.com/Conflux-Chain/go-conflux-util/metrics"
	"github.com/rcrowley/go-metrics"
)

var dispatchMetrics Metrics

type Metrics struct{}

func (m *Metrics) Request(kind Kind) metrics.Timer {
	return metricsUtil.GetOrRegisterTimer("dispatch/request/%v", kind)
}

func (m *Metrics) Violation(command string) metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("dispatch/violation/%v", command)
}

func (m *Metrics) MempoolAdmitted() metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("dispatch/mempool/admitted")
}

func (m *Metrics) MempoolIgnored() metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("dispatch/mempool/ignored")
}

func (m *Metrics) NotifyDropped() metrics.Counter {
	return metricsUtil.GetOrRegisterCounter("dispatch/notify/dropped")
}

func (m *Metrics) QueueSize() metrics.Gauge {
	return metricsUtil.GetOrRegisterGauge("dispatch/notify/queue/size")
}
