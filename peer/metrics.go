package peer

import (
	metricsUtil "github.com/Conflux-Chain/go-conflux-util/metrics"
	"github.com/rcrowley/go-metrics"
)

var peerMetrics Metrics

type Metrics struct{}

func (m *Metrics) Recv(command string) metrics.Meter {
	return metricsUtil.GetOrRegisterMeter("peer/recv/%v", command)
}

func (m *Metrics) Send(command string) metrics.Meter {
	return metricsUtil.GetOrRegisterMeter("peer/send/%v", command)
}

func (m *Metrics) BlockSize() metrics.Histogram {
	return metricsUtil.GetOrRegisterHistogram("peer/block/size")
}
