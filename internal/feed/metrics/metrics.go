package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 指标通过 rest 服务的 /metrics 暴露
var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jester_feed_events_total",
		Help: "Classified transaction events by kind",
	}, []string{"kind"})

	RpcErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jester_feed_rpc_errors_total",
		Help: "Upstream RPC failures by operation",
	}, []string{"op"})

	DedupHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jester_feed_dedup_hits_total",
		Help: "Signatures dropped because they were already processed",
	})

	WsReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jester_feed_ws_reconnects_total",
		Help: "WebSocket reconnect attempts",
	})

	FetchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jester_feed_fetch_queue_depth",
		Help: "Signatures waiting for detail fetch",
	})
)
