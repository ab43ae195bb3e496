package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thetrains_feed_messages_total",
			Help: "Total messages received from the broker.",
		},
		[]string{"feed"},
	)

	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thetrains_parse_errors_total",
			Help: "Payloads dropped by the decoders.",
		},
		[]string{"feed", "reason"},
	)

	StoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thetrains_store_ops_total",
			Help: "Document store operations by outcome.",
		},
		[]string{"collection", "op", "status"},
	)

	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thetrains_broker_reconnects_total",
			Help: "Broker connections recovered after a transport fault.",
		},
	)

	ConnectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thetrains_broker_connection_state",
			Help: "Feed manager state (0=disconnected, 1=connecting, 2=connected, 3=subscribed, 4=recovering).",
		},
	)

	GeneratorStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thetrains_generator_stage_duration_seconds",
			Help:    "Generator pipeline stage latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	GraphNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thetrains_graph_nodes",
			Help: "Graph node count after each pipeline stage.",
		},
		[]string{"stage"},
	)

	SelectedBerths = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thetrains_selected_berths",
			Help: "Berths selected by the most recent layout.",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		MessagesTotal,
		ParseErrorsTotal,
		StoreOpsTotal,
		ReconnectsTotal,
		ConnectionState,
		GeneratorStageDuration,
		GraphNodes,
		SelectedBerths,
	)
}
