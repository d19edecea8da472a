package comms

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the portal-desk collectors.
	Registry = prometheus.NewRegistry()

	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal_desk",
			Subsystem: "comms",
			Name:      "polls_total",
			Help:      "Backend fetches made by the communication view.",
		},
		[]string{"loop", "result"},
	)

	commitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal_desk",
			Subsystem: "comms",
			Name:      "commits_total",
			Help:      "Local state replacements after a fetch.",
		},
		[]string{"loop"},
	)

	staleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal_desk",
			Subsystem: "comms",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because the selection changed while in flight.",
		},
		[]string{"op"},
	)

	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal_desk",
			Subsystem: "comms",
			Name:      "sends_total",
			Help:      "Outbound messages sent by operators.",
		},
		[]string{"result"},
	)

	unreadGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "portal_desk",
			Subsystem: "comms",
			Name:      "unread_messages",
			Help:      "Total unread messages across conversations.",
		},
	)

	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "portal_desk",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected UI stream clients.",
		},
	)
)

func init() {
	Registry.MustRegister(
		pollsTotal,
		commitsTotal,
		staleResponses,
		sendsTotal,
		unreadGauge,
		streamClients,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// MetricsHandler exposes Registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
