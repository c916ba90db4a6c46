package metrics

import "github.com/prometheus/client_golang/prometheus"

const defaultService = "talentlink"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	authRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of registration attempts.",
		},
		[]string{"service", "result"},
	)

	authLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"service", "result"},
	)

	tokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of session tokens issued or verified.",
		},
		[]string{"service", "flow", "result"},
	)

	passwordResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "password_resets_total",
			Help: "Password reset requests and completions.",
		},
		[]string{"service", "stage", "result"},
	)

	wsTicketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_tickets_total",
			Help: "Websocket tickets issued and redeemed.",
		},
		[]string{"service", "op", "result"},
	)

	wsConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Live websocket connections in this process.",
		},
		[]string{"service"},
	)

	wsEventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_dropped_total",
			Help: "Websocket events that could not be handed to a live connection.",
		},
		[]string{"service", "type"},
	)

	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Messages accepted for persistence.",
		},
		[]string{"service", "result"},
	)
)

// Exported vectors are curried with the service label. They are usable
// before MustRegister, which re-curries them and registers the collectors.
var (
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	AuthRegistrationsTotal     *prometheus.CounterVec
	AuthLoginsTotal            *prometheus.CounterVec
	TokensIssuedTotal          *prometheus.CounterVec
	PasswordResetsTotal        *prometheus.CounterVec
	WSTicketsTotal             *prometheus.CounterVec
	WSConnections              *prometheus.GaugeVec
	WSEventsDroppedTotal       *prometheus.CounterVec
	MessagesSentTotal          *prometheus.CounterVec
)

func init() { curry(defaultService) }

func curry(serviceName string) {
	labels := prometheus.Labels{"service": serviceName}
	HTTPRequestsTotal = httpRequestsTotal.MustCurryWith(labels)
	HTTPRequestDurationSeconds = httpRequestDurationSeconds.MustCurryWith(labels).(*prometheus.HistogramVec)
	AuthRegistrationsTotal = authRegistrationsTotal.MustCurryWith(labels)
	AuthLoginsTotal = authLoginsTotal.MustCurryWith(labels)
	TokensIssuedTotal = tokensIssuedTotal.MustCurryWith(labels)
	PasswordResetsTotal = passwordResetsTotal.MustCurryWith(labels)
	WSTicketsTotal = wsTicketsTotal.MustCurryWith(labels)
	WSConnections = wsConnections.MustCurryWith(labels)
	WSEventsDroppedTotal = wsEventsDroppedTotal.MustCurryWith(labels)
	MessagesSentTotal = messagesSentTotal.MustCurryWith(labels)
}

func MustRegister(serviceName string) {
	curry(serviceName)

	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		authRegistrationsTotal,
		authLoginsTotal,
		tokensIssuedTotal,
		passwordResetsTotal,
		wsTicketsTotal,
		wsConnections,
		wsEventsDroppedTotal,
		messagesSentTotal,
	)
}
