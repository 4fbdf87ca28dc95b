package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battleground_tickets_total",
			Help: "Matchmaking tickets handled",
		},
		[]string{"result"}, // slot|allocated|queued|cancelled|failure
	)

	TicketDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "battleground_ticket_duration_seconds",
			Help:    "Duration of ticket processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	Matches = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "battleground_matches",
			Help: "Live matches by status",
		},
		[]string{"status"},
	)

	Participants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "battleground_participants",
			Help: "Participants in the rosters of live matches",
		},
	)

	MatchOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battleground_match_outcomes_total",
			Help: "Finished matches by winner",
		},
		[]string{"winner"}, // alliance|horde|none
	)

	MatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "battleground_match_duration_seconds",
			Help:    "Elapsed match time at the end of a match",
			Buckets: []float64{60, 300, 600, 900, 1200, 1800, 2700, 3600},
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "battleground_tick_duration_seconds",
			Help:    "Time spent ticking every live match once",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(TicketsTotal)
	prometheus.MustRegister(TicketDuration)
	prometheus.MustRegister(Matches)
	prometheus.MustRegister(Participants)
	prometheus.MustRegister(MatchOutcomes)
	prometheus.MustRegister(MatchDuration)
	prometheus.MustRegister(TickDuration)
}

func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
