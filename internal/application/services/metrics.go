package services

import "github.com/prometheus/client_golang/prometheus"

var (
	quoteFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_fetch_total",
			Help: "Quote reads by the source that answered them",
		},
		[]string{"source"},
	)

	quoteRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_refresh_total",
			Help: "Completed background refreshes by result",
		},
		[]string{"result"},
	)

	quoteRefreshSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_refresh_skipped_total",
			Help: "Refresh jobs not queued, by reason",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(quoteFetchTotal)
	prometheus.MustRegister(quoteRefreshTotal)
	prometheus.MustRegister(quoteRefreshSkipped)
}
