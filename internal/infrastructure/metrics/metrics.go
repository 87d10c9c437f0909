// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FormSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_form_submissions_total",
			Help: "Form posts by form and outcome",
		},
		[]string{"form", "outcome"},
	)
	CampaignSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_campaign_sends_total",
			Help: "Campaign emails by delivery status",
		},
		[]string{"campaign_id", "status"},
	)
	ExperimentExposures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_experiment_exposures_total",
			Help: "New experiment assignments",
		},
		[]string{"experiment", "variant"},
	)
	ExperimentConversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_experiment_conversions_total",
			Help: "First conversions per variant",
		},
		[]string{"experiment", "variant"},
	)
	OutboxEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Outbox events by type and result",
		},
		[]string{"event_type", "result"},
	)
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders placed by initial status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		FormSubmissions,
		CampaignSends,
		ExperimentExposures,
		ExperimentConversions,
		OutboxEvents,
		OrdersPlaced,
	)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
