// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VisitorsRegistered counts stored visitor records by registration mode (single|batch).
	VisitorsRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcvisitor_visitors_registered_total",
		Help: "Visitor records stored, by registration mode.",
	}, []string{"mode"})

	// PhotoUploads counts object storage uploads by result (ok|failed).
	PhotoUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcvisitor_photo_uploads_total",
		Help: "Photo uploads to object storage, by result.",
	}, []string{"result"})

	// SubmitFailures counts batch submits rejected by the store.
	SubmitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcvisitor_submit_failures_total",
		Help: "Registration submits that failed at the record store.",
	})

	Checkouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcvisitor_checkouts_total",
		Help: "Visitors checked out.",
	})

	// Exports counts CSV exports by delivery target and result (ok|empty|failed).
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcvisitor_exports_total",
		Help: "CSV exports, by delivery target and result.",
	}, []string{"target", "result"})

	OpenForms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dcvisitor_open_registration_forms",
		Help: "Registration forms currently open.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcvisitor_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})
)
