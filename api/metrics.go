package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// submissionsCounter counts proof submissions by terminal outcome, using
// the pipeline's stable kind strings plus "malformed_body" for requests
// rejected before parsing.
var submissionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "zkpresence_submissions_total",
	Help: "Number of proof submissions by outcome",
}, []string{"outcome"})

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
