package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vbs",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	metricRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vbs",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
	metricSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vbs",
		Name:      "submissions_total",
		Help:      "Evaluation submissions by task and outcome.",
	}, []string{"task", "outcome"})
	metricSubmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vbs",
		Name:      "submit_duration_seconds",
		Help:      "Evaluation server response time for submissions.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	metricSearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vbs",
		Name:      "search_results",
		Help:      "Results returned per search after filtering.",
		Buckets:   prometheus.LinearBuckets(0, 50, 10),
	})
	metricBoardsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vbs",
		Name:      "boards_pruned_total",
		Help:      "Boards removed by the idle board pruner.",
	})
)
