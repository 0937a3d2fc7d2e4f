// Package metrics holds the prometheus collectors of the online advisor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "index_advisor"

var (
	WhatIfCalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "whatif_calls_total",
		Help:      "Number of cost oracle calls issued by index benefit graphs",
	})

	IBGCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ibg_cache_hits_total",
		Help:      "Number of configuration costs answered by an index benefit graph without calling the oracle",
	})

	QueriesAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_analyzed_total",
		Help:      "Number of queries processed by the selector, by result",
	}, []string{"result"})

	Repartitions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "repartitions_total",
		Help:      "Number of work function groups discarded because of repartitioning",
	})

	HotSetOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hot_set_overflows_total",
		Help:      "Number of times required indexes exceeded the configured hot set size",
	})

	HotSetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hot_set_size",
		Help:      "Number of indexes currently monitored by the work function algorithm",
	})

	WorkFunctionStates = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "work_function_states",
		Help:      "Total number of states tracked over all partitions",
	})
)

// Handler returns the HTTP handler exposing all registered collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}
