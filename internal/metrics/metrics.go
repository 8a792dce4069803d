// Package metrics exposes Prometheus counters for the scrape pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched tracks the number of pages successfully fetched.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_pages_fetched_total",
		Help: "The total number of pages successfully fetched.",
	})
	// FetchRetries tracks the number of fetch attempts that were retried.
	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_fetch_retries_total",
		Help: "The total number of retried fetch attempts.",
	})
	// FetchFailures tracks fetches that failed after exhausting retries.
	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_fetch_failures_total",
		Help: "The total number of fetches that failed after all retries.",
	})
	// VehiclesParsed tracks vehicle records produced by the detail parser.
	VehiclesParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_vehicles_parsed_total",
		Help: "The total number of vehicle records parsed from detail pages.",
	})
	// ValidationFailures tracks records dropped by the validator.
	ValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_validation_failures_total",
		Help: "The total number of vehicle records rejected by validation.",
	})
	// SnapshotWrites tracks snapshot files written because content changed.
	SnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_snapshot_writes_total",
		Help: "The total number of snapshot writes performed.",
	})
	// HeadlessRenders tracks pages escalated to the headless renderer.
	HeadlessRenders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_headless_renders_total",
		Help: "The total number of pages re-fetched through headless Chrome.",
	})
)
