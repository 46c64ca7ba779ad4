package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultFetched = "fetched"
	resultSkipped = "skipped"
	resultFailed  = "failed"
)

var registry = prometheus.NewRegistry()

var (
	tilesTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "tilespider",
		Name:      "tiles_total",
		Help:      "Processed tiles by result.",
	}, []string{"result"})

	fetchSeconds = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: "tilespider",
		Name:      "fetch_seconds",
		Help:      "Tile fetch latency including retries.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ServeMetrics 在 addr 上暴露 /metrics
func ServeMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server on %s stopped: %s", addr, err)
		}
	}()
	log.Infof("metrics listening on %s", addr)
	return srv
}
