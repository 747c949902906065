package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Updates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "doc_publisher",
		Name:      "updates_total",
		Help:      "Documents fetched and stored.",
	})
	Publishes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "doc_publisher",
		Name:      "publishes_total",
		Help:      "Documents copied from preview to live.",
	})
	FetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "doc_publisher",
		Name:      "fetch_failures_total",
		Help:      "Upstream fetches that did not return success.",
	})
	StoreFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "doc_publisher",
		Name:      "store_failures_total",
		Help:      "Object store writes or copies that failed.",
	})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(Updates, Publishes, FetchFailures, StoreFailures)
}

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Non-blocking when run in goroutine.
func Serve(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, nil)
}

// AddrFromEnv returns listen address from METRICS_ADDR or default ":9090".
func AddrFromEnv() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}
