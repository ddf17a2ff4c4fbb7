package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skywatch"

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Gateway exports gateway decisions. It implements service.GatewayObserver.
type Gateway struct {
	admitted    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	bookkeeping *prometheus.CounterVec
}

func NewGateway(reg prometheus.Registerer) (*Gateway, error) {
	g := &Gateway{
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "admitted_total",
			Help:      "Requests that passed authentication, quota and rate limit checks.",
		}, []string{"tier"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "rejected_total",
			Help:      "Requests rejected by the gateway, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Downstream handler latency for admitted requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier", "status_class"}),
		bookkeeping: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "bookkeeping_failures_total",
			Help:      "Usage record or quota increment writes that failed after a request.",
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{g.admitted, g.rejected, g.duration, g.bookkeeping} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register gateway metric: %w", err)
		}
	}
	return g, nil
}

func (g *Gateway) Admitted(tierName string) {
	g.admitted.WithLabelValues(tierName).Inc()
}

func (g *Gateway) Rejected(reason string) {
	g.rejected.WithLabelValues(reason).Inc()
}

func (g *Gateway) Completed(tierName string, status int, latency time.Duration) {
	g.duration.WithLabelValues(tierName, statusClass(status)).Observe(latency.Seconds())
}

func (g *Gateway) BookkeepingFailed(operation string) {
	g.bookkeeping.WithLabelValues(operation).Inc()
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
