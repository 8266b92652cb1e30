package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PacketsIn counts raw packets entering the dispatcher, by peer.
	PacketsIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlmed",
			Name:      "packets_in_total",
			Help:      "Total number of packets handed to the dispatcher",
		},
		[]string{"peer"},
	)

	// PacketsDropped counts packets the dispatcher refused to forward.
	PacketsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlmed",
			Name:      "packets_dropped_total",
			Help:      "Total number of packets dropped by the dispatcher",
		},
		[]string{"reason"},
	)

	// FramesClassified counts classified WLAN frames by family.
	FramesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlmed",
			Name:      "frames_classified_total",
			Help:      "Total number of WLAN frames classified, by frame family",
		},
		[]string{"family"},
	)

	// ScansStarted counts accepted scan requests by execution mode.
	ScansStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlmed",
			Name:      "scans_started_total",
			Help:      "Total number of scans started, by hardware/software mode",
		},
		[]string{"mode"},
	)

	// ScansEnded counts scan terminations by result code.
	ScansEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlmed",
			Name:      "scans_ended_total",
			Help:      "Total number of ScanEnd emissions, by result code",
		},
		[]string{"code"},
	)

	// BssDropped counts discovered networks that were not recorded. The
	// "capacity" reason makes the bounded-memory truncation observable.
	BssDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlmed",
			Name:      "bss_dropped_total",
			Help:      "Total number of beacon/probe-response records dropped",
		},
		[]string{"reason"},
	)

	// ProbeRequestsSent counts probe requests transmitted during active scans.
	ProbeRequestsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mlmed",
			Name:      "probe_requests_sent_total",
			Help:      "Total number of probe requests transmitted",
		},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Idempotent; safe to call from every bootstrap path.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(PacketsIn)
		prometheus.DefaultRegisterer.Register(PacketsDropped)
		prometheus.DefaultRegisterer.Register(FramesClassified)
		prometheus.DefaultRegisterer.Register(ScansStarted)
		prometheus.DefaultRegisterer.Register(ScansEnded)
		prometheus.DefaultRegisterer.Register(BssDropped)
		prometheus.DefaultRegisterer.Register(ProbeRequestsSent)
	})
}
