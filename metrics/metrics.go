// Package metrics exposes the simulator's live state as Prometheus
// gauges and counters, the same client_golang instrumentation style a
// ground-support dashboard would scrape a real spacecraft's telemetry
// bridge with. Every metric is a GaugeFunc/CounterFunc wired directly to
// a live component's accessor — there is no separate counter state to
// drift out of sync with the thing it reports on.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheusHen/OpenFSW/beacon"
	"github.com/TheusHen/OpenFSW/fdir"
	"github.com/TheusHen/OpenFSW/health"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/scheduler"
	"github.com/TheusHen/OpenFSW/subsystems/eps"
	"github.com/TheusHen/OpenFSW/telecommand"
	"github.com/TheusHen/OpenFSW/telemetry"
)

const namespace = "openfsw"

// Sources bundles the live components metrics are read from. Any field
// may be nil; metrics for a nil source are simply not registered.
type Sources struct {
	Scheduler   *scheduler.Scheduler
	Mode        *mode.Manager
	FDIR        *fdir.Manager
	Telemetry   *telemetry.Service
	Telecommand *telecommand.Dispatcher
	EPS         *eps.Service
	Health      *health.Monitor
	Beacon      *beacon.Service
}

// NewRegistry builds a prometheus.Registry with every metric Sources'
// non-nil fields support already registered.
func NewRegistry(src Sources) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	if src.Scheduler != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "scheduler", Name: "job_count", Help: "Number of registered scheduler jobs."},
			func() float64 { return float64(src.Scheduler.JobCount()) },
		))
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "scheduler", Name: "uptime_ms_total", Help: "Scheduler's internal elapsed-time clock, in milliseconds."},
			func() float64 { return float64(src.Scheduler.NowMs()) },
		))
	}

	if src.Mode != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "mode", Name: "current", Help: "Current operating mode, as its integer enum value."},
			func() float64 { return float64(src.Mode.Current()) },
		))
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "mode", Name: "time_in_mode_seconds", Help: "Time spent in the current mode."},
			func() float64 { return src.Mode.TimeInMode().Seconds() },
		))
	}

	if src.FDIR != nil {
		for i := 0; i < fdir.FaultCount; i++ {
			f := fdir.FaultType(i)
			reg.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Namespace:   namespace,
					Subsystem:   "fdir",
					Name:        "fault_occurrences_total",
					Help:        "Cumulative occurrence count per fault kind.",
					ConstLabels: prometheus.Labels{"fault": f.String()},
				},
				func(fault fdir.FaultType) func() float64 {
					return func() float64 { return float64(src.FDIR.FaultCountOf(fault)) }
				}(f),
			))
		}
	}

	if src.Telemetry != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "telemetry", Name: "queue_depth", Help: "Number of packets currently queued for downlink."},
			func() float64 { return float64(src.Telemetry.QueueCount()) },
		))
		reg.MustRegister(newTelemetryStatsCollector(src.Telemetry))
	}

	if src.Telecommand != nil {
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "telecommand", Name: "accepted_total", Help: "Commands accepted by the dispatcher."},
			func() float64 { return float64(src.Telecommand.AcceptedCount()) },
		))
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "telecommand", Name: "rejected_total", Help: "Commands rejected by the dispatcher."},
			func() float64 { return float64(src.Telecommand.RejectedCount()) },
		))
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "telecommand", Name: "executed_total", Help: "Commands executed by the dispatcher."},
			func() float64 { return float64(src.Telecommand.ExecutedCount()) },
		))
	}

	if src.EPS != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "eps", Name: "battery_soc_percent", Help: "Battery state of charge."},
			func() float64 { return float64(src.EPS.SOC()) },
		))
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "eps", Name: "solar_power_mw", Help: "Instantaneous solar array power."},
			func() float64 { return float64(src.EPS.SolarPower()) },
		))
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "eps", Name: "low_power_mode", Help: "1 if the EPS is in low-power mode, else 0."},
			func() float64 {
				if src.EPS.IsLowPower() {
					return 1
				}
				return 0
			},
		))
	}

	if src.Health != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "health", Name: "status", Help: "Overall health status (0=OK, 1=WARNING, 2=CRITICAL)."},
			func() float64 { return float64(src.Health.GetStatus()) },
		))
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "health", Name: "errors_total", Help: "Cumulative error count across all subsystems."},
			func() float64 { return float64(src.Health.GetData().ErrorCount) },
		))
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "health", Name: "warnings_total", Help: "Cumulative warning count across all subsystems."},
			func() float64 { return float64(src.Health.GetData().WarningCount) },
		))
	}

	if src.Beacon != nil {
		reg.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: "beacon", Name: "frames_sent_total", Help: "Beacon frames (health and emergency) transmitted."},
			func() float64 { return float64(src.Beacon.TxCount()) },
		))
	}

	return reg
}

// telemetryStatsCollector adapts telemetry.Service.Stats' four-value
// return into four separate metrics without four redundant locked calls
// per scrape.
type telemetryStatsCollector struct {
	tm          *telemetry.Service
	generated   *prometheus.Desc
	queued      *prometheus.Desc
	sent        *prometheus.Desc
	overflows   *prometheus.Desc
}

func newTelemetryStatsCollector(tm *telemetry.Service) *telemetryStatsCollector {
	return &telemetryStatsCollector{
		tm:        tm,
		generated: prometheus.NewDesc(namespace+"_telemetry_generated_total", "Packets generated.", nil, nil),
		queued:    prometheus.NewDesc(namespace+"_telemetry_queued_total", "Packets queued.", nil, nil),
		sent:      prometheus.NewDesc(namespace+"_telemetry_sent_total", "Packets sent.", nil, nil),
		overflows: prometheus.NewDesc(namespace+"_telemetry_overflows_total", "Queue overflow events.", nil, nil),
	}
}

func (c *telemetryStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.generated
	ch <- c.queued
	ch <- c.sent
	ch <- c.overflows
}

func (c *telemetryStatsCollector) Collect(ch chan<- prometheus.Metric) {
	generated, queued, sent, overflows := c.tm.Stats()
	ch <- prometheus.MustNewConstMetric(c.generated, prometheus.CounterValue, float64(generated))
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.CounterValue, float64(queued))
	ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(sent))
	ch <- prometheus.MustNewConstMetric(c.overflows, prometheus.CounterValue, float64(overflows))
}
