package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inelnet",
			Name:      "commands_total",
			Help:      "Commands sent to the InelNET controller by action and result",
		},
		[]string{"action", "result"},
	)
	CommandRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inelnet",
		Name:      "command_retries_total",
		Help:      "Command attempts that had to be retried",
	})
	ControllerOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "inelnet",
		Name:      "controller_online",
		Help:      "1 when the InelNET controller answers the connectivity probe",
	})
	CoverPosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inelnet",
			Name:      "cover_position",
			Help:      "Estimated cover position, 100 is fully open",
		},
		[]string{"name"},
	)
	CoverMoving = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inelnet",
			Name:      "cover_moving",
			Help:      "1 while a cover movement is in flight",
		},
		[]string{"name"},
	)
	CoverRuntimeSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inelnet",
			Name:      "cover_runtime_seconds_total",
			Help:      "Accumulated motor runtime per cover",
		},
		[]string{"name"},
	)
	SolarExposure = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inelnet",
			Name:      "solar_exposure_percent",
			Help:      "Solar exposure per facade orientation",
		},
		[]string{"facade"},
	)
	EnergySavingsKWh = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inelnet",
		Name:      "energy_savings_kwh_total",
		Help:      "Estimated cooling energy saved by closed blinds",
	})
)
