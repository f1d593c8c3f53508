package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	profileBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soar_profile_builds_total",
			Help: "Total number of atmospheric profile builds by result.",
		},
		[]string{"result"},
	)

	profileBuildDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soar_profile_build_duration_seconds",
			Help:    "Duration of atmospheric profile builds, fetches included.",
			Buckets: prometheus.DefBuckets,
		},
	)

	profileCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soar_profile_cache_requests_total",
			Help: "Total number of profile cache lookups by result.",
		},
		[]string{"result"},
	)

	simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soar_simulations_total",
			Help: "Total number of trajectory simulations by final flight phase.",
		},
		[]string{"phase"},
	)

	simulationSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soar_simulation_steps",
			Help:    "Number of integration steps per simulation.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(profileBuildsTotal)
	prometheus.MustRegister(profileBuildDurationSeconds)
	prometheus.MustRegister(profileCacheRequestsTotal)
	prometheus.MustRegister(simulationsTotal)
	prometheus.MustRegister(simulationSteps)
}

// RecordProfileBuild records a profile build. On failure, kind is the error kind.
func RecordProfileBuild(duration time.Duration, kind string, ok bool) {
	result := "success"
	if !ok {
		result = kind
	}
	profileBuildsTotal.WithLabelValues(result).Inc()
	profileBuildDurationSeconds.Observe(duration.Seconds())
}

// RecordCacheLookup records a profile cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		profileCacheRequestsTotal.WithLabelValues("hit").Inc()
		return
	}
	profileCacheRequestsTotal.WithLabelValues("miss").Inc()
}

// RecordSimulation records a finished simulation.
func RecordSimulation(phase string, steps int) {
	simulationsTotal.WithLabelValues(phase).Inc()
	simulationSteps.Observe(float64(steps))
}

// WriteTextfile writes all the registered metrics in the text exposition format, for the node
// exporter textfile collector.
func WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, prometheus.DefaultGatherer)
}
