// Package metrics exposes the engine's Prometheus collectors. Everything is
// registered once on first use, so callers never need a setup step.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level metrics (registered once)
var (
	metricsOnce sync.Once

	predictionsTotal       *prometheus.CounterVec
	predictionProbability  prometheus.Histogram
	debateRoundsRun        prometheus.Histogram
	specialistFailureTotal *prometheus.CounterVec
	overrideTotal          *prometheus.CounterVec
	predictionDuration     prometheus.Histogram
	weatherFetchTotal      *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		predictionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frostline_predictions_total",
				Help: "Total predictions issued, by confidence level and debate exit reason",
			},
			[]string{"confidence", "exit_reason"},
		)

		predictionProbability = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frostline_prediction_probability",
				Help:    "Distribution of final closure probabilities",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		)

		debateRoundsRun = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frostline_debate_rounds",
				Help:    "Debate rounds played before an exit",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
		)

		specialistFailureTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frostline_specialist_failures_total",
				Help: "Specialist analyses that degraded to an error stub, by role",
			},
			[]string{"role"},
		)

		overrideTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frostline_cold_overrides_total",
				Help: "Cold-safety floor applications, by floor",
			},
			[]string{"floor"},
		)

		predictionDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frostline_prediction_duration_seconds",
				Help:    "Wall time of a full prediction run",
				Buckets: prometheus.DefBuckets,
			},
		)

		weatherFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frostline_weather_fetch_total",
				Help: "Weather snapshot acquisitions, by source outcome",
			},
			[]string{"outcome"},
		)
	})
}

// Handler returns the HTTP handler for the Prometheus scrape endpoint.
func Handler() http.Handler {
	initMetrics()
	return promhttp.Handler()
}

// RecordPrediction records one issued prediction.
func RecordPrediction(confidence, exitReason string, probability float64) {
	initMetrics()
	if exitReason == "" {
		exitReason = "none"
	}
	predictionsTotal.WithLabelValues(confidence, exitReason).Inc()
	predictionProbability.Observe(probability)
}

// RecordDebateRounds records how many rounds a debate played.
func RecordDebateRounds(rounds int) {
	initMetrics()
	debateRoundsRun.Observe(float64(rounds))
}

// RecordSpecialistFailure records one specialist degrading to a stub.
func RecordSpecialistFailure(role string) {
	initMetrics()
	specialistFailureTotal.WithLabelValues(role).Inc()
}

// RecordOverride records a cold-safety floor application.
func RecordOverride(floor string) {
	initMetrics()
	overrideTotal.WithLabelValues(floor).Inc()
}

// RecordPredictionDuration records the wall time of a full run.
func RecordPredictionDuration(d time.Duration) {
	initMetrics()
	predictionDuration.Observe(d.Seconds())
}

// RecordWeatherFetch records a snapshot acquisition outcome
// ("hit", "miss", "error", "scenario").
func RecordWeatherFetch(outcome string) {
	initMetrics()
	weatherFetchTotal.WithLabelValues(outcome).Inc()
}
