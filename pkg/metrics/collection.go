// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	matchmakingComplete  prometheus.CounterVec
	matchmakingElapsed   prometheus.HistogramVec
	searchPassComplete   prometheus.CounterVec
	reservationResults   prometheus.CounterVec
	consumedReservations prometheus.GaugeVec
	handoffOutcomes      prometheus.CounterVec
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	matchmakingComplete := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_session_mm_matchmaking_complete_total",
			Help: "Number of matchmaking attempts by terminal result",
		}, []string{"session_tag", "result", "reason"})

	//nolint:promlinter
	matchmakingElapsed := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ab_session_mm_matchmaking_elapsed_seconds",
			Help:    "A histogram of time from matchmaking start to a terminal result",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"session_tag"})

	searchPassComplete := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_session_mm_search_pass_complete_total",
			Help: "Number of search passes by result and attempts used",
		}, []string{"result", "attempts"})

	reservationResults := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_session_mm_reservation_results_total",
			Help: "Number of reservation registrations by result",
		}, []string{"result"})

	consumedReservations := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ab_session_mm_consumed_reservations",
			Help: "Reserved slots held by a reservation ledger",
		}, []string{"session_id"})

	handoffOutcomes := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ab_session_mm_party_handoff_total",
			Help: "Number of party handoffs by outcome",
		}, []string{"outcome"})

	return prometheusMetrics{
		matchmakingComplete:  *matchmakingComplete,
		matchmakingElapsed:   *matchmakingElapsed,
		searchPassComplete:   *searchPassComplete,
		reservationResults:   *reservationResults,
		consumedReservations: *consumedReservations,
		handoffOutcomes:      *handoffOutcomes,
	}
}

func (metrics prometheusMetrics) AddMatchmakingComplete(sessionTag, result, reason string) {
	metrics.matchmakingComplete.With(prometheus.Labels{"session_tag": sessionTag, "result": result, "reason": reason}).Inc()
}

func (metrics prometheusMetrics) ObserveMatchmakingElapsed(sessionTag string, elapsed time.Duration) {
	metrics.matchmakingElapsed.With(prometheus.Labels{"session_tag": sessionTag}).Observe(elapsed.Seconds())
}

func (metrics prometheusMetrics) AddSearchPassComplete(result string, attempts int) {
	metrics.searchPassComplete.With(prometheus.Labels{"result": result, "attempts": strconv.Itoa(attempts)}).Inc()
}

func (metrics prometheusMetrics) AddReservationResult(result string) {
	metrics.reservationResults.With(prometheus.Labels{"result": result}).Inc()
}

func (metrics prometheusMetrics) SetConsumedReservations(sessionID string, consumed int) {
	metrics.consumedReservations.With(prometheus.Labels{"session_id": sessionID}).Set(float64(consumed))
}

func (metrics prometheusMetrics) AddHandoffOutcome(outcome string) {
	metrics.handoffOutcomes.With(prometheus.Labels{"outcome": outcome}).Inc()
}
