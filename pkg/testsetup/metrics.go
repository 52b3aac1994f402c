// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"sync"
	"time"

	"github.com/AccelByte/extend-session-matchmaker/pkg/metrics"
)

type stubMetricsCollection struct{}

func (s stubMetricsCollection) AddMatchmakingComplete(sessionTag, result, reason string) {
}

func (s stubMetricsCollection) ObserveMatchmakingElapsed(sessionTag string, elapsed time.Duration) {
}

func (s stubMetricsCollection) AddSearchPassComplete(result string, attempts int) {
}

func (s stubMetricsCollection) AddReservationResult(result string) {
}

func (s stubMetricsCollection) SetConsumedReservations(sessionID string, consumed int) {
}

func (s stubMetricsCollection) AddHandoffOutcome(outcome string) {
}

func NewMetrics() metrics.MatchmakingMetrics {
	return stubMetricsCollection{}
}

// RecordingMetrics counts calls by label so tests can assert on what was recorded.
type RecordingMetrics struct {
	mu                   sync.Mutex
	MatchmakingComplete  map[string]int
	SearchPassComplete   map[string]int
	ReservationResults   map[string]int
	ConsumedReservations map[string]int
	HandoffOutcomes      map[string]int
}

func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		MatchmakingComplete:  map[string]int{},
		SearchPassComplete:   map[string]int{},
		ReservationResults:   map[string]int{},
		ConsumedReservations: map[string]int{},
		HandoffOutcomes:      map[string]int{},
	}
}

func (r *RecordingMetrics) AddMatchmakingComplete(sessionTag, result, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MatchmakingComplete[result]++
}

func (r *RecordingMetrics) ObserveMatchmakingElapsed(sessionTag string, elapsed time.Duration) {
}

func (r *RecordingMetrics) AddSearchPassComplete(result string, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SearchPassComplete[result]++
}

func (r *RecordingMetrics) AddReservationResult(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ReservationResults[result]++
}

func (r *RecordingMetrics) SetConsumedReservations(sessionID string, consumed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ConsumedReservations[sessionID] = consumed
}

func (r *RecordingMetrics) AddHandoffOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.HandoffOutcomes[outcome]++
}
