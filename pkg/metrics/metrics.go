// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MatchmakingMetrics interface {
	AddMatchmakingComplete(sessionTag, result, reason string)
	ObserveMatchmakingElapsed(sessionTag string, elapsed time.Duration)
	AddSearchPassComplete(result string, attempts int)
	AddReservationResult(result string)
	SetConsumedReservations(sessionID string, consumed int)
	AddHandoffOutcome(outcome string)
}

func NewMetrics(registry *prometheus.Registry) MatchmakingMetrics {
	return setupPrometheusMetrics(registry)
}
