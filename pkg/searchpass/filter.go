// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package searchpass

import (
	"github.com/elliotchance/pie/v2"

	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/mathutil"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

// buildQuery expresses params as a directory query for the broad strategy.
func buildQuery(sessionTag string, params models.MatchmakingParams, maxResults int, regular bool) models.SessionQuery {
	predicates := []models.QueryPredicate{
		{Key: constants.SettingSessionType, Value: sessionTag, Op: models.QueryOpEquals},
	}
	if !params.SkipEloChecks {
		predicates = append(predicates,
			models.QueryPredicate{Key: constants.SettingElo, Value: params.Elo - params.EloRange, Op: models.QueryOpGreaterThanEquals},
			models.QueryPredicate{Key: constants.SettingElo, Value: params.Elo + params.EloRange, Op: models.QueryOpLessThanEquals},
		)
	}
	predicates = append(predicates, labelPredicates(params)...)
	predicates = append(predicates, params.SearchPredicates...)

	if params.MaxResults > 0 {
		maxResults = params.MaxResults
	}
	return models.SessionQuery{
		MaxResults:         maxResults,
		IsLAN:              params.IsLAN,
		UsesPresence:       params.UsesPresence,
		ExcludeHidden:      regular,
		Predicates:         predicates,
		ExcludedSessionIDs: params.IgnoreSessionIDs,
		BannedPlayers:      params.ReservationMembers(),
	}
}

func labelPredicates(params models.MatchmakingParams) []models.QueryPredicate {
	var predicates []models.QueryPredicate
	labels := []struct{ key, value string }{
		{constants.SettingPlaylist, params.Playlist},
		{constants.SettingMapName, params.MapName},
		{constants.SettingGameMode, params.GameMode},
	}
	for _, label := range labels {
		if label.value != "" {
			predicates = append(predicates, models.QueryPredicate{Key: label.key, Value: label.value, Op: models.QueryOpEquals})
		}
	}
	return predicates
}

// candidateFilter re-checks on the client every predicate a strategy may not have applied.
type candidateFilter struct {
	localPlayerID string
	sessionTag    string
	params        models.MatchmakingParams
	regular       bool
}

func (f candidateFilter) apply(results []models.SearchResult) []models.SearchResult {
	filtered := pie.Filter(results, f.accept)
	if f.params.MaxResults > 0 && len(filtered) > f.params.MaxResults {
		filtered = filtered[:f.params.MaxResults]
	}
	return filtered
}

func (f candidateFilter) accept(result models.SearchResult) bool {
	settings := result.Settings
	params := f.params

	if !result.IsValid() || result.OwnerID == f.localPlayerID {
		return false
	}
	if settings.GetString(constants.SettingSessionType) != f.sessionTag {
		return false
	}
	if utils.Contains(params.IgnoreSessionIDs, result.SessionID) {
		return false
	}
	if f.regular && settings.IsHidden() {
		return false
	}
	if settings.IsLANMatch != params.IsLAN || (params.UsesPresence && !settings.UsesPresence) {
		return false
	}

	members := params.ReservationMembers()
	if result.OpenPublicSlots+result.OpenPrivateSlots < mathutil.Max(params.MinSlotsRequired, len(members)) {
		return false
	}
	for _, label := range labelPredicates(params) {
		if !label.Matches(settings.Attributes) {
			return false
		}
	}
	if !params.SkipEloChecks {
		elo, ok := settings.GetNumber(constants.SettingElo)
		if !ok || mathutil.Abs(elo-float64(params.Elo)) > float64(params.EloRange) {
			return false
		}
	}
	if pie.Any(members, settings.IsBanned) {
		return false
	}
	for _, predicate := range params.SearchPredicates {
		if !predicate.Matches(settings.Attributes) {
			return false
		}
	}
	return true
}
