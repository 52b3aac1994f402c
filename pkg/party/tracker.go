// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package party

import (
	"github.com/AccelByte/extend-session-matchmaker/pkg/config"
	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/matchmaking"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
)

// Tracker remembers the last party the local player belonged to so it can be rebuilt after a disconnect.
type Tracker struct {
	scope *envelope.Scope
	dir   directory.SessionDirectory
	cfg   *config.Config
	last  models.LastPartyInfo
}

func NewTracker(scope *envelope.Scope, dir directory.SessionDirectory, cfg *config.Config) *Tracker {
	return &Tracker{
		scope: scope.WithField("playerID", dir.LocalPlayerID()),
		dir:   dir,
		cfg:   cfg,
	}
}

func (t *Tracker) Record(info models.LastPartyInfo) {
	t.last = info.Copy()
}

// RecordParty snapshots the party session the local player currently holds.
func (t *Tracker) RecordParty(role models.PartyRole, expectedPlayers int) bool {
	session, ok := t.dir.GetNamedSession(constants.PartySessionName)
	if !ok || session.SessionID == "" {
		t.scope.Log.Debug("no party session to record")
		return false
	}
	t.Record(models.LastPartyInfo{
		Role:            role,
		HostID:          session.OwnerID,
		SessionID:       session.SessionID,
		ExpectedPlayers: expectedPlayers,
		Settings:        session.Settings,
	})
	return true
}

// Last returns a copy of the recorded party.
func (t *Tracker) Last() (models.LastPartyInfo, bool) {
	if !t.last.IsValid() {
		return models.LastPartyInfo{}, false
	}
	return t.last.Copy(), true
}

func (t *Tracker) Clear() {
	t.last = models.LastPartyInfo{}
}

// Reconnect rebuilds the recorded party with policy. A former leader recreates the party session
// from its recorded settings, a former member looks the party session up by id.
func (t *Tracker) Reconnect(manager *matchmaking.Manager, policy *matchmaking.Policy, done matchmaking.CompleteFunc) error {
	last, ok := t.Last()
	if !ok {
		return ErrNoPartyToReconnect
	}

	role := last.Role
	policy.OnComplete(func(tag string, result models.CompleteResult, reason models.FailureReason) {
		if result.IsSuccess() {
			t.RecordParty(role, last.ExpectedPlayers)
		} else {
			t.scope.Log.WithField("result", result.String()).Warn("party reconnect did not complete")
		}
		if done != nil {
			done(tag, result, reason)
		}
	})

	var start func(p *matchmaking.Policy)
	localID := t.dir.LocalPlayerID()
	switch role {
	case models.PartyRoleLeader:
		settings := last.Settings.Copy()
		params := models.MatchmakingParams{
			ControllerID:      localID,
			MaxSearchAttempts: 1,
			HostParams: models.HostParams{
				MaxPlayers:       last.ExpectedPlayers,
				SettingsOverride: &settings,
			},
		}
		start = func(p *matchmaking.Policy) {
			err := p.StartMatchmaking(constants.PartySessionName, params, models.MatchmakingFlags{}, models.MatchmakingModeCreateOnly, 0, nil)
			if err != nil {
				t.scope.Log.Errorf("recreate party session: %v", err)
			}
		}
	default:
		params := models.MatchmakingParams{
			ControllerID:      localID,
			SkipEloChecks:     true,
			MaxSearchAttempts: t.cfg.HandoffRetryCount,
			SearchRetryDelay:  t.cfg.HandoffRetryDelay,
			MaxResults:        t.cfg.MaxSearchResults,
			SpecificSession: models.SpecificSessionQuery{
				Type:     models.SpecificSessionQuerySessionID,
				TargetID: last.SessionID,
			},
		}
		flags := models.MatchmakingFlags{NoReservation: true, NoHostFallback: true}
		start = func(p *matchmaking.Policy) {
			err := p.StartMatchmaking(constants.PartySessionName, params, flags, models.MatchmakingModeDefault, 0, nil)
			if err != nil {
				t.scope.Log.Errorf("rejoin party session: %v", err)
			}
		}
	}

	t.scope.Log.WithField("role", role.String()).WithField("sessionID", last.SessionID).Info("reconnecting to last party")
	if manager == nil {
		start(policy)
		return nil
	}
	return manager.Start(localID, policy, start)
}
