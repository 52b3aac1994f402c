// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package party

import (
	"github.com/AccelByte/extend-session-matchmaker/pkg/beacon"
	"github.com/AccelByte/extend-session-matchmaker/pkg/config"
	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/matchmaking"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

type FollowerOption func(*Follower)

// WithManager routes follow policies through a manager so they replace any policy the player already runs.
func WithManager(manager *matchmaking.Manager) FollowerOption {
	return func(f *Follower) { f.manager = manager }
}

// WithPolicyOptions is applied to every policy the follower creates.
func WithPolicyOptions(opts ...matchmaking.Option) FollowerOption {
	return func(f *Follower) { f.policyOpts = append(f.policyOpts, opts...) }
}

// Follower is a party member's half of the handoff: it leaves the party and homes in on the leader's session.
type Follower struct {
	scope      *envelope.Scope
	loop       scheduler.Scheduler
	dir        directory.SessionDirectory
	dialer     beacon.Dialer
	cfg        *config.Config
	manager    *matchmaking.Manager
	policyOpts []matchmaking.Option
}

func NewFollower(scope *envelope.Scope, loop scheduler.Scheduler, dir directory.SessionDirectory, dialer beacon.Dialer, cfg *config.Config, opts ...FollowerOption) *Follower {
	f := &Follower{
		scope:  scope.WithField("playerID", dir.LocalPlayerID()),
		loop:   loop,
		dir:    dir,
		dialer: dialer,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FollowParty leaves party and starts a policy that joins the session descriptor points at.
// The leader already holds a reservation for this player, so the policy neither reserves nor hosts.
func (f *Follower) FollowParty(party Leaver, descriptor models.SpecificSessionQuery, done matchmaking.CompleteFunc) (*matchmaking.Policy, error) {
	if party != nil {
		party.Leave(func(ok bool) {
			if !ok {
				f.scope.Log.Warn("leaving party session failed")
			}
		})
	}

	if !descriptor.IsValid() {
		f.scope.Log.WithField("descriptor", descriptor.String()).Error("invalid handoff descriptor")
		if done != nil {
			done(constants.GameSessionName, models.CompleteResultFailure, models.FailureReasonInvalidParams)
		}
		return nil, models.ValidationErrorSpecificSessionTarget
	}

	params := f.followParams(descriptor)
	policy := matchmaking.New(f.scope, f.loop, f.dir, f.dialer, f.cfg, f.policyOpts...)
	if done != nil {
		policy.OnComplete(done)
	}

	var startErr error
	start := func(p *matchmaking.Policy) {
		flags := models.MatchmakingFlags{NoReservation: true, NoHostFallback: true}
		startErr = p.StartMatchmaking(constants.GameSessionName, params, flags, models.MatchmakingModeDefault, f.cfg.HandoffStartDelay, nil)
	}

	if f.manager == nil {
		start(policy)
		return policy, startErr
	}
	if err := f.manager.Start(f.dir.LocalPlayerID(), policy, start); err != nil {
		return nil, err
	}
	return policy, startErr
}

func (f *Follower) followParams(descriptor models.SpecificSessionQuery) models.MatchmakingParams {
	return models.MatchmakingParams{
		ControllerID:      f.dir.LocalPlayerID(),
		SkipEloChecks:     true,
		MaxSearchAttempts: f.cfg.HandoffRetryCount,
		SearchRetryDelay:  f.cfg.HandoffRetryDelay,
		MaxResults:        f.cfg.MaxSearchResults,
		IsLAN:             descriptor.IsLAN,
		UsesPresence:      descriptor.UsesPresence,
		SpecificSession:   descriptor,
	}
}
