// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package party

import (
	"fmt"

	"github.com/elliotchance/pie/v2"

	"github.com/AccelByte/extend-session-matchmaker/pkg/config"
	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/identity"
	"github.com/AccelByte/extend-session-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/reservation"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

// HandoffFunc receives the outcome of a leader handoff.
type HandoffFunc func(outcome string, err error)

type LeaderOption func(*Leader)

// WithLedger stakes a reservation for the party on the ledger of a session the leader hosts.
func WithLedger(ledger *reservation.Ledger) LeaderOption {
	return func(l *Leader) { l.ledger = ledger }
}

func WithLeaderMetrics(m metrics.MatchmakingMetrics) LeaderOption {
	return func(l *Leader) { l.metrics = m }
}

// Leader is the party leader's half of the handoff. It must only be used on its loop.
type Leader struct {
	scope   *envelope.Scope
	loop    scheduler.Scheduler
	dir     directory.SessionDirectory
	friends identity.Friends
	party   Party
	travel  Travel
	cfg     *config.Config
	ledger  *reservation.Ledger
	metrics metrics.MatchmakingMetrics

	session      models.NamedSession
	members      []string
	pollTimer    *scheduler.Timer
	timeoutTimer *scheduler.Timer
	done         HandoffFunc
	inProgress   bool
	staked       bool
}

func NewLeader(scope *envelope.Scope, loop scheduler.Scheduler, dir directory.SessionDirectory, friends identity.Friends, party Party, travel Travel, cfg *config.Config, opts ...LeaderOption) *Leader {
	l := &Leader{
		scope:   scope.WithField("leaderID", dir.LocalPlayerID()),
		loop:    loop,
		dir:     dir,
		friends: friends,
		party:   party,
		travel:  travel,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Leader) InProgress() bool {
	return l.inProgress
}

// ConnectPartyToGameSession hands every party member the game session the leader now holds.
// done fires once the party was left and the leader traveled, or the handoff failed.
func (l *Leader) ConnectPartyToGameSession(done HandoffFunc) error {
	if l.inProgress {
		l.scope.Log.Warn("party handoff already in progress")
		return ErrHandoffInProgress
	}

	session, ok := l.dir.GetNamedSession(constants.GameSessionName)
	if !ok || (session.State != models.SessionStatePending && session.State != models.SessionStateInProgress) {
		return ErrNoGameSession
	}

	localID := l.dir.LocalPlayerID()
	var members []string
	for _, member := range l.party.Members() {
		if member.PlayerID == localID {
			continue
		}
		if member.State != models.PartyMemberLoggedIn {
			l.scope.Log.WithField("playerID", member.PlayerID).Info("party member not ready for handoff")
			return ErrMembersNotReady
		}
		members = append(members, member.PlayerID)
	}

	if session.IsHosting && l.ledger != nil && len(members) > 0 {
		result := l.ledger.RegisterReservation(models.NewReservation(localID, members...))
		if result != models.ReservationAccepted {
			return fmt.Errorf("%w: %s", ErrReservationRejected, result)
		}
		l.staked = true
	}

	l.inProgress = true
	l.session = session
	l.members = members
	l.done = done

	for _, memberID := range members {
		descriptor := l.describeSessionFor(memberID)
		l.scope.Log.WithField("playerID", memberID).Debugf("sending handoff %s", descriptor)
		l.party.SendHandoff(memberID, descriptor)
	}

	l.pollTimer = l.loop.Every(l.cfg.HandoffPollInterval, l.poll)
	l.timeoutTimer = l.loop.AfterFunc(l.cfg.HandoffTimeout, func() {
		l.scope.Log.WithField("pending", l.pendingMembers()).Warn("party handoff timed out, proceeding")
		l.proceed(constants.HandoffOutcomeTimeout)
	})
	return nil
}

// describeSessionFor picks how a member finds the session: friend lookup, then id lookup, then owner query.
func (l *Leader) describeSessionFor(memberID string) models.SpecificSessionQuery {
	caps := l.dir.Capabilities()
	localID := l.dir.LocalPlayerID()
	descriptor := models.SpecificSessionQuery{
		IsLAN:        l.session.Settings.IsLANMatch,
		UsesPresence: l.session.Settings.UsesPresence,
	}

	switch {
	case caps.SupportsFriendLookup && l.friends != nil && l.friends.IsFriend(localID, memberID, constants.DefaultFriendsList):
		descriptor.Type = models.SpecificSessionQueryFriendID
		descriptor.TargetID = localID
	case caps.SupportsIDLookup:
		descriptor.Type = models.SpecificSessionQuerySessionID
		descriptor.TargetID = l.session.SessionID
	default:
		descriptor.Type = models.SpecificSessionQuerySessionOwnerID
		descriptor.TargetID = l.session.OwnerID
	}
	return descriptor
}

func (l *Leader) pendingMembers() []string {
	return pie.Filter(l.members, func(id string) bool { return !l.party.HasAcknowledged(id) })
}

func (l *Leader) poll() {
	if len(l.pendingMembers()) == 0 {
		l.proceed(constants.HandoffOutcomeAllAcknowledged)
	}
}

// proceed leaves the party and travels to the game session.
func (l *Leader) proceed(outcome string) {
	if !l.inProgress {
		return
	}
	l.stopTimers()

	session := l.session
	l.party.Leave(func(ok bool) {
		if !ok {
			l.scope.Log.Warn("leaving party session failed")
		}

		var err error
		if session.IsHosting {
			err = l.travel.Listen(session)
		} else {
			err = l.travel.Connect(session.ToSearchResult())
		}
		if err != nil {
			l.scope.Log.Errorf("travel to game session: %v", err)
			outcome = constants.HandoffOutcomeFailed
		}
		l.finish(outcome, err)
	})
}

// Cancel abandons a handoff that has not left the party yet.
func (l *Leader) Cancel() bool {
	if !l.inProgress || (l.pollTimer == nil && l.timeoutTimer == nil) {
		return false
	}
	l.stopTimers()
	if l.staked {
		l.staked = false
		l.ledger.CancelReservation(l.dir.LocalPlayerID())
	}
	l.finish(constants.HandoffOutcomeFailed, ErrHandoffCanceled)
	return true
}

func (l *Leader) stopTimers() {
	l.pollTimer.Stop()
	l.timeoutTimer.Stop()
	l.pollTimer, l.timeoutTimer = nil, nil
}

func (l *Leader) finish(outcome string, err error) {
	l.inProgress = false
	l.staked = false
	done := l.done
	l.done = nil
	if l.metrics != nil {
		l.metrics.AddHandoffOutcome(outcome)
	}
	l.scope.Log.WithField("outcome", outcome).Info("party handoff finished")
	if done != nil {
		done(outcome, err)
	}
}
