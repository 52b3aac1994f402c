// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package reservation implements admission control for a hosted session.
//
// A Ledger holds reservations for players who are expected to join. Each
// reserved member has an expiry timer; a member who has not arrived when it
// fires loses the slot unless the roster shows the player already present.
package reservation

import (
	"time"

	"gopkg.in/typ.v4/slices"

	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

// ChangeKind is what happened to a reservation.
type ChangeKind int

const (
	ChangeRegistered ChangeKind = iota
	ChangeMemberRemoved
	ChangeMemberCompleted
	ChangeMemberTimedOut
	ChangeCapacity
)

// Change is delivered to observers after every ledger mutation.
type Change struct {
	Kind     ChangeKind
	OwnerID  string
	PlayerID string
	Consumed int
}

type member struct {
	playerID  string
	completed bool
	timer     *scheduler.Timer
}

type entry struct {
	ownerID string
	members []*member
}

func (e *entry) snapshot() models.Reservation {
	res := models.Reservation{OwnerID: e.ownerID, Members: make([]models.ReservationMember, 0, len(e.members))}
	for _, m := range e.members {
		res.Members = append(res.Members, models.ReservationMember{PlayerID: m.playerID, Completed: m.completed})
	}
	return res
}

type Option func(*Ledger)

func WithHooks(hooks Hooks) Option {
	return func(l *Ledger) { l.hooks = hooks }
}

func WithRoster(roster Roster) Option {
	return func(l *Ledger) { l.roster = roster }
}

func WithBanChecker(bans BanChecker) Option {
	return func(l *Ledger) { l.bans = bans }
}

func WithMetrics(m metrics.MatchmakingMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// Ledger is the reservation table of one session. It must only be used on its loop.
type Ledger struct {
	scope   *envelope.Scope
	loop    scheduler.Scheduler
	metrics metrics.MatchmakingMetrics
	hooks   Hooks
	roster  Roster
	bans    BanChecker

	sessionID       string
	maxReservations int
	expiry          time.Duration
	admissionOpen   bool

	entries   []*entry
	observers []func(Change)
}

// NewLedger creates an open ledger. A zero expiry disables member timeouts.
func NewLedger(scope *envelope.Scope, loop scheduler.Scheduler, sessionID string, maxReservations int, expiry time.Duration, opts ...Option) *Ledger {
	l := &Ledger{
		scope:           scope.WithField("sessionID", sessionID),
		loop:            loop,
		hooks:           NoopHooks{},
		sessionID:       sessionID,
		maxReservations: maxReservations,
		expiry:          expiry,
		admissionOpen:   true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Observe registers fn to run after every change.
func (l *Ledger) Observe(fn func(Change)) {
	l.observers = append(l.observers, fn)
}

func (l *Ledger) notify(kind ChangeKind, ownerID, playerID string) {
	consumed := l.NumConsumedReservations()
	if l.metrics != nil {
		l.metrics.SetConsumedReservations(l.sessionID, consumed)
	}
	change := Change{Kind: kind, OwnerID: ownerID, PlayerID: playerID, Consumed: consumed}
	for _, fn := range l.observers {
		fn(change)
	}
}

func (l *Ledger) SetAdmissionOpen(open bool) {
	l.admissionOpen = open
}

func (l *Ledger) IsAdmissionOpen() bool {
	return l.admissionOpen
}

func (l *Ledger) MaxReservations() int {
	return l.maxReservations
}

// NumConsumedReservations is the number of reserved member slots.
func (l *Ledger) NumConsumedReservations() int {
	consumed := 0
	for _, e := range l.entries {
		consumed += len(e.members)
	}
	return consumed
}

// Reservations returns a snapshot of every live reservation.
func (l *Ledger) Reservations() []models.Reservation {
	out := make([]models.Reservation, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.snapshot())
	}
	return out
}

// ReservationFor returns the reservation holding playerID.
func (l *Ledger) ReservationFor(playerID string) (models.Reservation, bool) {
	e, _ := l.find(playerID)
	if e == nil {
		return models.Reservation{}, false
	}
	return e.snapshot(), true
}

// find locates the entry and member index holding playerID.
func (l *Ledger) find(playerID string) (*entry, int) {
	for _, e := range l.entries {
		idx := slices.IndexFunc(e.members, func(m *member) bool { return m.playerID == playerID })
		if idx >= 0 {
			return e, idx
		}
	}
	return nil, -1
}

func (l *Ledger) RegisterReservation(reservation models.Reservation) models.ReservationCompleteResult {
	result := l.register(reservation)
	if l.metrics != nil {
		l.metrics.AddReservationResult(result.String())
	}
	log := l.scope.Log.WithField("ownerID", reservation.OwnerID).WithField("result", result.String())
	if result == models.ReservationAccepted {
		log.Infof("reservation registered for %d members", len(reservation.Members))
	} else {
		log.Warn("reservation rejected")
	}
	return result
}

func (l *Ledger) register(reservation models.Reservation) models.ReservationCompleteResult {
	if !l.admissionOpen {
		return models.ReservationDenied
	}
	if err := reservation.Validate(); err != nil {
		l.scope.Log.Debugf("invalid reservation: %v", err)
		return models.ReservationInvalid
	}
	if l.NumConsumedReservations()+len(reservation.Members) > l.maxReservations {
		return models.ReservationLimitReached
	}
	if result := l.hooks.PreRegisterReservation(reservation.Copy()); result != models.ReservationAccepted {
		return result
	}

	var stale []string
	for _, incoming := range reservation.Members {
		if l.bans != nil && l.bans.IsPlayerBanned(incoming.PlayerID) {
			return models.ReservationDenied
		}
		e, idx := l.find(incoming.PlayerID)
		if e == nil {
			continue
		}
		if e.members[idx].completed {
			return models.ReservationDuplicate
		}
		stale = append(stale, incoming.PlayerID)
	}
	for _, playerID := range stale {
		l.scope.Log.WithField("playerID", playerID).Info("superseding stale pending reservation")
		l.removeMember(playerID)
	}

	e := &entry{ownerID: reservation.OwnerID}
	for _, incoming := range reservation.Members {
		m := &member{playerID: incoming.PlayerID}
		if l.expiry > 0 {
			playerID := incoming.PlayerID
			m.timer = l.loop.AfterFunc(l.expiry, func() { l.TimeoutReservation(playerID) })
		}
		e.members = append(e.members, m)
	}
	l.entries = append(l.entries, e)
	l.notify(ChangeRegistered, e.ownerID, "")
	return models.ReservationAccepted
}

// RemoveReservation releases the slot held by playerID.
func (l *Ledger) RemoveReservation(playerID string) bool {
	e := l.removeMember(playerID)
	if e == nil {
		l.scope.Log.WithField("playerID", playerID).Error("remove reservation: no reservation for player")
		return false
	}
	l.notify(ChangeMemberRemoved, e.ownerID, playerID)
	return true
}

// removeMember drops playerID and prunes its reservation when it becomes empty.
func (l *Ledger) removeMember(playerID string) *entry {
	e, idx := l.find(playerID)
	if e == nil {
		return nil
	}
	m := e.members[idx]
	m.timer.Stop()

	if e.ownerID == playerID {
		l.hooks.PreOwnerRemoved(e.snapshot(), playerID)
		e.ownerID = ""
	}
	e.members = append(e.members[:idx:idx], e.members[idx+1:]...)
	if len(e.members) == 0 {
		l.entries = slices.Filter(l.entries, func(other *entry) bool { return other != e })
	}
	return e
}

// CompleteReservation marks playerID as arrived. Calling it again has no further effect.
func (l *Ledger) CompleteReservation(playerID string) bool {
	e, idx := l.find(playerID)
	if e == nil {
		l.scope.Log.WithField("playerID", playerID).Warn("complete reservation: no reservation for player")
		return false
	}
	m := e.members[idx]
	if m.completed {
		return true
	}
	m.completed = true
	m.timer.Stop()
	m.timer = nil
	l.notify(ChangeMemberCompleted, e.ownerID, playerID)
	return true
}

// TimeoutReservation revokes a member that did not arrive in time.
// A player already present in the roster is marked completed instead.
func (l *Ledger) TimeoutReservation(playerID string) {
	e, idx := l.find(playerID)
	if e == nil {
		return
	}
	m := e.members[idx]
	if m.completed {
		return
	}
	log := l.scope.Log.WithField("playerID", playerID)
	if l.roster != nil && l.roster.IsPlayerInSession(playerID) {
		log.Info("reservation timed out but player is present, marking completed")
		m.completed = true
		m.timer = nil
		l.notify(ChangeMemberCompleted, e.ownerID, playerID)
		return
	}
	log.Info("reservation timed out")
	owner := e.ownerID
	l.removeMember(playerID)
	l.notify(ChangeMemberTimedOut, owner, playerID)
}

// CancelReservation drops every member of the reservation owned by ownerID.
func (l *Ledger) CancelReservation(ownerID string) bool {
	idx := slices.IndexFunc(l.entries, func(e *entry) bool { return e.ownerID == ownerID })
	if ownerID == "" || idx < 0 {
		l.scope.Log.WithField("ownerID", ownerID).Warn("cancel reservation: no reservation for owner")
		return false
	}
	for _, playerID := range l.entries[idx].snapshot().MemberIDs() {
		l.RemoveReservation(playerID)
	}
	return true
}

// ReconfigureMaxReservations changes capacity unless the reserved slots already exceed it.
func (l *Ledger) ReconfigureMaxReservations(maxReservations int) bool {
	if maxReservations <= 0 || l.NumConsumedReservations() > maxReservations {
		l.scope.Log.WithField("maxReservations", maxReservations).Warn("reconfigure rejected")
		return false
	}
	l.maxReservations = maxReservations
	l.notify(ChangeCapacity, "", "")
	return true
}

// Invalidate stops every expiry timer and forgets all reservations and observers.
func (l *Ledger) Invalidate() {
	for _, e := range l.entries {
		for _, m := range e.members {
			m.timer.Stop()
		}
	}
	l.entries = nil
	l.observers = nil
	if l.metrics != nil {
		l.metrics.SetConsumedReservations(l.sessionID, 0)
	}
}
