// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package party moves a whole party from its party session into a game session.
//
// The leader tells every member how to find the game session, waits for their
// acknowledgement or a timeout, then leaves the party and travels. Each member
// leaves the party as soon as the descriptor arrives and homes in on the session
// with its own matchmaking policy.
package party

import (
	"errors"

	"gopkg.in/typ.v4/slices"

	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

var (
	ErrHandoffInProgress   = errors.New("party handoff already in progress")
	ErrNoGameSession       = errors.New("no game session to hand the party off to")
	ErrMembersNotReady     = errors.New("party members are still joining or leaving")
	ErrReservationRejected = errors.New("party reservation rejected")
	ErrNoPartyToReconnect  = errors.New("no party recorded to reconnect to")
	ErrHandoffCanceled     = errors.New("party handoff canceled")
)

// Leaver leaves the party session.
type Leaver interface {
	Leave(done func(ok bool))
}

// Party is the party session as seen by its leader.
type Party interface {
	Leaver
	Members() []models.PartyMember
	// SendHandoff delivers the descriptor of the game session to one member.
	SendHandoff(playerID string, descriptor models.SpecificSessionQuery)
	HasAcknowledged(playerID string) bool
}

// Travel moves the local player into the game session after the party was handed off.
type Travel interface {
	// Listen opens the endpoint of a session the local player hosts.
	Listen(session models.NamedSession) error
	// Connect joins the endpoint of a session hosted by someone else.
	Connect(target models.SearchResult) error
}

type localMember struct {
	models.PartyMember
	onHandoff func(descriptor models.SpecificSessionQuery)
}

// LocalParty is an in-process party. Members acknowledge a handoff when it is delivered to them.
type LocalParty struct {
	loop        scheduler.Scheduler
	leaderID    string
	members     []*localMember
	acked       map[string]bool
	leaderGone  bool
	handoffSent int
}

func NewLocalParty(loop scheduler.Scheduler, leaderID string) *LocalParty {
	p := &LocalParty{loop: loop, leaderID: leaderID, acked: make(map[string]bool)}
	p.members = append(p.members, &localMember{PartyMember: models.PartyMember{PlayerID: leaderID, State: models.PartyMemberLoggedIn}})
	return p
}

func (p *LocalParty) LeaderID() string {
	return p.leaderID
}

// Join adds a member. onHandoff may be nil for a member that never answers.
func (p *LocalParty) Join(playerID string, state models.PartyMemberState, onHandoff func(descriptor models.SpecificSessionQuery)) {
	if idx := p.indexOf(playerID); idx >= 0 {
		p.members[idx].State = state
		p.members[idx].onHandoff = onHandoff
		return
	}
	p.members = append(p.members, &localMember{
		PartyMember: models.PartyMember{PlayerID: playerID, State: state},
		onHandoff:   onHandoff,
	})
}

// SetState moves a member through login and leave.
func (p *LocalParty) SetState(playerID string, state models.PartyMemberState) {
	if idx := p.indexOf(playerID); idx >= 0 {
		p.members[idx].State = state
	}
}

func (p *LocalParty) indexOf(playerID string) int {
	return slices.IndexFunc(p.members, func(m *localMember) bool { return m.PlayerID == playerID })
}

func (p *LocalParty) Members() []models.PartyMember {
	members := make([]models.PartyMember, 0, len(p.members))
	for _, m := range p.members {
		members = append(members, m.PartyMember)
	}
	return members
}

func (p *LocalParty) SendHandoff(playerID string, descriptor models.SpecificSessionQuery) {
	p.handoffSent++
	p.loop.Post(func() {
		idx := p.indexOf(playerID)
		if idx < 0 || p.members[idx].onHandoff == nil {
			return
		}
		p.acked[playerID] = true
		p.members[idx].onHandoff(descriptor)
	})
}

// HandoffsSent counts descriptors sent by the leader.
func (p *LocalParty) HandoffsSent() int {
	return p.handoffSent
}

// HasAcknowledged stays true after the member has left the party.
func (p *LocalParty) HasAcknowledged(playerID string) bool {
	return p.acked[playerID]
}

// Leave removes the leader from the party.
func (p *LocalParty) Leave(done func(ok bool)) {
	p.leaderGone = true
	p.loop.Post(func() { done(true) })
}

// LeaderLeft reports whether the leader has left.
func (p *LocalParty) LeaderLeft() bool {
	return p.leaderGone
}

// Member returns the Leaver a member uses to leave this party.
func (p *LocalParty) Member(playerID string) Leaver {
	return memberLeaver{party: p, playerID: playerID}
}

type memberLeaver struct {
	party    *LocalParty
	playerID string
}

func (m memberLeaver) Leave(done func(ok bool)) {
	p := m.party
	idx := p.indexOf(m.playerID)
	if idx >= 0 {
		p.members = slices.Filter(p.members, func(member *localMember) bool { return member.PlayerID != m.playerID })
	}
	p.loop.Post(func() { done(idx >= 0) })
}
