// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package directory is the session directory the matchmaking state machines talk to.
//
// Every asynchronous operation reports through a completion callback that runs on
// the scheduler loop, never on the caller's stack.
package directory

import (
	"errors"

	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
)

// Capabilities describe which direct lookups the directory can serve.
type Capabilities struct {
	SupportsFriendLookup bool
	SupportsIDLookup     bool
}

// SessionDirectory creates, finds, joins and destroys named sessions for one local player.
type SessionDirectory interface {
	LocalPlayerID() string
	Capabilities() Capabilities

	CreateSession(name string, settings models.SessionSettings, done func(name string, ok bool))
	JoinSession(name string, target models.SearchResult, done func(name string, result models.JoinResult))
	DestroySession(name string, done func(name string, ok bool))
	UpdateSession(name string, settings models.SessionSettings, done func(ok bool))

	FindSessions(query models.SessionQuery, done func(ok bool, results []models.SearchResult))
	FindFriendSession(friendID string, done func(ok bool, results []models.SearchResult))
	FindSessionByID(sessionID string, done func(ok bool, results []models.SearchResult))
	// CancelFindSessions cancels the pending find. Its result callback is dropped.
	CancelFindSessions(done func(ok bool))

	GetSessionState(name string) models.SessionState
	GetSessionSettings(name string) (models.SessionSettings, bool)
	GetNamedSession(name string) (models.NamedSession, bool)
	RegisterPlayers(name string, playerIDs ...string) bool
	UnregisterPlayers(name string, playerIDs ...string) bool
	BanPlayer(name string, playerID string) bool
	IsPlayerBanned(name string, playerID string) bool
}
