// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"
)

// LastPartyInfo is a snapshot of the party a player last created or joined, kept for reconnects.
type LastPartyInfo struct {
	Role            PartyRole       `json:"role"`
	HostID          string          `json:"host_id"`
	SessionID       string          `json:"session_id"`
	ExpectedPlayers int             `json:"expected_players"`
	Settings        SessionSettings `json:"settings"`
}

// IsValid reports whether the snapshot is usable for a reconnect.
func (i LastPartyInfo) IsValid() bool {
	return i.Role != PartyRoleNone && i.SessionID != "" && i.HostID != ""
}

// Copy returns a deep copy of the snapshot.
func (i LastPartyInfo) Copy() LastPartyInfo {
	copied, err := copystructure.Copy(i)
	if err != nil {
		logrus.Warn("failed copy last party info:", err)
		return i
	}
	return copied.(LastPartyInfo)
}

// PartyMemberState is how far a member is through joining or leaving the party.
type PartyMemberState int

const (
	PartyMemberLoggingIn PartyMemberState = iota
	PartyMemberLoggedIn
	PartyMemberLeaving
)

// PartyMember is one player of a party as seen by the party host.
type PartyMember struct {
	PlayerID string
	State    PartyMemberState
}
