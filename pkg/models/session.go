// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"fmt"

	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

// SessionSettings are the advertised settings of a session.
type SessionSettings struct {
	NumPublicConnections  int                    `json:"num_public_connections"  cbor:"num_public_connections"`
	NumPrivateConnections int                    `json:"num_private_connections" cbor:"num_private_connections"`
	ShouldAdvertise       bool                   `json:"should_advertise"        cbor:"should_advertise"`
	AllowJoinInProgress   bool                   `json:"allow_join_in_progress"  cbor:"allow_join_in_progress"`
	IsLANMatch            bool                   `json:"is_lan_match"            cbor:"is_lan_match"`
	UsesPresence          bool                   `json:"uses_presence"           cbor:"uses_presence"`
	AllowInvites          bool                   `json:"allow_invites"           cbor:"allow_invites"`
	AllowJoinViaPresence  bool                   `json:"allow_join_via_presence" cbor:"allow_join_via_presence"`
	BanList               []string               `json:"ban_list,omitempty"      cbor:"ban_list,omitempty"`
	Attributes            map[string]interface{} `json:"attributes,omitempty"    cbor:"attributes,omitempty"`
}

// Capacity is the total number of player slots.
func (s SessionSettings) Capacity() int {
	return s.NumPublicConnections + s.NumPrivateConnections
}

// Get returns the attribute stored at key.
func (s SessionSettings) Get(key string) (interface{}, bool) {
	if s.Attributes == nil {
		return nil, false
	}
	v, ok := s.Attributes[key]
	return v, ok
}

// GetString returns the string attribute stored at key, or "".
func (s SessionSettings) GetString(key string) string {
	v, _ := utils.GetMapValueAs[string](s.Attributes, key)
	return v
}

// GetNumber returns the numeric attribute stored at key.
func (s SessionSettings) GetNumber(key string) (float64, bool) {
	return utils.GetMapNumber(s.Attributes, key)
}

// Set stores an advertised attribute.
func (s *SessionSettings) Set(key string, value interface{}) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]interface{})
	}
	s.Attributes[key] = value
}

// IsBanned reports whether playerID is on the session ban list.
func (s SessionSettings) IsBanned(playerID string) bool {
	return utils.Contains(s.BanList, playerID)
}

// IsHidden reports whether the session must not appear in regular queries.
func (s SessionSettings) IsHidden() bool {
	if !s.ShouldAdvertise {
		return true
	}
	hidden, _ := utils.GetMapValueAs[bool](s.Attributes, constants.SettingHidden)
	return hidden
}

// Copy returns a deep copy of the settings.
func (s SessionSettings) Copy() SessionSettings {
	copied, err := copystructure.Copy(s)
	if err != nil {
		logrus.Warn("failed copy session settings:", err)
		return s
	}
	return copied.(SessionSettings)
}

// SessionRecord is the directory-side representation of a session.
type SessionRecord struct {
	ID          string          `json:"id"           cbor:"id"`
	OwnerID     string          `json:"owner_id"     cbor:"owner_id"`
	HostAddress string          `json:"host_address" cbor:"host_address"`
	Settings    SessionSettings `json:"settings"     cbor:"settings"`
	Players     []string        `json:"players"      cbor:"-"`
}

// OpenSlots is the number of slots not yet taken by registered players.
func (r SessionRecord) OpenSlots() int {
	open := r.Settings.Capacity() - len(r.Players)
	if open < 0 {
		return 0
	}
	return open
}

// ToSearchResult converts a record into the handle returned by queries.
func (r SessionRecord) ToSearchResult() SearchResult {
	return SearchResult{
		SessionID:        r.ID,
		OwnerID:          r.OwnerID,
		HostAddress:      r.HostAddress,
		Settings:         r.Settings.Copy(),
		OpenPublicSlots:  r.OpenSlots(),
		OpenPrivateSlots: 0,
	}
}

// SearchResult is an opaque handle to a discovered session plus its query metadata.
type SearchResult struct {
	SessionID        string          `json:"session_id"`
	OwnerID          string          `json:"owner_id"`
	HostAddress      string          `json:"host_address"`
	Settings         SessionSettings `json:"settings"`
	OpenPublicSlots  int             `json:"open_public_slots"`
	OpenPrivateSlots int             `json:"open_private_slots"`
	PingMs           int             `json:"ping_ms"`
}

// IsValid reports whether the handle identifies a concrete session.
func (r SearchResult) IsValid() bool {
	return r.SessionID != "" && r.OwnerID != ""
}

// RequiresReservation reports whether the host gates entry with a reservation beacon.
func (r SearchResult) RequiresReservation() bool {
	port, ok := r.Settings.GetNumber(constants.SettingBeaconPort)
	return ok && port > 0 && r.HostAddress != ""
}

func (r SearchResult) String() string {
	return fmt.Sprintf("%s(owner=%s)", r.SessionID, r.OwnerID)
}

// NamedSession is a session the local player currently holds under a session tag.
type NamedSession struct {
	Name              string
	SessionID         string
	OwnerID           string
	HostAddress       string
	IsHosting         bool
	State             SessionState
	Settings          SessionSettings
	RegisteredPlayers []string
}

// ToSearchResult describes the held session as a joinable handle.
func (s NamedSession) ToSearchResult() SearchResult {
	return SessionRecord{
		ID:          s.SessionID,
		OwnerID:     s.OwnerID,
		HostAddress: s.HostAddress,
		Settings:    s.Settings,
		Players:     s.RegisteredPlayers,
	}.ToSearchResult()
}
