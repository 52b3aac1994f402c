// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"fmt"
	"time"

	validator "github.com/AccelByte/justice-input-validation-go"
)

// SpecificSessionQuery homes a search in on one concrete session instead of querying broadly.
// It doubles as the descriptor a party leader sends to its members during a handoff.
type SpecificSessionQuery struct {
	Type         SpecificSessionQueryType `json:"type"`
	TargetID     string                   `json:"target_id"`
	IsLAN        bool                     `json:"is_lan"`
	UsesPresence bool                     `json:"uses_presence"`
}

// IsValid reports whether the query names a strategy and a target.
func (q SpecificSessionQuery) IsValid() bool {
	return q.Type != SpecificSessionQueryUnspecified && q.TargetID != ""
}

// IsSpecified reports whether the query selects something other than a broad search.
func (q SpecificSessionQuery) IsSpecified() bool {
	return q.Type != SpecificSessionQueryUnspecified
}

func (q SpecificSessionQuery) String() string {
	return fmt.Sprintf("%s:%s", q.Type, q.TargetID)
}

// MatchmakingFlags alter how a policy treats candidates.
type MatchmakingFlags struct {
	// NoReservation joins candidates directly even when they run a reservation beacon.
	NoReservation bool
	// NoHostFallback ends with NoResults instead of hosting when searching is exhausted.
	NoHostFallback bool
}

// HostParams describe a session to create.
type HostParams struct {
	DisplayName         string                 `json:"display_name"`
	Playlist            string                 `json:"playlist"`
	MapName             string                 `json:"map_name"`
	GameMode            string                 `json:"game_mode"`
	MaxPlayers          int                    `json:"max_players"            valid:"range(1|1000)"`
	Elo                 int                    `json:"elo"                    valid:"range(0|100000)"`
	ShouldAdvertise     bool                   `json:"should_advertise"`
	Hidden              bool                   `json:"hidden"`
	IsLAN               bool                   `json:"is_lan"`
	UsesPresence        bool                   `json:"uses_presence"`
	AllowInvites        bool                   `json:"allow_invites"`
	AllowJoinInProgress bool                   `json:"allow_join_in_progress"`
	BanList             []string               `json:"ban_list"`
	ExtraSettings       map[string]interface{} `json:"extra_settings"`
	// BeaconPort overrides the configured beacon port; zero disables reservations for the session.
	BeaconPort *int `json:"beacon_port,omitempty"`
	// SettingsOverride recreates a previous session verbatim.
	SettingsOverride *SessionSettings `json:"settings_override,omitempty"`
}

func (h HostParams) Validate() error {
	if _, err := validator.ValidateStruct(h); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParams, err.Error())
	}
	if h.SettingsOverride != nil {
		if h.SettingsOverride.Capacity() <= 0 {
			return ValidationErrorHostCapacity
		}
		return nil
	}
	if h.MaxPlayers <= 0 {
		return ValidationErrorHostCapacity
	}
	return nil
}

// MatchmakingParams is the immutable configuration of one matchmaking attempt.
type MatchmakingParams struct {
	ControllerID string   `json:"controller_id"`
	PartyMembers []string `json:"party_members"`

	Elo           int  `json:"elo"             valid:"range(0|100000)"`
	EloRange      int  `json:"elo_range"       valid:"range(0|100000)"`
	EloSearchStep int  `json:"elo_search_step" valid:"range(0|100000)"`
	SkipEloChecks bool `json:"skip_elo_checks"`

	MaxSearchAttempts int `json:"max_search_attempts" valid:"range(1|1000)"`
	// SearchRetryDelay overrides the configured delay between attempts of a search pass.
	SearchRetryDelay time.Duration `json:"search_retry_delay"`
	MaxResults       int           `json:"max_results"        valid:"range(0|1000)"`
	MinSlotsRequired int           `json:"min_slots_required" valid:"range(0|1000)"`

	IsLAN        bool   `json:"is_lan"`
	UsesPresence bool   `json:"uses_presence"`
	Playlist     string `json:"playlist"`
	MapName      string `json:"map_name"`
	GameMode     string `json:"game_mode"`

	SpecificSession  SpecificSessionQuery `json:"specific_session"`
	SearchPredicates []QueryPredicate     `json:"search_predicates"`
	IgnoreSessionIDs []string             `json:"ignore_session_ids"`

	HostParams HostParams `json:"host_params"`
}

func (p MatchmakingParams) Validate() error {
	if _, err := validator.ValidateStruct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParams, err.Error())
	}
	if p.ControllerID == "" {
		return ValidationErrorMissingController
	}
	if p.EloRange < 0 || p.EloSearchStep < 0 {
		return ValidationErrorNegativeRange
	}
	if p.MaxSearchAttempts <= 0 {
		return ValidationErrorMaxSearchAttempts
	}
	if p.SpecificSession.IsSpecified() && !p.SpecificSession.IsValid() {
		return ValidationErrorSpecificSessionTarget
	}
	for _, predicate := range p.SearchPredicates {
		if predicate.Key == "" {
			return ValidationErrorPredicateKey
		}
	}
	return nil
}

// ReservationMembers returns the players a reservation for these params covers.
func (p MatchmakingParams) ReservationMembers() []string {
	if len(p.PartyMembers) == 0 {
		return []string{p.ControllerID}
	}
	return p.PartyMembers
}
