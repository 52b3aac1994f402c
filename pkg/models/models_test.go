// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
)

func validParams() MatchmakingParams {
	return MatchmakingParams{
		ControllerID:      "p1",
		Elo:               1000,
		EloRange:          50,
		EloSearchStep:     25,
		MaxSearchAttempts: 3,
	}
}

func TestMatchmakingParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *MatchmakingParams)
		want   error
	}{
		{"valid", func(p *MatchmakingParams) {}, nil},
		{"missing controller", func(p *MatchmakingParams) { p.ControllerID = "" }, ValidationErrorMissingController},
		{"no attempts", func(p *MatchmakingParams) { p.MaxSearchAttempts = 0 }, ErrInvalidParams},
		{"specific without target", func(p *MatchmakingParams) {
			p.SpecificSession = SpecificSessionQuery{Type: SpecificSessionQueryFriendID}
		}, ValidationErrorSpecificSessionTarget},
		{"predicate without key", func(p *MatchmakingParams) {
			p.SearchPredicates = []QueryPredicate{{Value: 1, Op: QueryOpEquals}}
		}, ValidationErrorPredicateKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)
			err := params.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestHostParamsValidate(t *testing.T) {
	assert.ErrorIs(t, HostParams{}.Validate(), ValidationErrorHostCapacity)
	assert.NoError(t, HostParams{MaxPlayers: 4}.Validate())
	assert.ErrorIs(t, HostParams{MaxPlayers: 4, SettingsOverride: &SessionSettings{}}.Validate(), ValidationErrorHostCapacity)
	assert.NoError(t, HostParams{SettingsOverride: &SessionSettings{NumPrivateConnections: 2}}.Validate())
}

func TestValidationErrorCode(t *testing.T) {
	assert.Equal(t, 520101, ValidationErrorCode(ValidationErrorMissingController))
	assert.Equal(t, 520204, ValidationErrorCode(ValidationErrorReservationDuplicateID))
	assert.Equal(t, 20002, ValidationErrorCode(errors.New("unregistered")))
}

func TestReservationValidate(t *testing.T) {
	assert.NoError(t, NewReservation("owner", "owner", "friend").Validate())
	assert.Equal(t, ValidationErrorReservationOwner, NewReservation("", "a").Validate())
	assert.Equal(t, ValidationErrorReservationEmpty, NewReservation("owner").Validate())
	assert.Equal(t, ValidationErrorReservationMember, NewReservation("owner", "a", "").Validate())
	assert.Equal(t, ValidationErrorReservationDuplicateID, NewReservation("owner", "a", "a").Validate())

	original := NewReservation("owner", "a", "b")
	copied := original.Copy()
	copied.Members[0].Completed = true
	assert.False(t, original.Members[0].Completed)
	assert.Equal(t, []string{"a", "b"}, original.MemberIDs())
}

func TestQueryPredicateMatches(t *testing.T) {
	attributes := map[string]interface{}{
		constants.SettingElo:     1000,
		constants.SettingMapName: "harbor",
	}
	tests := []struct {
		predicate QueryPredicate
		want      bool
	}{
		{QueryPredicate{Key: constants.SettingElo, Value: 1000.0, Op: QueryOpEquals}, true},
		{QueryPredicate{Key: constants.SettingElo, Value: 950, Op: QueryOpGreaterThanEquals}, true},
		{QueryPredicate{Key: constants.SettingElo, Value: 999, Op: QueryOpLessThanEquals}, false},
		{QueryPredicate{Key: constants.SettingMapName, Value: "harbor", Op: QueryOpEquals}, true},
		{QueryPredicate{Key: constants.SettingMapName, Value: "desert", Op: QueryOpNotEquals}, true},
		{QueryPredicate{Key: constants.SettingMapName, Value: 3, Op: QueryOpGreaterThanEquals}, false},
		{QueryPredicate{Key: constants.SettingGameMode, Value: "ffa", Op: QueryOpEquals}, false},
		{QueryPredicate{Key: constants.SettingGameMode, Value: "ffa", Op: QueryOpNotEquals}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.predicate.Matches(attributes), tt.predicate.String())
	}
}

func TestSessionQueryMatches(t *testing.T) {
	record := SessionRecord{
		ID:      "s1",
		OwnerID: "host",
		Settings: SessionSettings{
			NumPublicConnections: 4,
			ShouldAdvertise:      true,
			BanList:              []string{"griefer"},
			Attributes:           map[string]interface{}{constants.SettingElo: 1000},
		},
		Players: []string{"host"},
	}

	assert.True(t, SessionQuery{}.Matches(record))
	assert.False(t, SessionQuery{IsLAN: true}.Matches(record))
	assert.False(t, SessionQuery{ExcludedSessionIDs: []string{"s1"}}.Matches(record))
	assert.False(t, SessionQuery{SessionIDs: []string{"s2"}}.Matches(record))
	assert.True(t, SessionQuery{SessionIDs: []string{"s1"}}.Matches(record))
	assert.False(t, SessionQuery{BannedPlayers: []string{"friend", "griefer"}}.Matches(record))
	assert.False(t, SessionQuery{Predicates: []QueryPredicate{{Key: constants.SettingElo, Value: 1100, Op: QueryOpGreaterThanEquals}}}.Matches(record))

	hidden := record
	hidden.Settings.ShouldAdvertise = false
	assert.False(t, SessionQuery{ExcludeHidden: true}.Matches(hidden))
	assert.True(t, SessionQuery{}.Matches(hidden))

	result := record.ToSearchResult()
	assert.Equal(t, 3, result.OpenPublicSlots)
	assert.False(t, result.RequiresReservation())
	result.HostAddress = "host.example:7777"
	result.Settings.Set(constants.SettingBeaconPort, 15000)
	assert.True(t, result.RequiresReservation())
}

func TestLastPartyInfoCopy(t *testing.T) {
	info := LastPartyInfo{Role: PartyRoleLeader, HostID: "leader", SessionID: "party"}
	info.Settings.Set(constants.SettingDisplayName, "squad")
	require.True(t, info.IsValid())

	copied := info.Copy()
	copied.Settings.Set(constants.SettingDisplayName, "changed")
	assert.Equal(t, "squad", info.Settings.GetString(constants.SettingDisplayName))
	assert.False(t, LastPartyInfo{Role: PartyRoleMember, SessionID: "party"}.IsValid())
}

func TestEnumNames(t *testing.T) {
	assert.Equal(t, "SessionCreated", CompleteResultSessionCreated.String())
	assert.Equal(t, "JoinFailure", FailureReasonJoinFailure.String())
	assert.Equal(t, "NoSession", PassCompleteResultNoSession.String())
	assert.Equal(t, "SessionOwnerId", SpecificSessionQuerySessionOwnerID.String())
	assert.True(t, CompleteResultSuccess.IsSuccess())
	assert.False(t, CompleteResultNoResults.IsSuccess())
	assert.True(t, MatchmakingModeCreateOnly.CanHost())
	assert.False(t, MatchmakingModeJoinOnly.CanHost())
}
