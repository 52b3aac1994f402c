// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package constants

// Session tags. A local player holds at most one named session of each kind.
const (
	GameSessionName  = "GameSession"
	PartySessionName = "PartySession"
)

// Advertised session setting keys.
const (
	SettingSessionType = "session_type"
	SettingOwnerID     = "owner_id"
	SettingBeaconPort  = "beacon_port"
	SettingPlaylist    = "playlist"
	SettingMapName     = "map_name"
	SettingGameMode    = "game_mode"
	SettingElo         = "elo"
	SettingDisplayName = "display_name"
	SettingHidden      = "hidden"
)

// DefaultFriendsList is the friends list consulted when building handoff descriptors.
const DefaultFriendsList = "default"

// Handoff outcome labels.
const (
	HandoffOutcomeAllAcknowledged = "all_acknowledged"
	HandoffOutcomeTimeout         = "timeout"
	HandoffOutcomeFailed          = "failed"
)

// IsValidSessionTag reports whether tag names one of the two recognized session kinds.
func IsValidSessionTag(tag string) bool {
	return tag == GameSessionName || tag == PartySessionName
}
