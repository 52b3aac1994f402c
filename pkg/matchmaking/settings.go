// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package matchmaking

import (
	"github.com/go-openapi/swag"

	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
)

// buildSessionSettings returns the settings a hosted session advertises.
// An override is republished as is, apart from the keys that identify the new owner.
func buildSessionSettings(sessionTag, ownerID string, host models.HostParams, defaultBeaconPort int) models.SessionSettings {
	if host.SettingsOverride != nil {
		settings := host.SettingsOverride.Copy()
		settings.Set(constants.SettingSessionType, sessionTag)
		settings.Set(constants.SettingOwnerID, ownerID)
		return settings
	}

	settings := models.SessionSettings{
		NumPublicConnections: host.MaxPlayers,
		ShouldAdvertise:      host.ShouldAdvertise,
		AllowJoinInProgress:  host.AllowJoinInProgress,
		IsLANMatch:           host.IsLAN,
		UsesPresence:         host.UsesPresence,
		AllowInvites:         host.AllowInvites,
		AllowJoinViaPresence: host.UsesPresence,
		BanList:              append([]string(nil), host.BanList...),
	}
	// reserved keys below win over extra settings
	for key, value := range host.ExtraSettings {
		settings.Set(key, value)
	}
	settings.Set(constants.SettingSessionType, sessionTag)
	settings.Set(constants.SettingOwnerID, ownerID)
	settings.Set(constants.SettingElo, host.Elo)
	settings.Set(constants.SettingHidden, host.Hidden)

	beaconPort := defaultBeaconPort
	if host.BeaconPort != nil {
		beaconPort = swag.IntValue(host.BeaconPort)
	}
	if beaconPort > 0 {
		settings.Set(constants.SettingBeaconPort, beaconPort)
	}

	labels := map[string]string{
		constants.SettingDisplayName: host.DisplayName,
		constants.SettingPlaylist:    host.Playlist,
		constants.SettingMapName:     host.MapName,
		constants.SettingGameMode:    host.GameMode,
	}
	for key, value := range labels {
		if value != "" {
			settings.Set(key, value)
		}
	}
	return settings
}
