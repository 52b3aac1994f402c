// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package reservation

import (
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

// Hooks are the extension points of a ledger.
type Hooks interface {
	// PreRegisterReservation may refuse a structurally valid reservation.
	// Anything other than ReservationAccepted aborts the registration with that result.
	PreRegisterReservation(reservation models.Reservation) models.ReservationCompleteResult
	// PreOwnerRemoved runs before the owner of a reservation loses its slot.
	// Ownership is cleared afterwards; nothing is reassigned automatically.
	PreOwnerRemoved(reservation models.Reservation, ownerID string)
}

// NoopHooks accepts every reservation and ignores owner removal.
type NoopHooks struct{}

func (NoopHooks) PreRegisterReservation(models.Reservation) models.ReservationCompleteResult {
	return models.ReservationAccepted
}

func (NoopHooks) PreOwnerRemoved(models.Reservation, string) {}

// Roster reports who is physically present in the session.
type Roster interface {
	IsPlayerInSession(playerID string) bool
}

// BanChecker reports whether a player is banned from the session.
type BanChecker interface {
	IsPlayerBanned(playerID string) bool
}

// DirectoryRoster reads presence and bans from a named session of a directory.
type DirectoryRoster struct {
	Directory   directory.SessionDirectory
	SessionName string
}

func NewDirectoryRoster(dir directory.SessionDirectory, sessionName string) *DirectoryRoster {
	return &DirectoryRoster{Directory: dir, SessionName: sessionName}
}

func (r *DirectoryRoster) IsPlayerInSession(playerID string) bool {
	named, ok := r.Directory.GetNamedSession(r.SessionName)
	if !ok {
		return false
	}
	return utils.Contains(named.RegisteredPlayers, playerID)
}

func (r *DirectoryRoster) IsPlayerBanned(playerID string) bool {
	return r.Directory.IsPlayerBanned(r.SessionName, playerID)
}
