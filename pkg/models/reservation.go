// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"github.com/elliotchance/pie/v2"
)

// ReservationMember is one reserved slot.
type ReservationMember struct {
	PlayerID  string `json:"player_id" cbor:"player_id"`
	Completed bool   `json:"completed" cbor:"completed"`
}

// IsValid reports whether the member names a player.
func (m ReservationMember) IsValid() bool {
	return m.PlayerID != ""
}

// Reservation is an admission ticket for one or more players.
type Reservation struct {
	OwnerID string              `json:"owner_id" cbor:"owner_id"`
	Members []ReservationMember `json:"members"  cbor:"members"`
}

// NewReservation builds a pending reservation for the given players.
func NewReservation(ownerID string, playerIDs ...string) Reservation {
	return Reservation{
		OwnerID: ownerID,
		Members: pie.Map(playerIDs, func(id string) ReservationMember {
			return ReservationMember{PlayerID: id}
		}),
	}
}

// Validate checks the structure of a reservation.
func (r Reservation) Validate() error {
	if r.OwnerID == "" {
		return ValidationErrorReservationOwner
	}
	if len(r.Members) == 0 {
		return ValidationErrorReservationEmpty
	}
	seen := make(map[string]struct{}, len(r.Members))
	for _, member := range r.Members {
		if !member.IsValid() {
			return ValidationErrorReservationMember
		}
		if _, ok := seen[member.PlayerID]; ok {
			return ValidationErrorReservationDuplicateID
		}
		seen[member.PlayerID] = struct{}{}
	}
	return nil
}

// MemberIDs returns the reserved player ids in order.
func (r Reservation) MemberIDs() []string {
	return pie.Map(r.Members, func(m ReservationMember) string { return m.PlayerID })
}

// Copy returns a copy that shares no member storage.
func (r Reservation) Copy() Reservation {
	members := make([]ReservationMember, len(r.Members))
	copy(members, r.Members)
	return Reservation{OwnerID: r.OwnerID, Members: members}
}
