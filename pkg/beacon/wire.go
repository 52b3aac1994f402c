// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package beacon is the lightweight connection a matchmaking client uses to
// reserve slots on a host before joining its session.
package beacon

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/AccelByte/extend-session-matchmaker/pkg/codec"
	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
)

var (
	ErrTimeout          = errors.New("beacon request timed out")
	ErrBusy             = errors.New("beacon request already in flight")
	ErrClosed           = errors.New("beacon connection closed")
	ErrNoBeacon         = errors.New("session does not advertise a beacon")
	ErrUnauthorized     = errors.New("beacon handshake rejected")
	ErrUnknownHost      = errors.New("no beacon host at address")
	ErrUnexpectedFormat = errors.New("unexpected beacon frame")
)

type RequestType string

const (
	RequestReserve RequestType = "reserve"
	RequestCancel  RequestType = "cancel"
)

// Request is one client frame.
type Request struct {
	Type        RequestType        `cbor:"type"`
	SessionID   string             `cbor:"session_id"`
	Reservation models.Reservation `cbor:"reservation"`
	OwnerID     string             `cbor:"owner_id,omitempty"`
}

// Response answers one Request.
type Response struct {
	Result models.ReservationCompleteResult `cbor:"result"`
	OK     bool                             `cbor:"ok"`
}

func encodeRequest(req Request) ([]byte, error) {
	return codec.Marshal(req)
}

func decodeRequest(data []byte) (Request, error) {
	var req Request
	if err := codec.Unmarshal(data, &req); err != nil {
		return Request{}, errors.Join(ErrUnexpectedFormat, err)
	}
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return codec.Marshal(resp)
}

func decodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := codec.Unmarshal(data, &resp); err != nil {
		return Response{}, errors.Join(ErrUnexpectedFormat, err)
	}
	return resp, nil
}

// Transport carries request frames over one established connection.
type Transport interface {
	RoundTrip(ctx context.Context, req Request) (Response, error)
	Close() error
}

// Dialer opens a Transport to a beacon host on behalf of ownerID.
type Dialer interface {
	Dial(ctx context.Context, address string, ownerID string) (Transport, error)
}

// Address returns the beacon address advertised by a search result.
func Address(result models.SearchResult) (string, error) {
	port, ok := result.Settings.GetNumber(constants.SettingBeaconPort)
	if !ok || port <= 0 || result.HostAddress == "" {
		return "", ErrNoBeacon
	}
	host := result.HostAddress
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port))), nil
}
