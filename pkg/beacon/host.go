// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package beacon

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/reservation"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

// Path is the HTTP path the beacon host serves websocket upgrades on.
const Path = "/beacon"

// Host answers reservation requests against the ledger of one hosted session.
type Host struct {
	scope     *envelope.Scope
	ledger    *reservation.Ledger
	sessionID string
	secret    []byte
	dispatch  func(ctx context.Context, fn func()) error
}

type HostOption func(*Host)

// WithLoop runs ledger calls on a wall-clock loop, for hosts serving network connections.
func WithLoop(loop *scheduler.Loop) HostOption {
	return func(h *Host) { h.dispatch = loop.Call }
}

// WithSecret requires every websocket connection to present a token signed with secret.
func WithSecret(secret string) HostOption {
	return func(h *Host) {
		if secret != "" {
			h.secret = []byte(secret)
		}
	}
}

func NewHost(scope *envelope.Scope, ledger *reservation.Ledger, sessionID string, opts ...HostOption) *Host {
	h := &Host{
		scope:     scope.WithField("sessionID", sessionID),
		ledger:    ledger,
		sessionID: sessionID,
		dispatch: func(_ context.Context, fn func()) error {
			fn()
			return nil
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle answers one request. An authenticated owner, when set, must match the request owner.
func (h *Host) Handle(ctx context.Context, authOwner string, req Request) Response {
	if req.SessionID != "" && req.SessionID != h.sessionID {
		h.scope.Log.WithField("requestedSession", req.SessionID).Warn("request for another session")
		return Response{Result: models.ReservationInvalid}
	}

	var resp Response
	switch req.Type {
	case RequestReserve:
		if authOwner != "" && req.Reservation.OwnerID != authOwner {
			return Response{Result: models.ReservationDenied}
		}
		err := h.dispatch(ctx, func() {
			resp.Result = h.ledger.RegisterReservation(req.Reservation)
			resp.OK = resp.Result == models.ReservationAccepted
		})
		if err != nil {
			return Response{Result: models.ReservationUnknownError}
		}
	case RequestCancel:
		owner := req.OwnerID
		if authOwner != "" && owner != authOwner {
			return Response{Result: models.ReservationDenied}
		}
		err := h.dispatch(ctx, func() {
			resp.OK = h.ledger.CancelReservation(owner)
			resp.Result = models.ReservationRequestCanceled
		})
		if err != nil {
			return Response{Result: models.ReservationUnknownError}
		}
	default:
		return Response{Result: models.ReservationInvalid}
	}
	return resp
}

// ServeHTTP upgrades to a websocket and answers request frames until the client goes away.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	owner := ""
	if h.secret != nil {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		subject, err := VerifyToken(h.secret, token)
		if err != nil {
			h.scope.Log.Warnf("beacon handshake rejected: %v", err)
			http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
		owner = subject
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.scope.Log.Warnf("beacon accept: %v", err)
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return
		}
		if err != nil {
			h.scope.Log.Debugf("beacon read from %s: %v", r.RemoteAddr, err)
			return
		}
		if typ != websocket.MessageBinary {
			c.Close(websocket.StatusUnsupportedData, "binary frames only")
			return
		}

		resp := Response{Result: models.ReservationInvalid}
		if req, err := decodeRequest(data); err == nil {
			resp = h.Handle(ctx, owner, req)
		}
		out, err := encodeResponse(resp)
		if err != nil {
			h.scope.Log.Errorf("encode beacon response: %v", err)
			return
		}
		if err := c.Write(ctx, websocket.MessageBinary, out); err != nil {
			h.scope.Log.Debugf("beacon write to %s: %v", r.RemoteAddr, err)
			return
		}
	}
}
