// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package beacon

import (
	"context"
	"sync"
	"time"

	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

type call struct {
	timer      *scheduler.Timer
	finished   bool
	suppressed bool
	done       func(resp Response, err error)
}

// Connection is a client connection to one beacon host. It must only be used on its loop.
//
// The transport is dialed on first use and shared by every later round trip. Round
// trips reach the host in the order they were issued. Each one, dial included, is
// bounded by the request timeout, and its callback fires exactly once.
type Connection struct {
	scope   *envelope.Scope
	loop    scheduler.Scheduler
	dialer  Dialer
	address string
	ownerID string
	timeout time.Duration
	exec    func(fn func())

	mu        sync.Mutex
	transport Transport
	shut      bool

	tail     chan struct{}
	inFlight *call
	queued   []func()
	closed   bool

	onConnected func()
	onFailure   func(err error)
}

type ConnectionOption func(*Connection)

// WithSynchronousTransport dials and round-trips on the caller's goroutine.
// Callbacks are still posted to the loop.
func WithSynchronousTransport() ConnectionOption {
	return func(c *Connection) { c.exec = func(fn func()) { fn() } }
}

func NewConnection(scope *envelope.Scope, loop scheduler.Scheduler, dialer Dialer, address, ownerID string, timeout time.Duration, opts ...ConnectionOption) *Connection {
	c := &Connection{
		scope:   scope.WithField("beaconAddress", address),
		loop:    loop,
		dialer:  dialer,
		address: address,
		ownerID: ownerID,
		timeout: timeout,
		exec:    func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connection) Address() string {
	return c.address
}

// OnConnected runs once the transport is established.
func (c *Connection) OnConnected(fn func()) {
	c.onConnected = fn
}

// OnFailure runs when a dial or round trip fails, including timeouts.
func (c *Connection) OnFailure(fn func(err error)) {
	c.onFailure = fn
}

// IsBusy reports whether a round trip is outstanding.
func (c *Connection) IsBusy() bool {
	return c.inFlight != nil
}

// RequestReservation asks the host to admit reservation into sessionID.
func (c *Connection) RequestReservation(sessionID string, reservation models.Reservation, done func(result models.ReservationCompleteResult, err error)) {
	req := Request{Type: RequestReserve, SessionID: sessionID, Reservation: reservation.Copy()}
	c.roundTrip(req, func(resp Response, err error) {
		if err != nil {
			done(models.ReservationUnknownError, err)
			return
		}
		done(resp.Result, nil)
	})
}

// CancelReservation releases every slot held by this connection's owner.
// An outstanding request is not abandoned: the cancel is sent after it on the
// same transport, once its callback has fired.
func (c *Connection) CancelReservation(done func(ok bool)) {
	send := func() {
		req := Request{Type: RequestCancel, OwnerID: c.ownerID}
		c.roundTrip(req, func(resp Response, err error) {
			done(err == nil && resp.OK)
		})
	}
	if c.inFlight != nil && !c.closed {
		c.queued = append(c.queued, send)
		return
	}
	send()
}

// Close drops the transport. Outstanding callbacks never fire; queued requests fail with ErrClosed.
func (c *Connection) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if pending := c.inFlight; pending != nil {
		pending.suppressed = true
		c.finish(pending, Response{}, ErrClosed)
	}
	c.exec(func() {
		c.mu.Lock()
		c.shut = true
		transport := c.transport
		c.transport = nil
		c.mu.Unlock()
		if transport != nil {
			_ = transport.Close()
		}
	})
	c.onConnected = nil
	c.onFailure = nil
}

func (c *Connection) roundTrip(req Request, done func(resp Response, err error)) {
	if c.closed {
		c.loop.Post(func() { done(Response{}, ErrClosed) })
		return
	}
	if c.inFlight != nil {
		c.loop.Post(func() { done(Response{}, ErrBusy) })
		return
	}

	pending := &call{done: done}
	c.inFlight = pending
	pending.timer = c.loop.AfterFunc(c.timeout, func() {
		c.scope.Log.WithField("type", req.Type).Warn("beacon request timed out")
		c.finish(pending, Response{}, ErrTimeout)
	})

	parent := c.scope.Ctx
	prev, next := c.tail, make(chan struct{})
	c.tail = next
	c.exec(func() {
		defer close(next)
		ctx, cancel := context.WithTimeout(parent, c.timeout)
		defer cancel()

		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				c.loop.Post(func() { c.finish(pending, Response{}, ErrTimeout) })
				return
			}
		}

		transport, dialed, err := c.acquire(ctx)
		if err != nil {
			c.loop.Post(func() { c.finish(pending, Response{}, err) })
			return
		}
		resp, err := transport.RoundTrip(ctx, req)
		c.loop.Post(func() {
			if dialed && !c.closed && c.onConnected != nil {
				c.onConnected()
			}
			c.finish(pending, resp, err)
		})
	})
}

// acquire returns the shared transport, dialing it on first use.
func (c *Connection) acquire(ctx context.Context) (Transport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shut {
		return nil, false, ErrClosed
	}
	if c.transport != nil {
		return c.transport, false, nil
	}
	transport, err := c.dialer.Dial(ctx, c.address, c.ownerID)
	if err != nil {
		return nil, false, err
	}
	c.transport = transport
	return transport, true, nil
}

func (c *Connection) finish(pending *call, resp Response, err error) {
	if pending.finished {
		return
	}
	pending.finished = true
	pending.timer.Stop()
	if c.inFlight == pending {
		c.inFlight = nil
	}
	if !pending.suppressed {
		if err != nil {
			c.scope.Log.Debugf("beacon round trip failed: %v", err)
			if c.onFailure != nil {
				c.onFailure(err)
			}
		}
		pending.done(resp, err)
	}
	if len(c.queued) > 0 && c.inFlight == nil {
		send := c.queued[0]
		c.queued = c.queued[1:]
		send()
	}
}
