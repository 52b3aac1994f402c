// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package beacon

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// LoopbackDialer connects to in-process hosts by address.
type LoopbackDialer struct {
	mu    sync.RWMutex
	hosts map[string]*Host
}

func NewLoopbackDialer() *LoopbackDialer {
	return &LoopbackDialer{hosts: make(map[string]*Host)}
}

// Register serves host at address until Unregister is called.
func (d *LoopbackDialer) Register(address string, host *Host) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hosts[address] = host
}

func (d *LoopbackDialer) Unregister(address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.hosts, address)
}

func (d *LoopbackDialer) Dial(_ context.Context, address string, ownerID string) (Transport, error) {
	d.mu.RLock()
	host, ok := d.hosts[address]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, address)
	}
	return &loopbackTransport{host: host, ownerID: ownerID}, nil
}

type loopbackTransport struct {
	host    *Host
	ownerID string
}

func (t *loopbackTransport) RoundTrip(ctx context.Context, req Request) (Response, error) {
	return t.host.Handle(ctx, t.ownerID, req), nil
}

func (t *loopbackTransport) Close() error {
	return nil
}

// WebsocketDialer connects to hosts serving Host.ServeHTTP.
type WebsocketDialer struct {
	// Secret signs the handshake token. Empty sends no token.
	Secret string
}

func (d WebsocketDialer) Dial(ctx context.Context, address string, ownerID string) (Transport, error) {
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if d.Secret != "" {
		token, err := IssueToken([]byte(d.Secret), ownerID)
		if err != nil {
			return nil, fmt.Errorf("issue beacon token: %w", err)
		}
		opts.HTTPHeader.Set("Authorization", "Bearer "+token)
	}

	c, _, err := websocket.Dial(ctx, "ws://"+address+Path, opts)
	if err != nil {
		return nil, fmt.Errorf("dial beacon %s: %w", address, err)
	}
	return &websocketTransport{conn: c}, nil
}

// websocketTransport serializes round trips over one connection.
type websocketTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *websocketTransport) RoundTrip(ctx context.Context, req Request) (Response, error) {
	data, err := encodeRequest(req)
	if err != nil {
		return Response{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		return Response{}, err
	}
	typ, out, err := t.conn.Read(ctx)
	if err != nil {
		return Response{}, err
	}
	if typ != websocket.MessageBinary {
		return Response{}, ErrUnexpectedFormat
	}
	return decodeResponse(out)
}

func (t *websocketTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
