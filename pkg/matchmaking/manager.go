// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package matchmaking

import (
	"errors"

	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

var ErrNilPolicy = errors.New("matchmaking policy cannot be nil")

// Manager keeps at most one active policy per local player.
type Manager struct {
	scope  *envelope.Scope
	loop   scheduler.Scheduler
	active map[string]*Policy
}

func NewManager(scope *envelope.Scope, loop scheduler.Scheduler) *Manager {
	return &Manager{
		scope:  scope,
		loop:   loop,
		active: make(map[string]*Policy),
	}
}

// Active returns the policy registered for playerID.
func (m *Manager) Active(playerID string) (*Policy, bool) {
	policy, ok := m.active[playerID]
	return policy, ok
}

// Start installs policy as playerID's policy and runs start with it.
// A previous policy still matchmaking is canceled first; start runs once it has reported its terminal result.
func (m *Manager) Start(playerID string, policy *Policy, start func(policy *Policy)) error {
	if policy == nil {
		m.scope.Log.WithField("playerID", playerID).Error("register nil matchmaking policy")
		return ErrNilPolicy
	}

	previous := m.active[playerID]
	m.active[playerID] = policy
	policy.OnComplete(func(string, models.CompleteResult, models.FailureReason) {
		m.release(playerID, policy)
	})

	if previous == nil || !previous.IsMatchmaking() {
		start(policy)
		return nil
	}

	m.scope.Log.WithField("playerID", playerID).Info("canceling previous matchmaking policy")
	previous.OnComplete(func(string, models.CompleteResult, models.FailureReason) {
		if m.active[playerID] == policy {
			start(policy)
		}
	})
	if err := previous.CancelMatchmaking(); err != nil {
		start(policy)
	}
	return nil
}

// Cancel cancels the active policy of playerID.
func (m *Manager) Cancel(playerID string) error {
	policy, ok := m.active[playerID]
	if !ok {
		return ErrNotActive
	}
	return policy.CancelMatchmaking()
}

// release forgets a terminal policy and invalidates it once its listeners have returned.
func (m *Manager) release(playerID string, policy *Policy) {
	if m.active[playerID] == policy {
		delete(m.active, playerID)
	}
	m.loop.Post(policy.Invalidate)
}
