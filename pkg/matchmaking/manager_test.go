// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package matchmaking

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
)

func startDefault(delay time.Duration) func(*Policy) {
	return func(p *Policy) {
		_ = p.StartMatchmaking(constants.GameSessionName, seekerParams(), models.MatchmakingFlags{}, models.MatchmakingModeDefault, delay, nil)
	}
}

func TestManagerCancelsPreviousPolicy(t *testing.T) {
	w := newWorld(t)
	g := w.g
	manager := NewManager(g.TestScope, w.loop)
	dir := w.directoryFor("seeker")

	first := w.newPolicy(dir)
	firstRec := record(first)
	g.Expect(manager.Start("seeker", first, startDefault(time.Minute))).To(Succeed())
	g.Expect(first.State()).To(Equal(models.MatchmakingStateStarting))

	second := w.newPolicy(dir)
	secondRec := record(second)
	g.Expect(manager.Start("seeker", second, startDefault(time.Minute))).To(Succeed())

	g.Expect(firstRec.results).To(Equal([]models.CompleteResult{models.CompleteResultCanceled}))
	g.Expect(second.IsMatchmaking()).To(BeTrue())
	g.Expect(secondRec.results).To(BeEmpty())

	active, ok := manager.Active("seeker")
	g.Expect(ok).To(BeTrue())
	g.Expect(active).To(BeIdenticalTo(second))

	w.loop.Drain()
	g.Expect(manager.Cancel("seeker")).To(Succeed())
	g.Expect(secondRec.results).To(Equal([]models.CompleteResult{models.CompleteResultCanceled}))
	_, ok = manager.Active("seeker")
	g.Expect(ok).To(BeFalse())
	g.Expect(manager.Cancel("seeker")).To(MatchError(ErrNotActive))
}

func TestManagerWaitsForPreviousCancelToFinish(t *testing.T) {
	w := newWorld(t)
	g := w.g
	manager := NewManager(g.TestScope, w.loop)
	gated := &gatedBackend{Backend: w.backend, gate: make(chan struct{})}
	t.Cleanup(func() { close(gated.gate) })
	dir := w.directoryFor("seeker")

	first := w.newPolicy(directory.NewService(g.TestScope, w.loop, gated, "seeker"))
	firstRec := record(first)
	g.Expect(manager.Start("seeker", first, startDefault(0))).To(Succeed())
	w.loop.Drain()
	g.Expect(first.State()).To(Equal(models.MatchmakingStateSearching))

	second := w.newPolicy(dir)
	started := false
	g.Expect(manager.Start("seeker", second, func(p *Policy) {
		started = true
		startDefault(time.Minute)(p)
	})).To(Succeed())
	g.Expect(first.IsCanceling()).To(BeTrue())
	g.Expect(started).To(BeFalse())

	w.loop.Drain()
	g.Expect(firstRec.results).To(Equal([]models.CompleteResult{models.CompleteResultCanceled}))
	g.Expect(started).To(BeTrue())
	g.Expect(second.State()).To(Equal(models.MatchmakingStateStarting))
}

func TestManagerRejectsNilPolicy(t *testing.T) {
	w := newWorld(t)
	g := w.g
	manager := NewManager(g.TestScope, w.loop)

	g.Expect(manager.Start("seeker", nil, startDefault(0))).To(MatchError(ErrNilPolicy))
	_, ok := manager.Active("seeker")
	g.Expect(ok).To(BeFalse())
}

func TestManagerReleasesCompletedPolicy(t *testing.T) {
	w := newWorld(t)
	g := w.g
	manager := NewManager(g.TestScope, w.loop)

	policy := w.newPolicy(w.directoryFor("seeker"))
	rec := record(policy)
	g.Expect(manager.Start("seeker", policy, func(p *Policy) {
		_ = p.StartMatchmaking(constants.GameSessionName, seekerParams(), models.MatchmakingFlags{}, models.MatchmakingModeCreateOnly, 0, nil)
	})).To(Succeed())
	w.loop.Drain()

	g.Expect(rec.results).To(Equal([]models.CompleteResult{models.CompleteResultSessionCreated}))
	_, ok := manager.Active("seeker")
	g.Expect(ok).To(BeFalse())
	g.Expect(w.loop.PendingTimers()).To(BeZero())
}
