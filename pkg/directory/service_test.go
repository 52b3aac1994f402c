// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package directory

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
	"github.com/AccelByte/extend-session-matchmaker/pkg/testsetup"
)

func gameSettings(capacity int, attrs map[string]interface{}) models.SessionSettings {
	settings := models.SessionSettings{
		NumPublicConnections: capacity,
		ShouldAdvertise:      true,
	}
	settings.Set(constants.SettingSessionType, constants.GameSessionName)
	for k, v := range attrs {
		settings.Set(k, v)
	}
	return settings
}

func newTestService(g testsetup.GomegaWithScope, loop *scheduler.Loop, backend Backend, player string, opts ...Option) *Service {
	opts = append([]Option{WithSynchronousBackend(), WithHostAddress(player + ".example:7777")}, opts...)
	return NewService(g.TestScope, loop, backend, player, opts...)
}

func createSession(g testsetup.GomegaWithScope, loop *scheduler.Loop, s *Service, name string, settings models.SessionSettings) models.NamedSession {
	created := false
	s.CreateSession(name, settings, func(_ string, ok bool) { created = ok })
	loop.Drain()
	g.Expect(created).To(BeTrue())
	named, ok := s.GetNamedSession(name)
	g.Expect(ok).To(BeTrue())
	return named
}

func TestCreateSessionRegistersHost(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	loop := testsetup.NewManualLoop()
	backend := NewMemoryBackend()
	host := newTestService(g, loop, backend, "host")

	var gotName string
	host.CreateSession(constants.GameSessionName, gameSettings(4, nil), func(name string, ok bool) {
		gotName = name
		g.Expect(ok).To(BeTrue())
	})
	g.Expect(host.GetSessionState(constants.GameSessionName)).To(Equal(models.SessionStateCreating))
	g.Expect(gotName).To(BeEmpty(), "callback must not run on the caller's stack")

	loop.Drain()
	g.Expect(gotName).To(Equal(constants.GameSessionName))

	named, ok := host.GetNamedSession(constants.GameSessionName)
	g.Expect(ok).To(BeTrue())
	g.Expect(named.IsHosting).To(BeTrue())
	g.Expect(named.State).To(Equal(models.SessionStatePending))
	g.Expect(named.RegisteredPlayers).To(ConsistOf("host"))
	g.Expect(named.HostAddress).To(Equal("host.example:7777"))

	record, err := backend.Get(g.TestScope.Ctx, named.SessionID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(record.Players).To(ConsistOf("host"))

	again := true
	host.CreateSession(constants.GameSessionName, gameSettings(4, nil), func(_ string, ok bool) { again = ok })
	loop.Drain()
	g.Expect(again).To(BeFalse())
}

func TestFindAndJoinSession(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	loop := testsetup.NewManualLoop()
	backend := NewMemoryBackend()
	host := newTestService(g, loop, backend, "host")
	client := newTestService(g, loop, backend, "client")

	created := createSession(g, loop, host, constants.GameSessionName, gameSettings(2, map[string]interface{}{constants.SettingElo: 1000}))

	var results []models.SearchResult
	client.FindSessions(models.SessionQuery{
		ExcludeHidden: true,
		Predicates: []models.QueryPredicate{
			{Key: constants.SettingElo, Op: models.QueryOpGreaterThanEquals, Value: 900},
		},
	}, func(ok bool, found []models.SearchResult) {
		g.Expect(ok).To(BeTrue())
		results = found
	})
	loop.Drain()
	g.Expect(results).To(HaveLen(1))
	g.Expect(results[0].SessionID).To(Equal(created.SessionID))
	g.Expect(results[0].OpenPublicSlots).To(Equal(1))

	joinResult := models.JoinResultUnknownError
	client.JoinSession(constants.GameSessionName, results[0], func(_ string, result models.JoinResult) { joinResult = result })
	loop.Drain()
	g.Expect(joinResult).To(Equal(models.JoinResultSuccess))

	named, ok := client.GetNamedSession(constants.GameSessionName)
	g.Expect(ok).To(BeTrue())
	g.Expect(named.IsHosting).To(BeFalse())
	g.Expect(named.RegisteredPlayers).To(ConsistOf("host", "client"))

	client.JoinSession(constants.GameSessionName, results[0], func(_ string, result models.JoinResult) { joinResult = result })
	loop.Drain()
	g.Expect(joinResult).To(Equal(models.JoinResultAlreadyInSession))
}

func TestJoinFullAndMissingSession(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	loop := testsetup.NewManualLoop()
	backend := NewMemoryBackend()
	host := newTestService(g, loop, backend, "host")
	client := newTestService(g, loop, backend, "client")

	created := createSession(g, loop, host, constants.GameSessionName, gameSettings(1, nil))

	var result models.JoinResult
	client.JoinSession(constants.GameSessionName, created.ToSearchResult(), func(_ string, r models.JoinResult) { result = r })
	loop.Drain()
	g.Expect(result).To(Equal(models.JoinResultSessionIsFull))
	g.Expect(client.GetSessionState(constants.GameSessionName)).To(Equal(models.SessionStateNoSession))

	client.JoinSession(constants.GameSessionName, models.SearchResult{SessionID: "missing", OwnerID: "x"}, func(_ string, r models.JoinResult) { result = r })
	loop.Drain()
	g.Expect(result).To(Equal(models.JoinResultSessionDoesNotExist))
}

func TestDestroySession(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	loop := testsetup.NewManualLoop()
	backend := NewMemoryBackend()
	host := newTestService(g, loop, backend, "host")
	client := newTestService(g, loop, backend, "client")

	created := createSession(g, loop, host, constants.GameSessionName, gameSettings(4, nil))
	client.JoinSession(constants.GameSessionName, created.ToSearchResult(), func(string, models.JoinResult) {})
	loop.Drain()

	destroyed := false
	client.DestroySession(constants.GameSessionName, func(_ string, ok bool) { destroyed = ok })
	g.Expect(client.GetSessionState(constants.GameSessionName)).To(Equal(models.SessionStateDestroying))
	loop.Drain()
	g.Expect(destroyed).To(BeTrue())
	record, err := backend.Get(g.TestScope.Ctx, created.SessionID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(record.Players).To(ConsistOf("host"))

	host.DestroySession(constants.GameSessionName, func(_ string, ok bool) { destroyed = ok })
	loop.Drain()
	g.Expect(destroyed).To(BeTrue())
	_, err = backend.Get(g.TestScope.Ctx, created.SessionID)
	g.Expect(err).To(MatchError(ErrSessionNotFound))

	host.DestroySession(constants.GameSessionName, func(_ string, ok bool) { destroyed = ok })
	loop.Drain()
	g.Expect(destroyed).To(BeFalse())
}

func TestCancelFindDropsResult(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	loop := testsetup.NewManualLoop()
	backend := NewMemoryBackend()
	host := newTestService(g, loop, backend, "host")
	client := newTestService(g, loop, backend, "client")
	createSession(g, loop, host, constants.GameSessionName, gameSettings(4, nil))

	findCalled := false
	client.FindSessions(models.SessionQuery{}, func(bool, []models.SearchResult) { findCalled = true })

	canceled := false
	client.CancelFindSessions(func(ok bool) { canceled = ok })
	loop.Drain()
	g.Expect(canceled).To(BeTrue())
	g.Expect(findCalled).To(BeFalse())

	client.CancelFindSessions(func(ok bool) { canceled = ok })
	loop.Drain()
	g.Expect(canceled).To(BeFalse())
}

func TestDirectLookups(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	loop := testsetup.NewManualLoop()
	backend := NewMemoryBackend()
	host := newTestService(g, loop, backend, "host")
	client := newTestService(g, loop, backend, "client")
	created := createSession(g, loop, host, constants.GameSessionName, gameSettings(4, nil))

	var byFriend, byID []models.SearchResult
	client.FindFriendSession("host", func(ok bool, results []models.SearchResult) {
		g.Expect(ok).To(BeTrue())
		byFriend = results
	})
	loop.Drain()
	client.FindSessionByID(created.SessionID, func(ok bool, results []models.SearchResult) {
		g.Expect(ok).To(BeTrue())
		byID = results
	})
	loop.Drain()
	g.Expect(byFriend).To(HaveLen(1))
	g.Expect(byID).To(HaveLen(1))
	g.Expect(byID[0].OwnerID).To(Equal("host"))

	client.FindSessionByID("missing", func(ok bool, results []models.SearchResult) {
		g.Expect(ok).To(BeTrue())
		byID = results
	})
	loop.Drain()
	g.Expect(byID).To(BeEmpty())

	limited := newTestService(g, loop, backend, "limited", WithCapabilities(Capabilities{}))
	supported := true
	limited.FindFriendSession("host", func(ok bool, _ []models.SearchResult) { supported = ok })
	loop.Drain()
	g.Expect(supported).To(BeFalse())
}

func TestRosterAndBans(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	loop := testsetup.NewManualLoop()
	backend := NewMemoryBackend()
	host := newTestService(g, loop, backend, "host")
	created := createSession(g, loop, host, constants.GameSessionName, gameSettings(4, nil))

	g.Expect(host.RegisterPlayers(constants.GameSessionName, "a", "b", "a")).To(BeTrue())
	named, _ := host.GetNamedSession(constants.GameSessionName)
	g.Expect(named.RegisteredPlayers).To(Equal([]string{"host", "a", "b"}))

	g.Expect(host.UnregisterPlayers(constants.GameSessionName, "a")).To(BeTrue())
	named, _ = host.GetNamedSession(constants.GameSessionName)
	g.Expect(named.RegisteredPlayers).To(Equal([]string{"host", "b"}))
	g.Expect(host.RegisterPlayers(constants.PartySessionName, "a")).To(BeFalse())

	g.Expect(host.BanPlayer(constants.GameSessionName, "griefer")).To(BeTrue())
	g.Expect(host.IsPlayerBanned(constants.GameSessionName, "griefer")).To(BeTrue())
	loop.Drain()
	record, err := backend.Get(g.TestScope.Ctx, created.SessionID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(record.Settings.BanList).To(ContainElement("griefer"))
}
