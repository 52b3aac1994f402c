// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-session-matchmaker/pkg/beacon"
	"github.com/AccelByte/extend-session-matchmaker/pkg/config"
	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/matchmaking"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/testsetup"
)

type capture struct {
	mu     sync.Mutex
	events []Event
}

func (c *capture) checker(val []byte) error {
	var event Event
	if err := json.Unmarshal(val, &event); err != nil {
		return err
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

func (c *capture) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.events))
	for _, event := range c.events {
		types = append(types, fmt.Sprintf("%s:%s%s%s", event.Type, event.To, event.Result, event.Outcome))
	}
	return types
}

func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}

func TestPublisherObservesPolicy(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	loop := testsetup.NewManualLoop()
	cfg := config.Default()

	prod := mocks.NewSyncProducer(t, producerConfig())
	events := &capture{}
	for i := 0; i < 4; i++ {
		prod.ExpectSendMessageWithCheckerFunctionAndSucceed(events.checker)
	}
	stamp := testsetup.Epoch
	publisher := NewPublisher(g.TestScope, prod, "matchmaking", WithSynchronousPublish(), WithClock(func() time.Time { return stamp }))

	dir := directory.NewService(g.TestScope, loop, directory.NewMemoryBackend(), "host", directory.WithSynchronousBackend())
	policy := matchmaking.New(g.TestScope, loop, dir, beacon.NewLoopbackDialer(), cfg)
	publisher.ObservePolicy("host", policy)

	params := models.MatchmakingParams{ControllerID: "host", MaxSearchAttempts: 1, HostParams: models.HostParams{MaxPlayers: 4}}
	g.Expect(policy.StartMatchmaking(constants.GameSessionName, params, models.MatchmakingFlags{}, models.MatchmakingModeCreateOnly, 0, nil)).To(Succeed())
	loop.Drain()

	g.Expect(events.types()).To(Equal([]string{
		"matchmaking.state_changed:Starting",
		"matchmaking.state_changed:CreatingSession",
		"matchmaking.complete:SessionCreated",
		"matchmaking.state_changed:Complete",
	}))
	g.Expect(events.events[0].Timestamp.Equal(stamp)).To(BeTrue())
	g.Expect(events.events[0].SessionTag).To(Equal(constants.GameSessionName))
	g.Expect(publisher.Close()).To(Succeed())
}

func TestPublisherObservesHandoff(t *testing.T) {
	prod := mocks.NewSyncProducer(t, producerConfig())
	events := &capture{}
	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(events.checker)
	publisher := NewPublisher(testsetup.NewTestScope(), prod, "matchmaking", WithSynchronousPublish())

	var outcomes []string
	done := publisher.ObserveHandoff("leader", func(outcome string, err error) {
		outcomes = append(outcomes, outcome)
	})
	done(constants.HandoffOutcomeFailed, errors.New("travel failed"))

	assert.Equal(t, []string{constants.HandoffOutcomeFailed}, outcomes)
	require.Len(t, events.events, 1)
	assert.Equal(t, Event{
		Type:      EventHandoffComplete,
		PlayerID:  "leader",
		Outcome:   constants.HandoffOutcomeFailed,
		Error:     "travel failed",
		Timestamp: events.events[0].Timestamp,
	}, events.events[0])
	assert.NoError(t, publisher.Close())
}

func TestPublisherRunDrainsQueue(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	prod := mocks.NewSyncProducer(t, producerConfig())
	events := &capture{}
	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(events.checker)
	prod.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	prod.ExpectSendMessageWithCheckerFunctionAndSucceed(events.checker)

	publisher := NewPublisher(g.TestScope, prod, "matchmaking", WithQueueSize(8))
	for _, player := range []string{"a", "b", "c"} {
		publisher.Publish(Event{Type: EventMatchmakingComplete, PlayerID: player, Result: "Success"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- publisher.Run(ctx) }()

	g.Eventually(func() int {
		events.mu.Lock()
		defer events.mu.Unlock()
		return len(events.events)
	}).Should(Equal(2))
	cancel()
	g.Eventually(errs).Should(Receive(MatchError(context.Canceled)))

	g.Expect(events.events[0].PlayerID).To(Equal("a"))
	g.Expect(events.events[1].PlayerID).To(Equal("c"))
	g.Expect(publisher.Close()).To(Succeed())
}

func TestPublisherDropsWhenQueueIsFull(t *testing.T) {
	prod := mocks.NewSyncProducer(t, producerConfig())
	logger, hook := logtest.NewNullLogger()
	publisher := NewPublisher(testsetup.NewTestScopeWithLogger(logger), prod, "matchmaking", WithQueueSize(1))

	publisher.Publish(Event{Type: EventStateChanged, PlayerID: "a"})
	publisher.Publish(Event{Type: EventStateChanged, PlayerID: "b"})

	require.Len(t, publisher.queue, 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, EventStateChanged, hook.LastEntry().Data["type"])
	queued := <-publisher.queue
	assert.Equal(t, "a", queued.PlayerID)
	assert.NoError(t, publisher.Close())
}
