// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package eventlog publishes matchmaking lifecycle events to kafka.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/matchmaking"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/party"
)

const (
	EventStateChanged        = "matchmaking.state_changed"
	EventMatchmakingComplete = "matchmaking.complete"
	EventHandoffComplete     = "party.handoff_complete"

	defaultQueueSize = 256
)

type Event struct {
	Type       string    `json:"type"`
	PlayerID   string    `json:"player_id"`
	SessionTag string    `json:"session_tag,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Result     string    `json:"result,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewProducer connects a kafka sync producer to a comma separated broker list.
func NewProducer(brokers string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	prod, err := sarama.NewSyncProducer(strings.Split(brokers, ","), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return prod, nil
}

type Option func(*Publisher)

// WithSynchronousPublish sends every event from the calling goroutine.
func WithSynchronousPublish() Option {
	return func(p *Publisher) { p.sync = true }
}

func WithQueueSize(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan Event, size)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// Publisher sends events to one topic. Events are queued and sent by Run unless publishing is synchronous.
type Publisher struct {
	scope *envelope.Scope
	prod  sarama.SyncProducer
	topic string
	queue chan Event
	sync  bool
	now   func() time.Time
}

func NewPublisher(scope *envelope.Scope, prod sarama.SyncProducer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		scope: scope,
		prod:  prod,
		topic: topic,
		queue: make(chan Event, defaultQueueSize),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish stamps and sends event. A full queue drops the event.
func (p *Publisher) Publish(event Event) {
	event.Timestamp = p.now()
	if p.sync {
		if err := p.send(event); err != nil {
			p.scope.Log.Errorf("publish %s: %v", event.Type, err)
		}
		return
	}
	select {
	case p.queue <- event:
	default:
		p.scope.Log.WithField("type", event.Type).Warn("event log queue full, dropping event")
	}
}

// Run sends queued events until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.queue:
			if err := p.send(event); err != nil {
				p.scope.Log.Errorf("publish %s: %v", event.Type, err)
			}
		}
	}
}

func (p *Publisher) send(event Event) error {
	val, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.PlayerID),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(event.Type)},
		},
	}
	_, _, err = p.prod.SendMessage(msg)
	return err
}

func (p *Publisher) Close() error {
	return p.prod.Close()
}

// ObservePolicy publishes the state changes and the terminal result of policy.
func (p *Publisher) ObservePolicy(playerID string, policy *matchmaking.Policy) {
	policy.OnStateChanged(func(tag string, from, to models.MatchmakingState) {
		p.Publish(Event{Type: EventStateChanged, PlayerID: playerID, SessionTag: tag, From: from.String(), To: to.String()})
	})
	policy.OnComplete(func(tag string, result models.CompleteResult, reason models.FailureReason) {
		event := Event{Type: EventMatchmakingComplete, PlayerID: playerID, SessionTag: tag, Result: result.String()}
		if reason != models.FailureReasonNone {
			event.Reason = reason.String()
		}
		p.Publish(event)
	})
}

// ObserveHandoff wraps done so the handoff outcome is published before done runs.
func (p *Publisher) ObserveHandoff(playerID string, done party.HandoffFunc) party.HandoffFunc {
	return func(outcome string, err error) {
		event := Event{Type: EventHandoffComplete, PlayerID: playerID, Outcome: outcome}
		if err != nil {
			event.Error = err.Error()
		}
		p.Publish(event)
		if done != nil {
			done(outcome, err)
		}
	}
}
