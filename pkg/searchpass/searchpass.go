// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package searchpass runs one round of session discovery for a matchmaking policy.
//
// A pass makes up to MaxSearchAttempts directory attempts. Each attempt uses the
// broad query, a friend lookup or an id lookup depending on the specific session
// query, then re-applies every predicate on the client because the direct lookups
// cannot express them server-side. The first attempt with surviving candidates is
// ranked and completes the pass.
package searchpass

import (
	"errors"
	"fmt"
	"time"

	"github.com/AccelByte/extend-session-matchmaker/pkg/config"
	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

var ErrSearchInProgress = errors.New("search pass already in progress")

// Ranker orders candidates before the pass completes.
type Ranker interface {
	Rank(results []models.SearchResult, done func(ranked []models.SearchResult))
}

// PassThroughRanker keeps directory order.
type PassThroughRanker struct{}

func (PassThroughRanker) Rank(results []models.SearchResult, done func(ranked []models.SearchResult)) {
	done(results)
}

type Option func(*SearchPass)

func WithRanker(ranker Ranker) Option {
	return func(s *SearchPass) { s.ranker = ranker }
}

func WithMetrics(m metrics.MatchmakingMetrics) Option {
	return func(s *SearchPass) { s.metrics = m }
}

// SearchPass must only be used on its loop.
type SearchPass struct {
	scope   *envelope.Scope
	loop    scheduler.Scheduler
	dir     directory.SessionDirectory
	cfg     *config.Config
	ranker  Ranker
	metrics metrics.MatchmakingMetrics

	onComplete func(sessionTag string, result models.PassCompleteResult)

	sessionTag string
	params     models.MatchmakingParams
	state      models.SearchPassState
	attemptIdx int
	results    []models.SearchResult
	retryTimer *scheduler.Timer
	generation uint64

	directoryFailures int

	findInFlight       bool
	cancelFindInFlight bool
	rankInFlight       bool
	cancelRequested    bool
	terminalSent       bool
}

func New(scope *envelope.Scope, loop scheduler.Scheduler, dir directory.SessionDirectory, cfg *config.Config, opts ...Option) *SearchPass {
	s := &SearchPass{
		scope:  scope,
		loop:   loop,
		dir:    dir,
		cfg:    cfg,
		ranker: PassThroughRanker{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnComplete sets the terminal callback. It fires once per started pass.
func (s *SearchPass) OnComplete(fn func(sessionTag string, result models.PassCompleteResult)) {
	s.onComplete = fn
}

func (s *SearchPass) State() models.SearchPassState {
	return s.state
}

// IsSearching reports whether an attempt or the ranking step is underway.
func (s *SearchPass) IsSearching() bool {
	return s.state == models.SearchPassStateSearching || s.state == models.SearchPassStatePingingSessions
}

// CurrentAttemptIdx is the 1-based index of the latest attempt, 0 before the first.
func (s *SearchPass) CurrentAttemptIdx() int {
	return s.attemptIdx
}

// Results returns the candidates of the last successful pass.
func (s *SearchPass) Results() []models.SearchResult {
	return append([]models.SearchResult(nil), s.results...)
}

func (s *SearchPass) SessionTag() string {
	return s.sessionTag
}

// StartSearch begins a new pass. Invalid input completes the pass with Failure before returning.
func (s *SearchPass) StartSearch(sessionTag string, params models.MatchmakingParams) error {
	if s.IsSearching() || s.state == models.SearchPassStateCanceling {
		s.scope.Log.WithField("state", s.state.String()).Warn("start search while a pass is active")
		return ErrSearchInProgress
	}

	s.sessionTag = sessionTag
	s.params = params
	s.attemptIdx = 0
	s.directoryFailures = 0
	s.results = nil
	s.cancelRequested = false
	s.terminalSent = false

	if !constants.IsValidSessionTag(sessionTag) {
		s.complete(models.PassCompleteResultFailure)
		return models.ValidationErrorSessionTag
	}
	if err := params.Validate(); err != nil {
		s.complete(models.PassCompleteResultFailure)
		return err
	}

	s.scope.Log.WithField("sessionTag", sessionTag).
		WithField("query", params.SpecificSession.String()).
		Debugf("search pass started, elo %d +/- %d", params.Elo, params.EloRange)
	s.startAttempt()
	return nil
}

func (s *SearchPass) restartDelay() time.Duration {
	if s.params.SearchRetryDelay > 0 {
		return s.params.SearchRetryDelay
	}
	return s.cfg.SearchPassRestartDelay
}

func (s *SearchPass) startAttempt() {
	s.retryTimer = nil
	s.attemptIdx++
	s.state = models.SearchPassStateSearching
	s.findInFlight = true
	s.generation++
	generation := s.generation

	done := func(ok bool, results []models.SearchResult) {
		s.onFound(generation, ok, results)
	}

	query := s.params.SpecificSession
	caps := s.dir.Capabilities()
	switch {
	case query.Type == models.SpecificSessionQueryFriendID && caps.SupportsFriendLookup:
		s.dir.FindFriendSession(query.TargetID, done)
	case query.Type == models.SpecificSessionQuerySessionID && caps.SupportsIDLookup:
		s.dir.FindSessionByID(query.TargetID, done)
	case query.Type == models.SpecificSessionQuerySessionID:
		q := buildQuery(s.sessionTag, s.params, s.cfg.MaxSearchResults, false)
		q.SessionIDs = []string{query.TargetID}
		s.dir.FindSessions(q, done)
	case query.Type == models.SpecificSessionQueryFriendID:
		q := buildQuery(s.sessionTag, s.params, s.cfg.MaxSearchResults, false)
		q.PlayerIDs = []string{query.TargetID}
		s.dir.FindSessions(q, done)
	case query.IsSpecified():
		q := buildQuery(s.sessionTag, s.params, s.cfg.MaxSearchResults, false)
		q.Predicates = append(q.Predicates, models.QueryPredicate{Key: constants.SettingOwnerID, Value: query.TargetID, Op: models.QueryOpEquals})
		s.dir.FindSessions(q, done)
	default:
		s.dir.FindSessions(buildQuery(s.sessionTag, s.params, s.cfg.MaxSearchResults, true), done)
	}
}

func (s *SearchPass) onFound(generation uint64, ok bool, results []models.SearchResult) {
	if generation != s.generation {
		return
	}
	s.findInFlight = false
	if s.state == models.SearchPassStateCanceling {
		s.checkCancelComplete()
		return
	}

	if !ok {
		s.directoryFailures++
		s.scope.Log.WithField("attempt", s.attemptIdx).Warn("directory query failed")
	}

	filter := candidateFilter{
		localPlayerID: s.dir.LocalPlayerID(),
		sessionTag:    s.sessionTag,
		params:        s.params,
		regular:       !s.params.SpecificSession.IsSpecified(),
	}
	filtered := filter.apply(results)
	s.scope.Log.WithField("attempt", s.attemptIdx).Debugf("%d results, %d after filtering", len(results), len(filtered))
	if len(filtered) == 0 {
		s.attemptFailed()
		return
	}

	s.state = models.SearchPassStatePingingSessions
	s.rankInFlight = true
	s.ranker.Rank(filtered, func(ranked []models.SearchResult) {
		if generation != s.generation {
			return
		}
		s.rankInFlight = false
		if s.state == models.SearchPassStateCanceling {
			s.checkCancelComplete()
			return
		}
		s.results = ranked
		s.complete(models.PassCompleteResultSuccess)
	})
}

func (s *SearchPass) attemptFailed() {
	if s.attemptIdx < s.params.MaxSearchAttempts {
		s.retryTimer = s.loop.AfterFunc(s.restartDelay(), s.startAttempt)
		return
	}
	if s.directoryFailures == s.attemptIdx {
		s.complete(models.PassCompleteResultFailure)
		return
	}
	s.complete(models.PassCompleteResultNoSession)
}

// CancelSearch stops the pass. It waits for an outstanding directory query to acknowledge the cancel.
func (s *SearchPass) CancelSearch() bool {
	if !s.IsSearching() {
		s.scope.Log.WithField("state", s.state.String()).Warn("cancel search while not searching")
		return false
	}

	s.cancelRequested = true
	s.state = models.SearchPassStateCanceling
	s.retryTimer.Stop()
	s.retryTimer = nil

	if s.findInFlight {
		s.cancelFindInFlight = true
		s.dir.CancelFindSessions(func(ok bool) {
			s.cancelFindInFlight = false
			s.findInFlight = false
			if !ok {
				s.scope.Log.Debug("directory had no query to cancel")
			}
			s.checkCancelComplete()
		})
		return true
	}
	s.checkCancelComplete()
	return true
}

func (s *SearchPass) checkCancelComplete() {
	if !s.cancelRequested || s.terminalSent {
		return
	}
	if s.findInFlight || s.cancelFindInFlight || s.rankInFlight {
		return
	}
	s.complete(models.PassCompleteResultCanceled)
}

func (s *SearchPass) complete(result models.PassCompleteResult) {
	if s.terminalSent {
		return
	}
	s.terminalSent = true

	switch result {
	case models.PassCompleteResultSuccess, models.PassCompleteResultNoSession:
		s.state = models.SearchPassStateComplete
	case models.PassCompleteResultCanceled:
		s.state = models.SearchPassStateCanceled
	default:
		s.state = models.SearchPassStateFailure
	}

	if s.metrics != nil {
		s.metrics.AddSearchPassComplete(result.String(), s.attemptIdx)
	}
	s.scope.Log.WithField("sessionTag", s.sessionTag).
		WithField("attempts", s.attemptIdx).
		Info(fmt.Sprintf("search pass complete: %s (%d candidates)", result, len(s.results)))
	if s.onComplete != nil {
		s.onComplete(s.sessionTag, result)
	}
}

// Invalidate drops the terminal callback and any pending retry. Call only once the pass is terminal.
func (s *SearchPass) Invalidate() {
	s.retryTimer.Stop()
	s.retryTimer = nil
	s.generation++
	s.onComplete = nil
	s.results = nil
}
