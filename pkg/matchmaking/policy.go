// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package matchmaking drives one matchmaking attempt from start to a terminal result.
//
// A Policy searches with a widening elo window, tests every candidate of a pass by
// requesting a reservation from its beacon or joining directly, and hosts a session
// when searching is exhausted. Every phase is asynchronous and can be canceled; the
// terminal callback fires exactly once.
package matchmaking

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-session-matchmaker/pkg/beacon"
	"github.com/AccelByte/extend-session-matchmaker/pkg/config"
	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
	"github.com/AccelByte/extend-session-matchmaker/pkg/searchpass"
)

var (
	ErrAlreadyStarted = errors.New("matchmaking policy already started")
	ErrNotActive      = errors.New("matchmaking policy is not active")
)

const tickInterval = time.Second

// CompleteFunc receives the terminal result of a policy.
type CompleteFunc func(sessionTag string, result models.CompleteResult, reason models.FailureReason)

// StateFunc observes every state transition. It runs on the loop after the transition.
type StateFunc func(sessionTag string, from, to models.MatchmakingState)

type Option func(*Policy)

func WithMetrics(m metrics.MatchmakingMetrics) Option {
	return func(p *Policy) { p.metrics = m }
}

// WithConnectionOptions applies opts to every reservation connection the policy opens.
func WithConnectionOptions(opts ...beacon.ConnectionOption) Option {
	return func(p *Policy) { p.connOpts = append(p.connOpts, opts...) }
}

// WithSearchPassOptions applies opts to the policy's search pass.
func WithSearchPassOptions(opts ...searchpass.Option) Option {
	return func(p *Policy) { p.passOpts = append(p.passOpts, opts...) }
}

// Policy is single use. It must only be used on its loop.
type Policy struct {
	scope    *envelope.Scope
	loop     scheduler.Scheduler
	dir      directory.SessionDirectory
	dialer   beacon.Dialer
	cfg      *config.Config
	metrics  metrics.MatchmakingMetrics
	connOpts []beacon.ConnectionOption
	passOpts []searchpass.Option

	onComplete []CompleteFunc
	onState    []StateFunc
	onTick     []func(elapsed time.Duration)

	started       bool
	sessionTag    string
	params        models.MatchmakingParams
	flags         models.MatchmakingFlags
	mode          models.MatchmakingMode
	sessionToJoin *models.SearchResult

	state     models.MatchmakingState
	result    models.CompleteResult
	reason    models.FailureReason
	startedAt time.Time
	elapsed   time.Duration

	pass           *searchpass.SearchPass
	searchAttempt  int
	lastPassFailed bool
	candidates     []models.SearchResult
	candidateIdx   int

	conn            *beacon.Connection
	reservationHeld bool
	startTimer      *scheduler.Timer
	retryTimer      *scheduler.Timer
	ticker          *scheduler.Timer

	searchInFlight            bool
	reservationInFlight       bool
	reservationCancelInFlight bool
	createInFlight            bool
	joinInFlight              bool
	destroyInFlight           bool
	cancelRequested           bool
	terminalSent              bool
}

func New(scope *envelope.Scope, loop scheduler.Scheduler, dir directory.SessionDirectory, dialer beacon.Dialer, cfg *config.Config, opts ...Option) *Policy {
	p := &Policy{
		scope:  scope,
		loop:   loop,
		dir:    dir,
		dialer: dialer,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnComplete adds a terminal listener.
func (p *Policy) OnComplete(fn CompleteFunc) {
	p.onComplete = append(p.onComplete, fn)
}

// OnStateChanged adds a state transition listener.
func (p *Policy) OnStateChanged(fn StateFunc) {
	p.onState = append(p.onState, fn)
}

// OnTick adds a listener for the elapsed-time ticker.
func (p *Policy) OnTick(fn func(elapsed time.Duration)) {
	p.onTick = append(p.onTick, fn)
}

func (p *Policy) State() models.MatchmakingState {
	return p.state
}

func (p *Policy) SessionTag() string {
	return p.sessionTag
}

func (p *Policy) Params() models.MatchmakingParams {
	return p.params
}

func (p *Policy) Mode() models.MatchmakingMode {
	return p.mode
}

// Result returns the terminal result, NotStarted until the policy completes.
func (p *Policy) Result() (models.CompleteResult, models.FailureReason) {
	return p.result, p.reason
}

func (p *Policy) Elapsed() time.Duration {
	return p.elapsed
}

// SearchAttempt is the 1-based index of the latest search, 0 before the first.
func (p *Policy) SearchAttempt() int {
	return p.searchAttempt
}

// IsMatchmaking reports whether the policy has started and not reached a terminal state.
func (p *Policy) IsMatchmaking() bool {
	return p.started && !p.terminalSent
}

func (p *Policy) IsCanceling() bool {
	return p.state == models.MatchmakingStateCanceling
}

// EloSearchRangeFor returns the elo window used by broad search attempt n.
func (p *Policy) EloSearchRangeFor(attempt int) int {
	return EloSearchRange(p.params.EloRange, p.params.EloSearchStep, attempt)
}

// EloSearchRange is base + step*(attempt-1); attempts below 1 use the base window.
func EloSearchRange(base, step, attempt int) int {
	if attempt < 1 {
		return base
	}
	return base + step*(attempt-1)
}

// StartMatchmaking runs the policy. Invalid input completes it with Failure/InvalidParams before returning.
// sessionToJoin is required by JoinOnly and ignored otherwise.
func (p *Policy) StartMatchmaking(sessionTag string, params models.MatchmakingParams, flags models.MatchmakingFlags, mode models.MatchmakingMode, startDelay time.Duration, sessionToJoin *models.SearchResult) error {
	if p.started {
		p.scope.Log.WithField("sessionTag", sessionTag).Warn("matchmaking policy already started")
		return ErrAlreadyStarted
	}
	p.started = true
	p.sessionTag = sessionTag
	p.params = params
	p.flags = flags
	p.mode = mode
	p.startedAt = p.loop.Now()
	p.scope = p.scope.NewChildScope("matchmaking").WithField("sessionTag", sessionTag).WithField("mode", mode.String())
	p.scope.SetAttributes(envelope.SessionTagAttr, sessionTag)
	p.scope.SetAttributes(envelope.PlayerIDAttr, p.dir.LocalPlayerID())

	if err := p.validate(sessionToJoin); err != nil {
		p.scope.Log.WithField("code", models.ValidationErrorCode(err)).Warnf("invalid matchmaking params: %v", err)
		p.complete(models.CompleteResultFailure, models.FailureReasonInvalidParams)
		return err
	}
	if sessionToJoin != nil {
		target := *sessionToJoin
		p.sessionToJoin = &target
	}

	passOpts := p.passOpts
	if p.metrics != nil {
		passOpts = append([]searchpass.Option{searchpass.WithMetrics(p.metrics)}, passOpts...)
	}
	p.pass = searchpass.New(p.scope, p.loop, p.dir, p.cfg, passOpts...)
	p.pass.OnComplete(p.onSearchPassComplete)
	p.ticker = p.loop.Every(tickInterval, p.tick)

	p.setState(models.MatchmakingStateStarting)
	p.scope.Log.WithFields(logrus.Fields{
		"elo":        params.Elo,
		"eloRange":   params.EloRange,
		"startDelay": startDelay,
	}).Info("matchmaking started")
	p.startTimer = p.loop.AfterFunc(startDelay, p.begin)
	return nil
}

func (p *Policy) validate(sessionToJoin *models.SearchResult) error {
	if !constants.IsValidSessionTag(p.sessionTag) {
		return models.ValidationErrorSessionTag
	}
	if err := p.params.Validate(); err != nil {
		return err
	}
	if p.mode.CanHost() && !p.flags.NoHostFallback {
		if err := p.params.HostParams.Validate(); err != nil {
			return err
		}
	}
	if p.mode == models.MatchmakingModeJoinOnly && (sessionToJoin == nil || !sessionToJoin.IsValid()) {
		return models.ValidationErrorSessionToJoin
	}
	return nil
}

func (p *Policy) begin() {
	p.startTimer = nil
	switch p.mode {
	case models.MatchmakingModeCreateOnly:
		p.createSession()
	case models.MatchmakingModeJoinOnly:
		p.candidates = []models.SearchResult{*p.sessionToJoin}
		p.candidateIdx = -1
		p.testNextCandidate()
	default:
		p.startSearch()
	}
}

func (p *Policy) tick() {
	p.elapsed = p.loop.Now().Sub(p.startedAt)
	for _, fn := range p.onTick {
		fn(p.elapsed)
	}
}

func (p *Policy) setState(state models.MatchmakingState) {
	if p.state == state {
		return
	}
	from := p.state
	p.state = state
	p.scope.Log.Debugf("matchmaking state %s -> %s", from, state)
	p.scope.AddEvent("state", "from", from.String(), "to", state.String())

	listeners := p.onState
	sessionTag := p.sessionTag
	p.loop.Post(func() {
		for _, fn := range listeners {
			fn(sessionTag, from, state)
		}
	})
}

// startSearch runs one search pass. Broad searches get one directory attempt at the
// widened window; specific queries keep their own retry count.
func (p *Policy) startSearch() {
	p.retryTimer = nil
	p.searchAttempt++
	p.setState(models.MatchmakingStateSearching)

	params := p.params
	if !params.SpecificSession.IsSpecified() {
		params.EloRange = p.EloSearchRangeFor(p.searchAttempt)
		params.MaxSearchAttempts = 1
	}

	p.scope.Log.WithField("attempt", p.searchAttempt).Debugf("searching with elo range %d", params.EloRange)
	p.searchInFlight = true
	if err := p.pass.StartSearch(p.sessionTag, params); err != nil {
		p.scope.Log.Errorf("unable to start search pass: %v", err)
	}
}

func (p *Policy) onSearchPassComplete(_ string, result models.PassCompleteResult) {
	p.searchInFlight = false
	if p.cancelRequested {
		p.checkCancelComplete()
		return
	}

	p.lastPassFailed = result == models.PassCompleteResultFailure
	if p.mode == models.MatchmakingModeSearchOnly {
		switch result {
		case models.PassCompleteResultSuccess:
			p.candidates = p.pass.Results()
			p.complete(models.CompleteResultSuccess, models.FailureReasonNone)
		case models.PassCompleteResultNoSession:
			p.complete(models.CompleteResultNoResults, models.FailureReasonNone)
		default:
			p.complete(models.CompleteResultFailure, models.FailureReasonSearchFailure)
		}
		return
	}

	switch result {
	case models.PassCompleteResultSuccess:
		p.candidates = p.pass.Results()
		p.candidateIdx = -1
		p.testNextCandidate()
	case models.PassCompleteResultCanceled:
		p.scope.Log.Warn("search pass canceled without a cancel request")
		p.complete(models.CompleteResultFailure, models.FailureReasonSearchFailure)
	default:
		p.noCandidates()
	}
}

// noCandidates decides between widening, hosting and giving up once a pass produced nothing usable.
func (p *Policy) noCandidates() {
	p.candidates = nil
	if p.params.SpecificSession.IsSpecified() {
		p.hostOrGiveUp()
		return
	}

	threshold := p.cfg.EloRangeBeforeHosting
	if threshold > 0 && p.canHost() && p.EloSearchRangeFor(p.searchAttempt) >= threshold {
		p.scope.Log.WithField("attempt", p.searchAttempt).Info("elo range reached hosting threshold")
		p.createSession()
		return
	}
	if p.searchAttempt < p.params.MaxSearchAttempts {
		p.retryTimer = p.loop.AfterFunc(p.cfg.MatchmakingRestartDelay, p.startSearch)
		return
	}
	p.hostOrGiveUp()
}

func (p *Policy) canHost() bool {
	return p.mode.CanHost() && !p.flags.NoHostFallback
}

func (p *Policy) hostOrGiveUp() {
	if p.canHost() {
		p.createSession()
		return
	}
	if p.lastPassFailed {
		p.complete(models.CompleteResultFailure, models.FailureReasonSearchFailure)
		return
	}
	p.complete(models.CompleteResultNoResults, models.FailureReasonNone)
}

// testNextCandidate moves to the next result of the pass.
func (p *Policy) testNextCandidate() {
	p.candidateIdx++
	if p.candidateIdx >= len(p.candidates) {
		if p.mode == models.MatchmakingModeJoinOnly {
			p.complete(models.CompleteResultFailure, models.FailureReasonJoinFailure)
			return
		}
		p.noCandidates()
		return
	}

	candidate := p.candidates[p.candidateIdx]
	if p.flags.NoReservation || !candidate.RequiresReservation() {
		p.joinSession(candidate)
		return
	}
	p.requestReservation(candidate)
}

func (p *Policy) requestReservation(candidate models.SearchResult) {
	if p.conn != nil {
		p.teardownConnection(func() { p.requestReservation(candidate) })
		return
	}
	address, err := beacon.Address(candidate)
	if err != nil {
		p.scope.Log.WithField("candidate", candidate.String()).Warnf("skipping candidate: %v", err)
		p.testNextCandidate()
		return
	}

	p.setState(models.MatchmakingStateRequestingReservation)
	localID := p.dir.LocalPlayerID()
	conn := beacon.NewConnection(p.scope, p.loop, p.dialer, address, localID, p.cfg.ReservationRequestTimeout, p.connOpts...)
	p.conn = conn
	res := models.NewReservation(localID, p.params.ReservationMembers()...)

	p.reservationInFlight = true
	conn.RequestReservation(candidate.SessionID, res, func(result models.ReservationCompleteResult, err error) {
		p.reservationInFlight = false
		if p.metrics != nil {
			p.metrics.AddReservationResult(result.String())
		}
		if p.cancelRequested {
			// an unanswered request may still have been admitted
			p.reservationHeld = err != nil || result == models.ReservationAccepted
			p.teardownConnection(p.checkCancelComplete)
			return
		}
		if err == nil && result == models.ReservationAccepted {
			p.reservationHeld = true
			p.joinSession(candidate)
			return
		}
		p.scope.Log.WithField("candidate", candidate.String()).
			WithField("result", result.String()).
			Infof("reservation not granted: %v", err)
		p.teardownConnection(p.testNextCandidate)
	})
}

// teardownConnection releases a held reservation, closes the connection and then runs next.
func (p *Policy) teardownConnection(next func()) {
	conn := p.conn
	if conn == nil {
		next()
		return
	}
	if !p.reservationHeld {
		p.closeConnection()
		next()
		return
	}

	p.reservationCancelInFlight = true
	conn.CancelReservation(func(ok bool) {
		p.reservationCancelInFlight = false
		if !ok {
			p.scope.Log.Debug("beacon did not confirm reservation release")
		}
		p.closeConnection()
		if p.cancelRequested {
			p.checkCancelComplete()
			return
		}
		next()
	})
}

func (p *Policy) closeConnection() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.reservationHeld = false
}

func (p *Policy) joinSession(candidate models.SearchResult) {
	if p.dir.GetSessionState(p.sessionTag) != models.SessionStateNoSession {
		p.destroySession(func() { p.joinSession(candidate) })
		return
	}

	p.setState(models.MatchmakingStateJoiningSession)
	p.joinInFlight = true
	p.dir.JoinSession(p.sessionTag, candidate, func(_ string, result models.JoinResult) {
		p.joinInFlight = false
		if p.cancelRequested {
			if result == models.JoinResultSuccess {
				p.destroySession(p.checkCancelComplete)
				return
			}
			p.checkCancelComplete()
			return
		}
		if result == models.JoinResultSuccess {
			p.closeConnection()
			p.complete(models.CompleteResultSuccess, models.FailureReasonNone)
			return
		}
		p.scope.Log.WithField("candidate", candidate.String()).Infof("join failed: %s", result)
		p.teardownConnection(p.testNextCandidate)
	})
}

// createSession hosts a new session, clearing any held session and reservation connection first.
func (p *Policy) createSession() {
	if p.dir.GetSessionState(p.sessionTag) != models.SessionStateNoSession {
		p.destroySession(p.createSession)
		return
	}
	if p.conn != nil {
		p.teardownConnection(p.createSession)
		return
	}

	p.setState(models.MatchmakingStateCreatingSession)
	settings := buildSessionSettings(p.sessionTag, p.dir.LocalPlayerID(), p.params.HostParams, p.cfg.BeaconPort)
	p.createInFlight = true
	p.dir.CreateSession(p.sessionTag, settings, func(_ string, ok bool) {
		p.createInFlight = false
		if p.cancelRequested {
			if ok {
				p.destroySession(p.checkCancelComplete)
				return
			}
			p.checkCancelComplete()
			return
		}
		if !ok {
			p.complete(models.CompleteResultFailure, models.FailureReasonCreateFailure)
			return
		}
		p.complete(models.CompleteResultSessionCreated, models.FailureReasonNone)
	})
}

func (p *Policy) destroySession(next func()) {
	p.destroyInFlight = true
	p.dir.DestroySession(p.sessionTag, func(_ string, ok bool) {
		p.destroyInFlight = false
		if p.cancelRequested {
			p.checkCancelComplete()
			return
		}
		if !ok {
			p.complete(models.CompleteResultFailure, models.FailureReasonDestroyFailure)
			return
		}
		next()
	})
}

// CancelMatchmaking stops the policy. The Canceled result fires once every outstanding operation has called back.
func (p *Policy) CancelMatchmaking() error {
	if !p.IsMatchmaking() {
		p.scope.Log.Warn("cancel matchmaking while not matchmaking")
		return ErrNotActive
	}
	if p.cancelRequested {
		p.scope.Log.Warn("matchmaking already canceling")
		return nil
	}

	p.cancelRequested = true
	p.setState(models.MatchmakingStateCanceling)
	p.startTimer.Stop()
	p.startTimer = nil
	p.retryTimer.Stop()
	p.retryTimer = nil

	if p.searchInFlight && !p.pass.CancelSearch() {
		p.searchInFlight = false
	}

	switch conn := p.conn; {
	case p.reservationCancelInFlight || p.reservationInFlight:
		// the outstanding beacon call releases the reservation and reports back through the gate
	case conn != nil && p.reservationHeld:
		p.reservationCancelInFlight = true
		conn.CancelReservation(func(ok bool) {
			p.reservationCancelInFlight = false
			p.closeConnection()
			p.checkCancelComplete()
		})
	default:
		p.closeConnection()
	}

	p.checkCancelComplete()
	return nil
}

func (p *Policy) operationsOutstanding() bool {
	return p.searchInFlight || p.reservationInFlight || p.reservationCancelInFlight ||
		p.createInFlight || p.joinInFlight || p.destroyInFlight
}

func (p *Policy) checkCancelComplete() {
	if !p.cancelRequested || p.terminalSent || p.operationsOutstanding() {
		return
	}
	p.complete(models.CompleteResultCanceled, models.FailureReasonNone)
}

func (p *Policy) complete(result models.CompleteResult, reason models.FailureReason) {
	if p.terminalSent {
		return
	}
	p.terminalSent = true
	p.result = result
	p.reason = reason
	p.ticker.Stop()
	p.ticker = nil
	p.retryTimer.Stop()
	p.retryTimer = nil
	p.elapsed = p.loop.Now().Sub(p.startedAt)

	switch result {
	case models.CompleteResultCanceled:
		p.setState(models.MatchmakingStateCanceled)
	case models.CompleteResultFailure:
		p.setState(models.MatchmakingStateFailure)
	default:
		p.setState(models.MatchmakingStateComplete)
	}

	if p.metrics != nil {
		p.metrics.AddMatchmakingComplete(p.sessionTag, result.String(), reason.String())
		p.metrics.ObserveMatchmakingElapsed(p.sessionTag, p.elapsed)
	}
	p.scope.Log.WithFields(logrus.Fields{
		"result":   result.String(),
		"reason":   reason.String(),
		"attempts": p.searchAttempt,
		"elapsed":  p.elapsed,
	}).Info("matchmaking complete")
	p.scope.Finish()

	for _, fn := range p.onComplete {
		fn(p.sessionTag, result, reason)
	}
}

// Candidates returns the results of the last successful search pass.
func (p *Policy) Candidates() []models.SearchResult {
	return append([]models.SearchResult(nil), p.candidates...)
}

// Invalidate releases the search pass, the reservation connection, timers and listeners.
// It is a no-op while the policy is still matchmaking.
func (p *Policy) Invalidate() {
	if p.IsMatchmaking() {
		p.scope.Log.Error("invalidate called on an active matchmaking policy")
		return
	}
	if p.pass != nil {
		p.pass.Invalidate()
		p.pass = nil
	}
	p.closeConnection()
	p.startTimer.Stop()
	p.retryTimer.Stop()
	p.ticker.Stop()
	p.startTimer, p.retryTimer, p.ticker = nil, nil, nil
	p.onComplete = nil
	p.onState = nil
	p.onTick = nil
}
