// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package directory

import (
	"context"
	"errors"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/oklog/ulid/v2"

	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

const defaultCallTimeout = 30 * time.Second

// Service is the SessionDirectory of one local player over a shared Backend.
//
// Backend calls run off the loop; their results are posted back to it. All
// methods must be called on the loop.
type Service struct {
	scope         *envelope.Scope
	loop          scheduler.Scheduler
	backend       Backend
	localPlayerID string
	hostAddress   string
	capabilities  Capabilities
	callTimeout   time.Duration
	maxResults    int
	exec          func(fn func())

	sessions map[string]*models.NamedSession

	findGeneration uint64
	findPending    bool
}

type Option func(*Service)

// WithCapabilities overrides which direct lookups are served. Both are on by default.
func WithCapabilities(capabilities Capabilities) Option {
	return func(s *Service) { s.capabilities = capabilities }
}

// WithHostAddress sets the address advertised in sessions this player creates.
func WithHostAddress(address string) Option {
	return func(s *Service) { s.hostAddress = address }
}

// WithCallTimeout bounds every backend call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.callTimeout = timeout
		}
	}
}

// WithMaxResults caps queries that do not set their own limit.
func WithMaxResults(maxResults int) Option {
	return func(s *Service) { s.maxResults = maxResults }
}

// WithSynchronousBackend runs backend calls on the caller's goroutine.
// Callbacks are still posted, so ordering matches the asynchronous mode.
func WithSynchronousBackend() Option {
	return func(s *Service) { s.exec = func(fn func()) { fn() } }
}

func NewService(scope *envelope.Scope, loop scheduler.Scheduler, backend Backend, localPlayerID string, opts ...Option) *Service {
	s := &Service{
		scope:         scope.WithField("localPlayerID", localPlayerID),
		loop:          loop,
		backend:       backend,
		localPlayerID: localPlayerID,
		capabilities:  Capabilities{SupportsFriendLookup: true, SupportsIDLookup: true},
		callTimeout:   defaultCallTimeout,
		exec:          func(fn func()) { go fn() },
		sessions:      make(map[string]*models.NamedSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) LocalPlayerID() string {
	return s.localPlayerID
}

func (s *Service) Capabilities() Capabilities {
	return s.capabilities
}

// call runs fn against the backend off the loop and posts then with its error.
func (s *Service) call(fn func(ctx context.Context) error, then func(err error)) {
	parent := s.scope.Ctx
	timeout := s.callTimeout
	s.exec(func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		err := fn(ctx)
		cancel()
		s.loop.Post(func() { then(err) })
	})
}

func (s *Service) CreateSession(name string, settings models.SessionSettings, done func(name string, ok bool)) {
	if _, exists := s.sessions[name]; exists {
		s.scope.Log.WithField("sessionName", name).Warn("create session: named session already exists")
		s.loop.Post(func() { done(name, false) })
		return
	}

	record := models.SessionRecord{
		ID:          ulid.Make().String(),
		OwnerID:     s.localPlayerID,
		HostAddress: s.hostAddress,
		Settings:    settings.Copy(),
	}
	named := &models.NamedSession{
		Name:      name,
		SessionID: record.ID,
		OwnerID:   record.OwnerID,
		IsHosting: true,
		State:     models.SessionStateCreating,
		Settings:  record.Settings,
	}
	s.sessions[name] = named

	s.call(func(ctx context.Context) error {
		if err := s.backend.Put(ctx, record); err != nil {
			return err
		}
		return s.backend.AddPlayer(ctx, record.ID, s.localPlayerID)
	}, func(err error) {
		if err != nil {
			s.scope.Log.WithField("sessionName", name).Errorf("create session: %v", err)
			if s.sessions[name] == named {
				delete(s.sessions, name)
			}
			done(name, false)
			return
		}
		named.State = models.SessionStatePending
		named.HostAddress = record.HostAddress
		named.RegisteredPlayers = []string{s.localPlayerID}
		s.scope.Log.WithField("sessionName", name).WithField("sessionID", record.ID).Info("session created")
		done(name, true)
	})
}

func (s *Service) JoinSession(name string, target models.SearchResult, done func(name string, result models.JoinResult)) {
	if _, exists := s.sessions[name]; exists {
		s.loop.Post(func() { done(name, models.JoinResultAlreadyInSession) })
		return
	}

	named := &models.NamedSession{
		Name:        name,
		SessionID:   target.SessionID,
		OwnerID:     target.OwnerID,
		HostAddress: target.HostAddress,
		State:       models.SessionStateCreating,
		Settings:    target.Settings.Copy(),
	}
	s.sessions[name] = named

	var joined models.SessionRecord
	s.call(func(ctx context.Context) error {
		if err := s.backend.AddPlayer(ctx, target.SessionID, s.localPlayerID); err != nil {
			return err
		}
		record, err := s.backend.Get(ctx, target.SessionID)
		if err != nil {
			return err
		}
		joined = record
		return nil
	}, func(err error) {
		result := joinResultFromError(err)
		if result != models.JoinResultSuccess {
			s.scope.Log.WithField("sessionName", name).WithField("sessionID", target.SessionID).
				Warnf("join session: %s (%v)", result, err)
			if s.sessions[name] == named {
				delete(s.sessions, name)
			}
			done(name, result)
			return
		}
		named.State = models.SessionStatePending
		named.Settings = joined.Settings
		named.HostAddress = joined.HostAddress
		named.RegisteredPlayers = joined.Players
		done(name, models.JoinResultSuccess)
	})
}

func joinResultFromError(err error) models.JoinResult {
	switch {
	case err == nil:
		return models.JoinResultSuccess
	case errors.Is(err, ErrSessionNotFound):
		return models.JoinResultSessionDoesNotExist
	case errors.Is(err, ErrSessionFull):
		return models.JoinResultSessionIsFull
	default:
		return models.JoinResultUnknownError
	}
}

func (s *Service) DestroySession(name string, done func(name string, ok bool)) {
	named, exists := s.sessions[name]
	if !exists || named.State == models.SessionStateDestroying {
		s.loop.Post(func() { done(name, false) })
		return
	}

	previous := named.State
	named.State = models.SessionStateDestroying
	sessionID := named.SessionID
	hosting := named.IsHosting

	s.call(func(ctx context.Context) error {
		if hosting {
			return s.backend.Delete(ctx, sessionID)
		}
		return s.backend.RemovePlayer(ctx, sessionID, s.localPlayerID)
	}, func(err error) {
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			s.scope.Log.WithField("sessionName", name).Errorf("destroy session: %v", err)
			named.State = previous
			done(name, false)
			return
		}
		if s.sessions[name] == named {
			delete(s.sessions, name)
		}
		done(name, true)
	})
}

func (s *Service) UpdateSession(name string, settings models.SessionSettings, done func(ok bool)) {
	named, exists := s.sessions[name]
	if !exists || !named.IsHosting {
		s.loop.Post(func() { done(false) })
		return
	}

	record := models.SessionRecord{
		ID:          named.SessionID,
		OwnerID:     named.OwnerID,
		HostAddress: named.HostAddress,
		Settings:    settings.Copy(),
	}
	s.call(func(ctx context.Context) error {
		return s.backend.Put(ctx, record)
	}, func(err error) {
		if err != nil {
			s.scope.Log.WithField("sessionName", name).Errorf("update session: %v", err)
			done(false)
			return
		}
		named.Settings = record.Settings
		done(true)
	})
}

// RefreshSession pulls the registered players of a named session from the backend.
func (s *Service) RefreshSession(name string, done func(ok bool)) {
	named, exists := s.sessions[name]
	if !exists {
		s.loop.Post(func() { done(false) })
		return
	}

	var record models.SessionRecord
	s.call(func(ctx context.Context) (err error) {
		record, err = s.backend.Get(ctx, named.SessionID)
		return err
	}, func(err error) {
		if err != nil {
			s.scope.Log.WithField("sessionName", name).Warnf("refresh session: %v", err)
			done(false)
			return
		}
		named.RegisteredPlayers = utils.AppendUnique(named.RegisteredPlayers, record.Players...)
		done(true)
	})
}

// startFind marks a find as pending and returns a delivery function that drops stale results.
func (s *Service) startFind(done func(ok bool, results []models.SearchResult)) func(ok bool, results []models.SearchResult) {
	s.findGeneration++
	s.findPending = true
	generation := s.findGeneration
	return func(ok bool, results []models.SearchResult) {
		if generation != s.findGeneration {
			return
		}
		s.findPending = false
		done(ok, results)
	}
}

func (s *Service) FindSessions(query models.SessionQuery, done func(ok bool, results []models.SearchResult)) {
	deliver := s.startFind(done)
	limit := query.MaxResults
	if limit <= 0 {
		limit = s.maxResults
	}

	var results []models.SearchResult
	s.call(func(ctx context.Context) error {
		records, err := s.backend.List(ctx)
		if err != nil {
			return err
		}
		results = pie.Map(
			pie.Filter(records, query.Matches),
			func(r models.SessionRecord) models.SearchResult { return r.ToSearchResult() },
		)
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}
		return nil
	}, func(err error) {
		if err != nil {
			s.scope.Log.Errorf("find sessions: %v", err)
			deliver(false, nil)
			return
		}
		deliver(true, results)
	})
}

// FindFriendSession returns every session the friend is registered in.
func (s *Service) FindFriendSession(friendID string, done func(ok bool, results []models.SearchResult)) {
	if !s.capabilities.SupportsFriendLookup {
		s.loop.Post(func() { done(false, nil) })
		return
	}
	deliver := s.startFind(done)

	var results []models.SearchResult
	s.call(func(ctx context.Context) error {
		records, err := s.backend.List(ctx)
		if err != nil {
			return err
		}
		for _, record := range records {
			if record.OwnerID == friendID || utils.Contains(record.Players, friendID) {
				results = append(results, record.ToSearchResult())
			}
		}
		return nil
	}, func(err error) {
		if err != nil {
			s.scope.Log.Errorf("find friend session: %v", err)
			deliver(false, nil)
			return
		}
		deliver(true, results)
	})
}

func (s *Service) FindSessionByID(sessionID string, done func(ok bool, results []models.SearchResult)) {
	if !s.capabilities.SupportsIDLookup {
		s.loop.Post(func() { done(false, nil) })
		return
	}
	deliver := s.startFind(done)

	var results []models.SearchResult
	s.call(func(ctx context.Context) error {
		record, err := s.backend.Get(ctx, sessionID)
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		results = []models.SearchResult{record.ToSearchResult()}
		return nil
	}, func(err error) {
		if err != nil {
			s.scope.Log.Errorf("find session by id: %v", err)
			deliver(false, nil)
			return
		}
		deliver(true, results)
	})
}

func (s *Service) CancelFindSessions(done func(ok bool)) {
	if !s.findPending {
		s.loop.Post(func() { done(false) })
		return
	}
	s.findGeneration++
	s.findPending = false
	s.loop.Post(func() { done(true) })
}

func (s *Service) GetSessionState(name string) models.SessionState {
	named, ok := s.sessions[name]
	if !ok {
		return models.SessionStateNoSession
	}
	return named.State
}

func (s *Service) GetSessionSettings(name string) (models.SessionSettings, bool) {
	named, ok := s.sessions[name]
	if !ok {
		return models.SessionSettings{}, false
	}
	return named.Settings.Copy(), true
}

func (s *Service) GetNamedSession(name string) (models.NamedSession, bool) {
	named, ok := s.sessions[name]
	if !ok {
		return models.NamedSession{}, false
	}
	out := *named
	out.Settings = named.Settings.Copy()
	out.RegisteredPlayers = append([]string(nil), named.RegisteredPlayers...)
	return out, true
}

// RegisterPlayers records players as present in the named session.
func (s *Service) RegisterPlayers(name string, playerIDs ...string) bool {
	named, ok := s.sessions[name]
	if !ok {
		return false
	}
	named.RegisteredPlayers = utils.AppendUnique(named.RegisteredPlayers, playerIDs...)
	return true
}

func (s *Service) UnregisterPlayers(name string, playerIDs ...string) bool {
	named, ok := s.sessions[name]
	if !ok {
		return false
	}
	named.RegisteredPlayers = pie.Filter(named.RegisteredPlayers, func(id string) bool {
		return !utils.Contains(playerIDs, id)
	})
	return true
}

// BanPlayer adds the player to the ban list and republishes the settings when hosting.
func (s *Service) BanPlayer(name string, playerID string) bool {
	named, ok := s.sessions[name]
	if !ok {
		return false
	}
	if named.Settings.IsBanned(playerID) {
		return true
	}
	settings := named.Settings.Copy()
	settings.BanList = append(settings.BanList, playerID)
	named.Settings = settings
	if named.IsHosting {
		s.UpdateSession(name, settings, func(ok bool) {
			if !ok {
				s.scope.Log.WithField("playerID", playerID).Warn("ban list not published")
			}
		})
	}
	return true
}

func (s *Service) IsPlayerBanned(name string, playerID string) bool {
	named, ok := s.sessions[name]
	if !ok {
		return false
	}
	return named.Settings.IsBanned(playerID)
}
