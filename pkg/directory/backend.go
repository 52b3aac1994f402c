// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

// Backend stores session records shared by every player.
type Backend interface {
	// Put creates the record or replaces its owner, address and settings. Players are kept.
	Put(ctx context.Context, record models.SessionRecord) error
	Get(ctx context.Context, sessionID string) (models.SessionRecord, error)
	List(ctx context.Context) ([]models.SessionRecord, error)
	Delete(ctx context.Context, sessionID string) error
	// AddPlayer is idempotent for a player already in the session.
	AddPlayer(ctx context.Context, sessionID, playerID string) error
	RemovePlayer(ctx context.Context, sessionID, playerID string) error
}

// MemoryBackend keeps records in process.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]*models.SessionRecord
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]*models.SessionRecord)}
}

func (b *MemoryBackend) Put(_ context.Context, record models.SessionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := record
	stored.Settings = record.Settings.Copy()
	if existing, ok := b.sessions[record.ID]; ok {
		stored.Players = existing.Players
	} else {
		stored.Players = nil
	}
	b.sessions[record.ID] = &stored
	return nil
}

func (b *MemoryBackend) Get(_ context.Context, sessionID string) (models.SessionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.sessions[sessionID]
	if !ok {
		return models.SessionRecord{}, ErrSessionNotFound
	}
	return copyRecord(*record), nil
}

// List returns every record ordered by id.
func (b *MemoryBackend) List(_ context.Context) ([]models.SessionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := make([]models.SessionRecord, 0, len(b.sessions))
	for _, record := range b.sessions {
		records = append(records, copyRecord(*record))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (b *MemoryBackend) Delete(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(b.sessions, sessionID)
	return nil
}

func (b *MemoryBackend) AddPlayer(_ context.Context, sessionID, playerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if utils.Contains(record.Players, playerID) {
		return nil
	}
	if len(record.Players) >= record.Settings.Capacity() {
		return ErrSessionFull
	}
	record.Players = append(record.Players, playerID)
	return nil
}

func (b *MemoryBackend) RemovePlayer(_ context.Context, sessionID, playerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for i, id := range record.Players {
		if id == playerID {
			record.Players = append(record.Players[:i:i], record.Players[i+1:]...)
			break
		}
	}
	return nil
}

func copyRecord(record models.SessionRecord) models.SessionRecord {
	out := record
	out.Settings = record.Settings.Copy()
	out.Players = append([]string(nil), record.Players...)
	return out
}
