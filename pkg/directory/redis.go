// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/AccelByte/extend-session-matchmaker/pkg/codec"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
)

const (
	recordField   = "record"
	capacityField = "capacity"
)

// addPlayerScript admits a player unless the session is missing (-1) or full (-2).
var addPlayerScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end
	if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
		return 0
	end
	local capacity = tonumber(redis.call('HGET', KEYS[1], 'capacity'))
	if redis.call('SCARD', KEYS[2]) >= capacity then
		return -2
	end
	redis.call('SADD', KEYS[2], ARGV[1])
	return 1
`)

// RedisBackend stores each session as a hash holding the CBOR record and its capacity,
// plus a set of registered players. An index set lists every live session.
type RedisBackend struct {
	cli    *redis.Client
	prefix string
}

func NewRedisBackend(cli *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "mm"
	}
	return &RedisBackend{cli: cli, prefix: prefix}
}

func (b *RedisBackend) indexKey() string {
	return fmt.Sprintf("%s:sessions", b.prefix)
}

func (b *RedisBackend) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", b.prefix, sessionID)
}

func (b *RedisBackend) playersKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:players", b.prefix, sessionID)
}

func (b *RedisBackend) Put(ctx context.Context, record models.SessionRecord) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", record.ID, err)
	}

	pipe := b.cli.TxPipeline()
	pipe.HSet(ctx, b.sessionKey(record.ID), recordField, data, capacityField, record.Settings.Capacity())
	pipe.SAdd(ctx, b.indexKey(), record.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session %s: %w", record.ID, err)
	}
	return nil
}

func (b *RedisBackend) Get(ctx context.Context, sessionID string) (models.SessionRecord, error) {
	pipe := b.cli.Pipeline()
	recordCmd := pipe.HGet(ctx, b.sessionKey(sessionID), recordField)
	playersCmd := pipe.SMembers(ctx, b.playersKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return models.SessionRecord{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return decodeRecord(sessionID, recordCmd, playersCmd)
}

// List returns every record ordered by id. Index entries without a record are skipped.
func (b *RedisBackend) List(ctx context.Context) ([]models.SessionRecord, error) {
	ids, err := b.cli.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := b.cli.Pipeline()
	recordCmds := make([]*redis.StringCmd, len(ids))
	playersCmds := make([]*redis.StringSliceCmd, len(ids))
	for i, id := range ids {
		recordCmds[i] = pipe.HGet(ctx, b.sessionKey(id), recordField)
		playersCmds[i] = pipe.SMembers(ctx, b.playersKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	records := make([]models.SessionRecord, 0, len(ids))
	for i, id := range ids {
		record, err := decodeRecord(id, recordCmds[i], playersCmds[i])
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRecord(sessionID string, recordCmd *redis.StringCmd, playersCmd *redis.StringSliceCmd) (models.SessionRecord, error) {
	data, err := recordCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SessionRecord{}, ErrSessionNotFound
	}
	if err != nil {
		return models.SessionRecord{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var record models.SessionRecord
	if err := codec.Unmarshal(data, &record); err != nil {
		return models.SessionRecord{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	players, err := playersCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return models.SessionRecord{}, fmt.Errorf("load players of %s: %w", sessionID, err)
	}
	sort.Strings(players)
	record.Players = players
	return record, nil
}

func (b *RedisBackend) Delete(ctx context.Context, sessionID string) error {
	var removed *redis.IntCmd
	_, err := b.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, b.sessionKey(sessionID))
		pipe.Del(ctx, b.playersKey(sessionID))
		pipe.SRem(ctx, b.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if removed.Val() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (b *RedisBackend) AddPlayer(ctx context.Context, sessionID, playerID string) error {
	keys := []string{b.sessionKey(sessionID), b.playersKey(sessionID)}
	code, err := addPlayerScript.Run(ctx, b.cli, keys, playerID).Int64()
	if err != nil {
		return fmt.Errorf("add player %s to %s: %w", playerID, sessionID, err)
	}
	switch code {
	case -1:
		return ErrSessionNotFound
	case -2:
		return ErrSessionFull
	default:
		return nil
	}
}

func (b *RedisBackend) RemovePlayer(ctx context.Context, sessionID, playerID string) error {
	exists, err := b.cli.Exists(ctx, b.sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("remove player %s from %s: %w", playerID, sessionID, err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	if err := b.cli.SRem(ctx, b.playersKey(sessionID), playerID).Err(); err != nil {
		return fmt.Errorf("remove player %s from %s: %w", playerID, sessionID, err)
	}
	return nil
}
