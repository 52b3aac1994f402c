// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"fmt"
	"reflect"

	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

// QueryOp is the comparison applied by a query predicate.
type QueryOp string

const (
	QueryOpEquals            QueryOp = "equals"
	QueryOpNotEquals         QueryOp = "not_equals"
	QueryOpGreaterThanEquals QueryOp = "greater_than_equals"
	QueryOpLessThanEquals    QueryOp = "less_than_equals"
)

// QueryPredicate constrains one advertised setting.
type QueryPredicate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
	Op    QueryOp     `json:"op"`
}

func (p QueryPredicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Key, p.Op, p.Value)
}

// Matches evaluates the predicate against advertised attributes.
// A missing key never matches, except for not_equals.
func (p QueryPredicate) Matches(attributes map[string]interface{}) bool {
	actual, ok := attributes[p.Key]
	if !ok {
		return p.Op == QueryOpNotEquals
	}

	switch p.Op {
	case QueryOpEquals:
		return valuesEqual(actual, p.Value)
	case QueryOpNotEquals:
		return !valuesEqual(actual, p.Value)
	case QueryOpGreaterThanEquals, QueryOpLessThanEquals:
		a, okA := utils.ToFloat64(actual)
		b, okB := utils.ToFloat64(p.Value)
		if !okA || !okB {
			return false
		}
		if p.Op == QueryOpGreaterThanEquals {
			return a >= b
		}
		return a <= b
	default:
		return false
	}
}

func valuesEqual(a, b interface{}) bool {
	fa, okA := utils.ToFloat64(a)
	fb, okB := utils.ToFloat64(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// SessionQuery is a broad directory query.
type SessionQuery struct {
	MaxResults         int
	IsLAN              bool
	UsesPresence       bool
	ExcludeHidden      bool
	Predicates         []QueryPredicate
	ExcludedSessionIDs []string
	// SessionIDs restricts the query to the given sessions when non-empty.
	SessionIDs []string
	// BannedPlayers excludes sessions that ban any of these players.
	BannedPlayers []string
	// PlayerIDs restricts the query to sessions any of these players is in.
	PlayerIDs []string
}

// Matches evaluates the whole query against a record, the way a directory would server-side.
func (q SessionQuery) Matches(record SessionRecord) bool {
	settings := record.Settings
	if settings.IsLANMatch != q.IsLAN {
		return false
	}
	if q.UsesPresence && !settings.UsesPresence {
		return false
	}
	if q.ExcludeHidden && settings.IsHidden() {
		return false
	}
	if utils.Contains(q.ExcludedSessionIDs, record.ID) {
		return false
	}
	if len(q.SessionIDs) > 0 && !utils.Contains(q.SessionIDs, record.ID) {
		return false
	}
	if len(q.PlayerIDs) > 0 && !utils.ContainsAny(record.Players, q.PlayerIDs) {
		return false
	}
	if utils.ContainsAny(settings.BanList, q.BannedPlayers) {
		return false
	}
	for _, predicate := range q.Predicates {
		if !predicate.Matches(settings.Attributes) {
			return false
		}
	}
	return true
}
