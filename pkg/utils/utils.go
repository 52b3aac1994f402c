// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GetMapValueAs get and cast to a type
func GetMapValueAs[T any](m map[string]interface{}, key string) (t T, ok bool) {
	var v interface{}
	if m == nil {
		return t, false
	}
	if v, ok = m[key]; !ok {
		return t, false
	}
	switch val := v.(type) {
	case T:
		return val, true
	default:
		return t, false
	}
}

// Contains return true if val exist in list, else return false.
func Contains[T comparable](list []T, val T) bool {
	for _, v := range list {
		if v == val {
			return true
		}
	}
	return false
}

// ContainsAny return true if any element of vals exist in list.
func ContainsAny[T comparable](list []T, vals []T) bool {
	for _, v := range vals {
		if Contains(list, v) {
			return true
		}
	}
	return false
}

// GenerateUUID generates uuid without hyphens.
func GenerateUUID() string {
	id, _ := uuid.NewRandom()
	return strings.ReplaceAll(id.String(), "-", "")
}

// ToFloat64 converts any numeric setting value to float64.
// Values decoded from CBOR or JSON may arrive as any integer width.
func ToFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// GetMapNumber returns the numeric value stored at key, whatever its width.
func GetMapNumber(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return ToFloat64(v)
}

// AppendUnique appends the values not already present, keeping first-seen order.
func AppendUnique[T comparable](list []T, vals ...T) []T {
	for _, v := range vals {
		if !Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}
