// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package mathutil

import "cmp"

// Max returns the larger of x and y.
func Max[T cmp.Ordered](x T, y T) T {
	return max(x, y)
}

// Abs returns the absolute value of x.
func Abs[T int | int64 | float64](x T) T {
	if x < 0 {
		return -x
	}
	return x
}
