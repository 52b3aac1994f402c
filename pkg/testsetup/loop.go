// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"time"

	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
)

// Epoch is the virtual start time of every manual test loop.
var Epoch = time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

// NewManualLoop returns a loop that only moves when the test advances it.
func NewManualLoop() *scheduler.Loop {
	return scheduler.NewManual(Epoch)
}
