// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
	"github.com/AccelByte/extend-session-matchmaker/pkg/testsetup"
	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

const expiry = 20 * time.Second

type stubRoster struct {
	present []string
	banned  []string
}

func (r *stubRoster) IsPlayerInSession(playerID string) bool { return utils.Contains(r.present, playerID) }

func (r *stubRoster) IsPlayerBanned(playerID string) bool { return utils.Contains(r.banned, playerID) }

type recordingHooks struct {
	result        models.ReservationCompleteResult
	ownersRemoved []string
}

func (h *recordingHooks) PreRegisterReservation(models.Reservation) models.ReservationCompleteResult {
	return h.result
}

func (h *recordingHooks) PreOwnerRemoved(res models.Reservation, ownerID string) {
	h.ownersRemoved = append(h.ownersRemoved, ownerID)
}

func newLedger(t *testing.T, capacity int, opts ...Option) (*Ledger, *scheduler.Loop) {
	t.Helper()
	loop := testsetup.NewManualLoop()
	return NewLedger(testsetup.NewTestScope(), loop, "session-1", capacity, expiry, opts...), loop
}

func assertLedgerInvariants(t *testing.T, l *Ledger) {
	t.Helper()
	seen := map[string]bool{}
	for _, res := range l.Reservations() {
		assert.NotEmpty(t, res.Members, "empty reservations are pruned")
		for _, m := range res.Members {
			assert.False(t, seen[m.PlayerID], "player %s reserved twice", m.PlayerID)
			seen[m.PlayerID] = true
		}
	}
	assert.LessOrEqual(t, l.NumConsumedReservations(), l.MaxReservations())
}

func TestRegisterReservationResults(t *testing.T) {
	testCases := []struct {
		name     string
		capacity int
		setup    func(l *Ledger, roster *stubRoster, hooks *recordingHooks)
		incoming models.Reservation
		expected models.ReservationCompleteResult
	}{
		{
			name:     "accepted",
			capacity: 4,
			incoming: models.NewReservation("a", "a", "b"),
			expected: models.ReservationAccepted,
		},
		{
			name:     "admission closed",
			capacity: 4,
			setup:    func(l *Ledger, _ *stubRoster, _ *recordingHooks) { l.SetAdmissionOpen(false) },
			incoming: models.NewReservation("a", "a"),
			expected: models.ReservationDenied,
		},
		{
			name:     "missing owner",
			capacity: 4,
			incoming: models.NewReservation("", "a"),
			expected: models.ReservationInvalid,
		},
		{
			name:     "no members",
			capacity: 4,
			incoming: models.NewReservation("a"),
			expected: models.ReservationInvalid,
		},
		{
			name:     "empty member id",
			capacity: 4,
			incoming: models.NewReservation("a", "a", ""),
			expected: models.ReservationInvalid,
		},
		{
			name:     "capacity exceeded",
			capacity: 4,
			setup: func(l *Ledger, _ *stubRoster, _ *recordingHooks) {
				l.RegisterReservation(models.NewReservation("x", "x", "y", "z"))
			},
			incoming: models.NewReservation("a", "a", "b"),
			expected: models.ReservationLimitReached,
		},
		{
			name:     "hook refuses",
			capacity: 4,
			setup: func(_ *Ledger, _ *stubRoster, hooks *recordingHooks) {
				hooks.result = models.ReservationDenied
			},
			incoming: models.NewReservation("a", "a"),
			expected: models.ReservationDenied,
		},
		{
			name:     "banned member",
			capacity: 4,
			setup: func(_ *Ledger, roster *stubRoster, _ *recordingHooks) {
				roster.banned = []string{"b"}
			},
			incoming: models.NewReservation("a", "a", "b"),
			expected: models.ReservationDenied,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			roster := &stubRoster{}
			hooks := &recordingHooks{result: models.ReservationAccepted}
			l, _ := newLedger(t, tc.capacity, WithRoster(roster), WithBanChecker(roster), WithHooks(hooks))
			if tc.setup != nil {
				tc.setup(l, roster, hooks)
			}
			before := l.Reservations()

			assert.Equal(t, tc.expected, l.RegisterReservation(tc.incoming))
			if tc.expected != models.ReservationAccepted {
				assert.Equal(t, before, l.Reservations(), "a rejected reservation leaves the ledger unchanged")
			}
			assertLedgerInvariants(t, l)
		})
	}
}

func TestLimitReachedLeavesLedgerUnchanged(t *testing.T) {
	l, _ := newLedger(t, 4)
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("x", "x", "y", "z")))
	require.Equal(t, 3, l.NumConsumedReservations())

	assert.Equal(t, models.ReservationLimitReached, l.RegisterReservation(models.NewReservation("a", "a", "b")))
	assert.Equal(t, 3, l.NumConsumedReservations())
	assert.Len(t, l.Reservations(), 1)
}

func TestDuplicateOfCompletedReservation(t *testing.T) {
	l, _ := newLedger(t, 8)
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("p", "p")))
	require.True(t, l.CompleteReservation("p"))

	assert.Equal(t, models.ReservationDuplicate, l.RegisterReservation(models.NewReservation("q", "q", "p")))
	assert.Equal(t, 1, l.NumConsumedReservations())
	assertLedgerInvariants(t, l)
}

func TestStalePendingReservationIsSuperseded(t *testing.T) {
	l, _ := newLedger(t, 8)
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("p", "p", "r")))

	assert.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("q", "q", "p")))
	assertLedgerInvariants(t, l)

	res, ok := l.ReservationFor("p")
	require.True(t, ok)
	assert.Equal(t, "q", res.OwnerID)

	old, ok := l.ReservationFor("r")
	require.True(t, ok)
	assert.Empty(t, old.OwnerID, "removing the owner clears ownership")
	assert.Equal(t, 3, l.NumConsumedReservations())
}

func TestRegisterThenRemoveEveryMember(t *testing.T) {
	l, _ := newLedger(t, 8)
	res := models.NewReservation("a", "a", "b", "c")
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(res))

	for _, id := range res.MemberIDs() {
		assert.True(t, l.RemoveReservation(id))
		assertLedgerInvariants(t, l)
	}
	assert.Empty(t, l.Reservations())
	assert.Equal(t, 0, l.NumConsumedReservations())
	assert.False(t, l.RemoveReservation("a"))
}

func TestOwnerRemovalRunsHook(t *testing.T) {
	hooks := &recordingHooks{result: models.ReservationAccepted}
	l, _ := newLedger(t, 8, WithHooks(hooks))
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("a", "a", "b")))

	require.True(t, l.RemoveReservation("b"))
	assert.Empty(t, hooks.ownersRemoved)

	require.True(t, l.RemoveReservation("a"))
	assert.Equal(t, []string{"a"}, hooks.ownersRemoved)
}

func TestCompleteReservationIsIdempotent(t *testing.T) {
	l, loop := newLedger(t, 8)
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("a", "a", "b")))

	var changes []Change
	l.Observe(func(c Change) { changes = append(changes, c) })

	assert.True(t, l.CompleteReservation("a"))
	once := l.Reservations()
	assert.True(t, l.CompleteReservation("a"))
	assert.Equal(t, once, l.Reservations())
	assert.Len(t, changes, 1)

	assert.False(t, l.CompleteReservation("nobody"))

	loop.Advance(expiry)
	res, ok := l.ReservationFor("a")
	require.True(t, ok, "completed members do not expire")
	assert.Len(t, res.Members, 1)
	_, ok = l.ReservationFor("b")
	assert.False(t, ok, "pending members expire")
}

func TestTimeoutRevokesAbsentPlayer(t *testing.T) {
	l, loop := newLedger(t, 8, WithRoster(&stubRoster{}))
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("a", "a")))

	var kinds []ChangeKind
	l.Observe(func(c Change) { kinds = append(kinds, c.Kind) })

	loop.Advance(expiry - time.Second)
	assert.Equal(t, 1, l.NumConsumedReservations())

	loop.Advance(time.Second)
	assert.Equal(t, 0, l.NumConsumedReservations())
	assert.Empty(t, l.Reservations())
	assert.Equal(t, []ChangeKind{ChangeMemberTimedOut}, kinds)
}

func TestTimeoutCorrectsPresentPlayer(t *testing.T) {
	roster := &stubRoster{}
	l, loop := newLedger(t, 8, WithRoster(roster))
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("p", "p")))

	roster.present = []string{"p"}
	loop.Advance(expiry)

	res, ok := l.ReservationFor("p")
	require.True(t, ok)
	assert.True(t, res.Members[0].Completed)
	assert.Equal(t, 1, l.NumConsumedReservations())
}

func TestCancelReservationByOwner(t *testing.T) {
	l, loop := newLedger(t, 8)
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("a", "a", "b")))
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("c", "c")))

	assert.True(t, l.CancelReservation("a"))
	assert.Equal(t, 1, l.NumConsumedReservations())
	assert.False(t, l.CancelReservation("a"))
	assert.Equal(t, 1, loop.PendingTimers())
}

func TestReconfigureMaxReservations(t *testing.T) {
	l, _ := newLedger(t, 8)
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("a", "a", "b", "c")))

	assert.False(t, l.ReconfigureMaxReservations(2))
	assert.Equal(t, 8, l.MaxReservations())
	assert.True(t, l.ReconfigureMaxReservations(3))
	assert.Equal(t, 3, l.MaxReservations())
	assert.Equal(t, models.ReservationLimitReached, l.RegisterReservation(models.NewReservation("d", "d")))
}

func TestInvalidateStopsTimers(t *testing.T) {
	l, loop := newLedger(t, 8)
	require.Equal(t, models.ReservationAccepted, l.RegisterReservation(models.NewReservation("a", "a", "b")))
	require.Equal(t, 2, loop.PendingTimers())

	l.Invalidate()
	assert.Equal(t, 0, loop.PendingTimers())
	assert.Empty(t, l.Reservations())
}

func TestMetricsRecorded(t *testing.T) {
	recorder := testsetup.NewRecordingMetrics()
	l, _ := newLedger(t, 1, WithMetrics(recorder))

	l.RegisterReservation(models.NewReservation("a", "a"))
	l.RegisterReservation(models.NewReservation("b", "b"))

	assert.Equal(t, 1, recorder.ReservationResults[models.ReservationAccepted.String()])
	assert.Equal(t, 1, recorder.ReservationResults[models.ReservationLimitReached.String()])
	assert.Equal(t, 1, recorder.ConsumedReservations["session-1"])
}
