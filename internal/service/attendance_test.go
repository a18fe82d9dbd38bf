package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shiftbot/internal/shift"
)

const (
	alice int64 = 1001
	bob   int64 = 1002
)

func TestCheckInComputesLateness(t *testing.T) {
	ctx := context.Background()

	t.Run("ten minutes late", func(t *testing.T) {
		env := newTestEnv(t, "2025-03-10 09:10:00")
		res, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleStandardDay)
		require.NoError(t, err)
		require.Equal(t, 10, res.LateMinutes)
		require.Equal(t, "day", res.Shift.Name)
		require.Equal(t, "2025-03-10", res.WorkDate)
	})

	t.Run("exactly on time", func(t *testing.T) {
		env := newTestEnv(t, "2025-03-10 09:00:00")
		res, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleStandardDay)
		require.NoError(t, err)
		require.Equal(t, 0, res.LateMinutes)
	})
}

func TestCheckInOutsideWindow(t *testing.T) {
	env := newTestEnv(t, "2025-03-10 08:00:00")
	_, err := env.attendance.CheckIn(context.Background(), alice, "Alice", shift.RoleStandardDay)
	require.ErrorIs(t, err, ErrOutsideShiftWindow)

	// No state or record was created.
	_, checkedIn := env.attendance.CheckedIn(alice)
	require.False(t, checkedIn)
	require.Empty(t, env.attendance.Records())
}

func TestDuplicateCheckIn(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-10 09:00:00")

	_, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleStandardDay)
	require.NoError(t, err)

	_, err = env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleStandardDay)
	require.ErrorIs(t, err, ErrDuplicateCheckIn)
}

func TestCheckOutComputesEarlyLeave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-10 09:00:00")

	_, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleStandardDay)
	require.NoError(t, err)

	env.advanceTo(t, "2025-03-10 18:45:00")
	res, err := env.attendance.CheckOut(ctx, alice, "Alice")
	require.NoError(t, err)
	require.Equal(t, 15, res.EarlyLeaveMinutes)
	require.Equal(t, 9*time.Hour+45*time.Minute, res.Duration)

	_, checkedIn := env.attendance.CheckedIn(alice)
	require.False(t, checkedIn)
}

func TestCheckOutWithoutCheckIn(t *testing.T) {
	env := newTestEnv(t, "2025-03-10 10:00:00")
	_, err := env.attendance.CheckOut(context.Background(), alice, "Alice")
	require.ErrorIs(t, err, ErrNotCheckedIn)
}

func TestCrossMidnightShiftKeepsInstance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-10 23:00:00")

	in, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleRotatingPromo)
	require.NoError(t, err)
	require.Equal(t, "night", in.Shift.Name)
	require.Equal(t, "2025-03-10", in.WorkDate)

	env.advanceTo(t, "2025-03-11 05:30:00")
	out, err := env.attendance.CheckOut(ctx, alice, "Alice")
	require.NoError(t, err)

	// Same shift instance and logical date as the check-in, and the
	// pre-dawn tail departure counts as on-time.
	require.Equal(t, "night", out.Shift.Name)
	require.Equal(t, "2025-03-10", out.WorkDate)
	require.Equal(t, 0, out.EarlyLeaveMinutes)

	records := env.attendance.Records()
	require.Len(t, records, 1)
	require.Equal(t, "2025-03-10", records[0].WorkDate)
	require.True(t, records[0].Complete())
}

func TestCrossMidnightEarlyLeaveBeforeMidnight(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-10 19:00:00")

	_, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleRotatingPromo)
	require.NoError(t, err)

	// Leaving at 23:00 against a 06:00 close is 7 hours early.
	env.advanceTo(t, "2025-03-10 23:00:00")
	out, err := env.attendance.CheckOut(ctx, alice, "Alice")
	require.NoError(t, err)
	require.Equal(t, 420, out.EarlyLeaveMinutes)
}

func TestMonthlySummaryRequiresAllSubShifts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-10 06:00:00")

	// Day 1: morning sub-shift only.
	_, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleRotatingPromo)
	require.NoError(t, err)
	env.advanceTo(t, "2025-03-10 12:00:00")
	_, err = env.attendance.CheckOut(ctx, alice, "Alice")
	require.NoError(t, err)

	sum := env.attendance.MonthlySummary(alice, shift.RoleRotatingPromo, "2025-03")
	require.Equal(t, 0, sum.WorkedDays)
	require.Equal(t, 0, sum.WorkedDaysTotal)

	// Day 1 night sub-shift completes the day.
	env.advanceTo(t, "2025-03-10 19:00:00")
	_, err = env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleRotatingPromo)
	require.NoError(t, err)
	env.advanceTo(t, "2025-03-11 05:00:00")
	_, err = env.attendance.CheckOut(ctx, alice, "Alice")
	require.NoError(t, err)

	sum = env.attendance.MonthlySummary(alice, shift.RoleRotatingPromo, "2025-03")
	require.Equal(t, 1, sum.WorkedDays)
	require.Equal(t, 1, sum.WorkedDaysTotal)

	// A dangling check-in shows up as a missing check-out.
	env.advanceTo(t, "2025-03-11 07:00:00")
	_, err = env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleRotatingPromo)
	require.NoError(t, err)

	sum = env.attendance.MonthlySummary(alice, shift.RoleRotatingPromo, "2025-03")
	require.Len(t, sum.MissingCheckouts, 1)
	require.Equal(t, "2025-03-11", sum.MissingCheckouts[0].WorkDate)
	require.Empty(t, sum.MissingCheckins)
}

func TestMonthlySummaryStandardDayRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-10 09:00:00")

	_, err := env.attendance.CheckIn(ctx, bob, "Bob", shift.RoleStandardDay)
	require.NoError(t, err)
	env.advanceTo(t, "2025-03-10 19:00:00")
	_, err = env.attendance.CheckOut(ctx, bob, "Bob")
	require.NoError(t, err)

	sum := env.attendance.MonthlySummary(bob, shift.RoleStandardDay, "2025-03")
	require.Equal(t, 1, sum.WorkedDays)
	require.Equal(t, 1, sum.WorkedDaysTotal)

	// Other months don't count toward the requested month.
	sum = env.attendance.MonthlySummary(bob, shift.RoleStandardDay, "2025-04")
	require.Equal(t, 0, sum.WorkedDays)
	require.Equal(t, 1, sum.WorkedDaysTotal)
}

func TestMonthlySummaryConcurrentWithMutations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-01 09:00:00")

	// Summaries read the ledger while check-ins and check-outs rewrite
	// it; run both sides at once so the race detector can see any
	// unsynchronized access to the shared records.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			env.attendance.MonthlySummary(alice, shift.RoleStandardDay, "2025-03")
		}
	}()

	for day := 0; day < 20; day++ {
		_, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleStandardDay)
		require.NoError(t, err)
		env.clock.Advance(10 * time.Hour)
		_, err = env.attendance.CheckOut(ctx, alice, "Alice")
		require.NoError(t, err)
		env.clock.Advance(14 * time.Hour)
	}
	<-done

	sum := env.attendance.MonthlySummary(alice, shift.RoleStandardDay, "2025-03")
	require.Equal(t, 20, sum.WorkedDays)
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-10 09:05:00")

	_, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleStandardDay)
	require.NoError(t, err)
	env.advanceTo(t, "2025-03-10 18:00:00")
	_, err = env.attendance.CheckOut(ctx, alice, "Alice")
	require.NoError(t, err)

	// A second service hydrated from the same store reproduces the
	// ledger exactly.
	reloaded := NewAttendanceService(shift.NewClassifier(shift.DefaultRoles()), env.clock, env.store, env.sink, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, env.attendance.Records(), reloaded.Records())
}

func TestPersistenceFailureDoesNotBlockOperations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "2025-03-10 09:00:00")
	env.store.setFailSaves(true)

	// The check-in succeeds even though the store is down.
	_, err := env.attendance.CheckIn(ctx, alice, "Alice", shift.RoleStandardDay)
	require.NoError(t, err)
	require.Equal(t, 0, env.store.recordCount())

	// The dirty record is retried on the next mutating operation.
	env.store.setFailSaves(false)
	env.advanceTo(t, "2025-03-10 19:00:00")
	_, err = env.attendance.CheckOut(ctx, alice, "Alice")
	require.NoError(t, err)
	require.Equal(t, 1, env.store.recordCount())

	stored, err := env.store.LoadAll(ctx)
	require.NoError(t, err)
	require.True(t, stored[0].Complete())
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "9h 45m 0s", FormatDuration(9*time.Hour+45*time.Minute))
	require.Equal(t, "0h 0m 30s", FormatDuration(30*time.Second))
	require.Equal(t, "10h 0m 5s", FormatDuration(10*time.Hour+5*time.Second))
}

func TestUserRegistry(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	reg := NewUserRegistry(st, zap.NewNop())

	require.True(t, reg.Register(ctx, alice))
	require.False(t, reg.Register(ctx, alice))
	require.True(t, reg.IsRegistered(alice))
	require.False(t, reg.IsRegistered(bob))

	reloaded := NewUserRegistry(st, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	require.True(t, reloaded.IsRegistered(alice))
}
