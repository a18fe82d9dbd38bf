package shift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", value)
	require.NoError(t, err)
	return ts
}

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultRoles())

	tests := []struct {
		name     string
		role     Role
		ts       string
		want     string
		eligible bool
	}{
		{"day shift mid-morning", RoleStandardDay, "2025-03-10 09:30:00", "day", true},
		{"day shift at opening", RoleStandardDay, "2025-03-10 09:00:00", "day", true},
		{"day shift at closing", RoleStandardDay, "2025-03-10 19:00:00", "day", true},
		{"day shift before opening", RoleStandardDay, "2025-03-10 08:59:00", "", false},
		{"day shift after closing", RoleStandardDay, "2025-03-10 19:01:00", "", false},
		{"promo morning", RoleRotatingPromo, "2025-03-10 06:00:00", "morning", true},
		{"promo midday gap", RoleRotatingPromo, "2025-03-10 14:00:00", "", false},
		{"promo night before midnight", RoleRotatingPromo, "2025-03-10 23:00:00", "night", true},
		{"promo night after midnight", RoleRotatingPromo, "2025-03-11 03:00:00", "night", true},
		{"promo night tail boundary", RoleRotatingPromo, "2025-03-11 05:59:00", "night", true},
		{"promo tail end is morning", RoleRotatingPromo, "2025-03-11 06:00:00", "morning", true},
		{"finding pre-dawn is night tail", RoleRotatingFinding, "2025-03-11 05:30:00", "night", true},
		{"finding gap defaults to morning", RoleRotatingFinding, "2025-03-11 06:30:00", "morning", true},
		{"finding morning proper", RoleRotatingFinding, "2025-03-11 07:00:00", "morning", true},
		{"finding afternoon gap stays none", RoleRotatingFinding, "2025-03-11 13:00:00", "", false},
		{"unknown role", Role("INTERN"), "2025-03-10 10:00:00", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, ok := c.Classify(tc.role, at(t, tc.ts))
			require.Equal(t, tc.eligible, ok)
			if tc.eligible {
				require.Equal(t, tc.want, w.Name)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(DefaultRoles())
	ts := at(t, "2025-03-11 05:30:00")

	first, firstOK := c.Classify(RoleRotatingPromo, ts)
	for i := 0; i < 100; i++ {
		w, ok := c.Classify(RoleRotatingPromo, ts)
		require.Equal(t, firstOK, ok)
		require.Equal(t, first, w)
	}
}

func TestLogicalWorkDate(t *testing.T) {
	night := Window{Name: "night", Start: ClockTime(19, 0), End: ClockTime(6, 0)}
	day := Window{Name: "day", Start: ClockTime(9, 0), End: ClockTime(19, 0)}

	// Post-midnight tail belongs to the previous day's shift.
	require.Equal(t, "2025-03-10",
		LogicalWorkDate(at(t, "2025-03-11 05:30:00"), night).Format(time.DateOnly))
	// Pre-midnight side keeps its own date.
	require.Equal(t, "2025-03-10",
		LogicalWorkDate(at(t, "2025-03-10 23:00:00"), night).Format(time.DateOnly))
	// Same-day windows never shift the date.
	require.Equal(t, "2025-03-11",
		LogicalWorkDate(at(t, "2025-03-11 09:10:00"), day).Format(time.DateOnly))
}

func TestCrossMidnightShiftInstance(t *testing.T) {
	c := NewClassifier(DefaultRoles())

	checkin := at(t, "2025-03-10 23:00:00")
	checkout := at(t, "2025-03-11 05:30:00")

	wIn, ok := c.Classify(RoleRotatingPromo, checkin)
	require.True(t, ok)
	wOut, ok := c.Classify(RoleRotatingPromo, checkout)
	require.True(t, ok)

	require.Equal(t, wIn, wOut)
	require.Equal(t,
		LogicalWorkDate(checkin, wIn).Format(time.DateOnly),
		LogicalWorkDate(checkout, wOut).Format(time.DateOnly))
}

func TestWindowAnchors(t *testing.T) {
	night := Window{Name: "night", Start: ClockTime(19, 0), End: ClockTime(6, 0)}
	workDate := at(t, "2025-03-10 00:00:00")

	require.Equal(t, "2025-03-10 19:00:00", night.StartAt(workDate).Format("2006-01-02 15:04:05"))
	require.Equal(t, "2025-03-11 06:00:00", night.EndAt(workDate).Format("2006-01-02 15:04:05"))

	day := Window{Name: "day", Start: ClockTime(9, 0), End: ClockTime(19, 0)}
	require.Equal(t, "2025-03-10 19:00:00", day.EndAt(workDate).Format("2006-01-02 15:04:05"))
}
