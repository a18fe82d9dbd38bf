// Package shift maps roles and timestamps to shift windows, including
// windows that cross midnight, and resolves the logical work date a
// shift instance belongs to.
package shift

import (
	"fmt"
	"time"
)

// Role is a workforce role with its own set of valid shift windows.
type Role string

const (
	RoleStandardDay     Role = "STANDARD_DAY"
	RoleRotatingPromo   Role = "ROTATING_PROMO"
	RoleRotatingFinding Role = "ROTATING_FINDING"
)

// TimeOfDay is minutes since midnight, local time.
type TimeOfDay int

// ClockTime builds a TimeOfDay from hours and minutes.
func ClockTime(hour, min int) TimeOfDay {
	return TimeOfDay(hour*60 + min)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t/60, t%60)
}

func timeOfDay(at time.Time) TimeOfDay {
	return TimeOfDay(at.Hour()*60 + at.Minute())
}

// Window is a named time-of-day interval during which check-in/out is
// valid. A window crosses midnight when End < Start (e.g. 19:00–06:00).
type Window struct {
	Name  string
	Start TimeOfDay
	End   TimeOfDay
}

func (w Window) CrossesMidnight() bool {
	return w.End < w.Start
}

// Contains reports whether t falls inside the window. Same-day windows
// include both endpoints; cross-midnight windows cover
// [Start, 24:00) ∪ [00:00, End).
func (w Window) Contains(t TimeOfDay) bool {
	if w.CrossesMidnight() {
		return t >= w.Start || t < w.End
	}
	return t >= w.Start && t <= w.End
}

// InPreDawnTail reports whether at falls in the post-midnight portion
// of a cross-midnight window. Leaving during the tail counts as on-time.
func (w Window) InPreDawnTail(at time.Time) bool {
	return w.CrossesMidnight() && timeOfDay(at) < w.End
}

// StartAt anchors the window's opening to a logical work date.
func (w Window) StartAt(workDate time.Time) time.Time {
	y, m, d := workDate.Date()
	return time.Date(y, m, d, int(w.Start)/60, int(w.Start)%60, 0, 0, workDate.Location())
}

// EndAt anchors the window's closing to a logical work date. For
// cross-midnight windows the close falls on the following calendar day.
func (w Window) EndAt(workDate time.Time) time.Time {
	y, m, d := workDate.Date()
	end := time.Date(y, m, d, int(w.End)/60, int(w.End)%60, 0, 0, workDate.Location())
	if w.CrossesMidnight() {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// RoleConfig describes the windows valid for one role, evaluated in
// order. EarlyDefault optionally names the window that claims ambiguous
// early-morning timestamps falling before its opening and outside every
// other window. GraceMinutes is the role's lateness exemption.
type RoleConfig struct {
	Windows      []Window
	EarlyDefault string
	GraceMinutes int
}

// Classifier is a pure lookup from (role, timestamp) to shift window.
type Classifier struct {
	roles map[Role]RoleConfig
}

func NewClassifier(roles map[Role]RoleConfig) *Classifier {
	return &Classifier{roles: roles}
}

// DefaultRoles is the shipped role table: a fixed 09:00–19:00 day shift
// and two rotating morning/night variants whose night window runs
// 19:00–06:00 across midnight.
func DefaultRoles() map[Role]RoleConfig {
	return map[Role]RoleConfig{
		RoleStandardDay: {
			Windows: []Window{
				{Name: "day", Start: ClockTime(9, 0), End: ClockTime(19, 0)},
			},
		},
		RoleRotatingPromo: {
			Windows: []Window{
				{Name: "morning", Start: ClockTime(6, 0), End: ClockTime(12, 0)},
				{Name: "night", Start: ClockTime(19, 0), End: ClockTime(6, 0)},
			},
		},
		RoleRotatingFinding: {
			Windows: []Window{
				{Name: "morning", Start: ClockTime(7, 0), End: ClockTime(12, 0)},
				{Name: "night", Start: ClockTime(19, 0), End: ClockTime(6, 0)},
			},
			EarlyDefault: "morning",
		},
	}
}

// Classify returns the shift window containing at, or false when the
// timestamp is outside every window for the role. Windows are evaluated
// in configuration order and the first match wins; a configured
// early-default window then claims any remaining pre-opening timestamp.
func (c *Classifier) Classify(role Role, at time.Time) (Window, bool) {
	cfg, ok := c.roles[role]
	if !ok {
		return Window{}, false
	}

	t := timeOfDay(at)
	for _, w := range cfg.Windows {
		if w.Contains(t) {
			return w, true
		}
	}

	if cfg.EarlyDefault != "" {
		for _, w := range cfg.Windows {
			if w.Name == cfg.EarlyDefault && t < w.Start {
				return w, true
			}
		}
	}

	return Window{}, false
}

// Windows returns the role's full window set. A day only counts as
// worked when every window in this set has a complete record.
func (c *Classifier) Windows(role Role) []Window {
	return c.roles[role].Windows
}

// Grace returns the role's lateness exemption in minutes.
func (c *Classifier) Grace(role Role) int {
	return c.roles[role].GraceMinutes
}

// LogicalWorkDate attributes a timestamp to the calendar date of the
// shift instance it belongs to: events in a cross-midnight window's
// post-midnight tail belong to the previous day's shift.
func LogicalWorkDate(at time.Time, w Window) time.Time {
	y, m, d := at.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, at.Location())
	if w.CrossesMidnight() && timeOfDay(at) < w.End {
		date = date.AddDate(0, 0, -1)
	}
	return date
}
