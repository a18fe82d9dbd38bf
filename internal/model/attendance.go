package model

import "time"

// ActivityKind identifies a bounded break activity.
type ActivityKind string

const (
	ActivityEating      ActivityKind = "Eating"
	ActivityToiletLarge ActivityKind = "ToiletLarge"
	ActivityToiletSmall ActivityKind = "ToiletSmall"
	ActivitySmoking     ActivityKind = "Smoking"
	ActivityOther       ActivityKind = "Other"
)

// ActivityKinds lists all break activities in display order.
var ActivityKinds = []ActivityKind{
	ActivityEating,
	ActivityToiletSmall,
	ActivityToiletLarge,
	ActivitySmoking,
	ActivityOther,
}

// BreakLog is one completed break activity within a shift.
type BreakLog struct {
	Kind     ActivityKind `bson:"kind" json:"kind"`
	Start    time.Time    `bson:"start" json:"start"`
	End      *time.Time   `bson:"end,omitempty" json:"end,omitempty"`
	TimedOut bool         `bson:"timed_out" json:"timedOut"`
}

// RecordKey uniquely identifies an attendance record: one user, one
// logical work date, one named shift.
type RecordKey struct {
	UserID    int64
	WorkDate  string
	ShiftName string
}

// AttendanceRecord is the persisted ledger entry for a single shift
// instance. WorkDate is the logical shift date (YYYY-MM-DD), which for
// cross-midnight shifts can differ from the wall-clock date of the
// events recorded on it.
type AttendanceRecord struct {
	UserID            int64      `bson:"user_id" json:"userId"`
	WorkDate          string     `bson:"work_date" json:"workDate"`
	ShiftName         string     `bson:"shift_name" json:"shiftName"`
	CheckinAt         *time.Time `bson:"checkin_at,omitempty" json:"checkinAt"`
	CheckoutAt        *time.Time `bson:"checkout_at,omitempty" json:"checkoutAt"`
	LateMinutes       int        `bson:"late_minutes" json:"lateMinutes"`
	EarlyLeaveMinutes int        `bson:"early_leave_minutes" json:"earlyLeaveMinutes"`
	Breaks            []BreakLog `bson:"breaks,omitempty" json:"breaks,omitempty"`
	CreatedAt         time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updatedAt"`
}

func (r *AttendanceRecord) Key() RecordKey {
	return RecordKey{UserID: r.UserID, WorkDate: r.WorkDate, ShiftName: r.ShiftName}
}

// Complete reports whether both sides of the shift were punched.
func (r *AttendanceRecord) Complete() bool {
	return r.CheckinAt != nil && r.CheckoutAt != nil
}

// RegisteredUser is a member of the durable registration set.
type RegisteredUser struct {
	UserID       int64     `bson:"user_id" json:"userId"`
	RegisteredAt time.Time `bson:"registered_at" json:"registeredAt"`
}
