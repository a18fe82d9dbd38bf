package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"shiftbot/internal/i18n"
	"shiftbot/internal/model"
	"shiftbot/internal/shift"
)

// PersistenceStore is the durable backing for the ledger. Saves are
// best-effort: the in-memory ledger stays authoritative and a failed
// save is retried on the next mutating operation.
type PersistenceStore interface {
	SaveRecord(ctx context.Context, rec *model.AttendanceRecord) error
	LoadAll(ctx context.Context) ([]*model.AttendanceRecord, error)
}

// AttendanceService owns the attendance ledger and per-user check-in
// state. It classifies events into shifts, computes lateness and
// early-leave deltas, and aggregates monthly summaries.
type AttendanceService struct {
	states     *stateRegistry
	classifier *shift.Classifier
	clock      Clock
	store      PersistenceStore
	sink       NotificationSink
	log        *zap.Logger

	mu      sync.Mutex
	records map[model.RecordKey]*model.AttendanceRecord
	dirty   map[model.RecordKey]struct{}
}

func NewAttendanceService(classifier *shift.Classifier, clock Clock, store PersistenceStore, sink NotificationSink, log *zap.Logger) *AttendanceService {
	return &AttendanceService{
		states:     newStateRegistry(),
		classifier: classifier,
		clock:      clock,
		store:      store,
		sink:       sink,
		log:        log,
		records:    make(map[model.RecordKey]*model.AttendanceRecord),
		dirty:      make(map[model.RecordKey]struct{}),
	}
}

// Load hydrates the ledger from the store. Called once at startup,
// before any command is accepted.
func (s *AttendanceService) Load(ctx context.Context) error {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load attendance records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.records[rec.Key()] = rec
	}
	s.log.Info("attendance ledger loaded", zap.Int("records", len(records)))
	return nil
}

type CheckInResult struct {
	Shift       shift.Window
	WorkDate    string
	At          time.Time
	LateMinutes int
}

// CheckIn classifies the shift for (role, now), records the check-in and
// opens a fresh quota window. Fails without mutation when the timestamp
// is outside every window or the user is already checked in.
func (s *AttendanceService) CheckIn(ctx context.Context, userID int64, username string, role shift.Role) (*CheckInResult, error) {
	now := s.clock.Now()

	window, ok := s.classifier.Classify(role, now)
	if !ok {
		return nil, ErrOutsideShiftWindow
	}
	workDate := shift.LogicalWorkDate(now, window)
	late := minutesBetween(window.StartAt(workDate), now) - s.classifier.Grace(role)
	if late < 0 {
		late = 0
	}

	st := s.states.get(userID)
	st.mu.Lock()
	if st.checkin != nil {
		st.mu.Unlock()
		return nil, ErrDuplicateCheckIn
	}
	st.checkin = &CheckedInState{At: now, WorkDate: workDate, Window: window, Role: role}
	st.quota = make(map[model.ActivityKind]int)
	st.mu.Unlock()

	dateStr := workDate.Format(time.DateOnly)
	key := model.RecordKey{UserID: userID, WorkDate: dateStr, ShiftName: window.Name}
	s.updateRecord(key, func(rec *model.AttendanceRecord) {
		// Lateness is computed once, at the first check-in for this
		// shift instance, and is immutable afterward.
		if rec.CheckinAt == nil {
			at := now
			rec.CheckinAt = &at
			rec.LateMinutes = late
		}
	})
	s.flush(ctx)

	text := i18n.T(ctx, "checkin.broadcast", map[string]any{
		"Name": username,
		"Time": now.Format("15:04:05"),
	})
	if late > 0 {
		text += "\n" + i18n.T(ctx, "checkin.late_note", map[string]any{"Minutes": late})
	}
	s.sink.NotifyBroadcast(text)

	return &CheckInResult{Shift: window, WorkDate: dateStr, At: now, LateMinutes: late}, nil
}

type CheckOutResult struct {
	Shift             shift.Window
	WorkDate          string
	CheckinAt         time.Time
	CheckoutAt        time.Time
	Duration          time.Duration
	EarlyLeaveMinutes int
	Summary           *MonthlySummary
}

// CheckOut closes the shift instance opened at check-in. The window
// established then is carried forward; for cross-midnight windows a
// departure inside the pre-dawn tail counts as on-time. Any open break
// activity is force-ended first.
func (s *AttendanceService) CheckOut(ctx context.Context, userID int64, username string) (*CheckOutResult, error) {
	now := s.clock.Now()

	st := s.states.get(userID)
	st.mu.Lock()
	ci := st.checkin
	if ci == nil {
		st.mu.Unlock()
		return nil, ErrNotCheckedIn
	}
	forced := st.closeSession()
	st.checkin = nil
	st.mu.Unlock()

	window := ci.Window
	var early int
	if !window.InPreDawnTail(now) {
		early = minutesBetween(now, window.EndAt(ci.WorkDate))
		if early < 0 {
			early = 0
		}
	}

	dateStr := ci.WorkDate.Format(time.DateOnly)
	key := model.RecordKey{UserID: userID, WorkDate: dateStr, ShiftName: window.Name}
	s.updateRecord(key, func(rec *model.AttendanceRecord) {
		if rec.CheckoutAt == nil {
			at := now
			rec.CheckoutAt = &at
			rec.EarlyLeaveMinutes = early
		}
		if forced != nil {
			end := now
			rec.Breaks = append(rec.Breaks, model.BreakLog{
				Kind:     forced.Kind,
				Start:    forced.StartedAt,
				End:      &end,
				TimedOut: forced.TimedOut,
			})
		}
	})
	s.flush(ctx)

	summary := s.MonthlySummary(userID, ci.Role, now.Format("2006-01"))
	duration := now.Sub(ci.At)

	text := i18n.T(ctx, "checkout.broadcast", map[string]any{
		"Name":     username,
		"CheckIn":  ci.At.Format("2006-01-02 15:04:05"),
		"CheckOut": now.Format("2006-01-02 15:04:05"),
		"Duration": FormatDuration(duration),
	})
	if early > 0 {
		text += "\n" + i18n.T(ctx, "checkout.early_note", map[string]any{"Minutes": early})
	}
	s.sink.NotifyBroadcast(text + "\n" + s.SummaryText(ctx, summary))

	return &CheckOutResult{
		Shift:             window,
		WorkDate:          dateStr,
		CheckinAt:         ci.At,
		CheckoutAt:        now,
		Duration:          duration,
		EarlyLeaveMinutes: early,
		Summary:           summary,
	}, nil
}

// Now exposes the injected clock's current time.
func (s *AttendanceService) Now() time.Time {
	return s.clock.Now()
}

// CheckedIn returns a copy of the user's check-in state, if any.
func (s *AttendanceService) CheckedIn(userID int64) (CheckedInState, bool) {
	st := s.states.get(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.checkin == nil {
		return CheckedInState{}, false
	}
	return *st.checkin, true
}

type MissingMark struct {
	WorkDate string
	At       time.Time
}

type MonthlySummary struct {
	YearMonth        string
	WorkedDays       int
	WorkedDaysTotal  int
	MissingCheckins  []MissingMark
	MissingCheckouts []MissingMark
}

// MonthlySummary aggregates worked-day counts and missing-punch lists.
// A logical date counts as worked only when every window in the role's
// required set has both a check-in and a check-out. Missing lists cover
// the requested month only, and only records whose present side falls
// inside a valid window for the role.
func (s *AttendanceService) MonthlySummary(userID int64, role shift.Role, yearMonth string) *MonthlySummary {
	required := s.classifier.Windows(role)

	// Snapshot the user's records by value before releasing the lock:
	// updateRecord mutates the live entries concurrently.
	s.mu.Lock()
	byDate := make(map[string]map[string]*model.AttendanceRecord)
	var monthRecords []*model.AttendanceRecord
	for key, rec := range s.records {
		if key.UserID != userID {
			continue
		}
		cp := *rec
		if byDate[key.WorkDate] == nil {
			byDate[key.WorkDate] = make(map[string]*model.AttendanceRecord)
		}
		byDate[key.WorkDate][key.ShiftName] = &cp
		if strings.HasPrefix(key.WorkDate, yearMonth) {
			monthRecords = append(monthRecords, &cp)
		}
	}
	s.mu.Unlock()

	sum := &MonthlySummary{YearMonth: yearMonth}
	for date, shifts := range byDate {
		worked := len(required) > 0
		for _, w := range required {
			rec, ok := shifts[w.Name]
			if !ok || !rec.Complete() {
				worked = false
				break
			}
		}
		if worked {
			sum.WorkedDaysTotal++
			if strings.HasPrefix(date, yearMonth) {
				sum.WorkedDays++
			}
		}
	}

	for _, rec := range monthRecords {
		switch {
		case rec.CheckoutAt != nil && rec.CheckinAt == nil:
			if _, ok := s.classifier.Classify(role, *rec.CheckoutAt); ok {
				sum.MissingCheckins = append(sum.MissingCheckins, MissingMark{WorkDate: rec.WorkDate, At: *rec.CheckoutAt})
			}
		case rec.CheckinAt != nil && rec.CheckoutAt == nil:
			if _, ok := s.classifier.Classify(role, *rec.CheckinAt); ok {
				sum.MissingCheckouts = append(sum.MissingCheckouts, MissingMark{WorkDate: rec.WorkDate, At: *rec.CheckinAt})
			}
		}
	}
	sort.Slice(sum.MissingCheckins, func(i, j int) bool {
		return sum.MissingCheckins[i].WorkDate < sum.MissingCheckins[j].WorkDate
	})
	sort.Slice(sum.MissingCheckouts, func(i, j int) bool {
		return sum.MissingCheckouts[i].WorkDate < sum.MissingCheckouts[j].WorkDate
	})
	return sum
}

// Records returns a snapshot of the ledger, ordered by key.
func (s *AttendanceService) Records() []*model.AttendanceRecord {
	s.mu.Lock()
	out := make([]*model.AttendanceRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		cp.Breaks = append([]model.BreakLog(nil), rec.Breaks...)
		out = append(out, &cp)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.WorkDate != b.WorkDate {
			return a.WorkDate < b.WorkDate
		}
		return a.ShiftName < b.ShiftName
	})
	return out
}

// SummaryText renders a MonthlySummary for chat delivery.
func (s *AttendanceService) SummaryText(ctx context.Context, sum *MonthlySummary) string {
	var b strings.Builder
	b.WriteString(i18n.T(ctx, "report.header"))
	b.WriteString("\n")
	b.WriteString(i18n.T(ctx, "report.month_days", map[string]any{"Days": sum.WorkedDays}))
	b.WriteString("\n")
	b.WriteString(i18n.T(ctx, "report.total_days", map[string]any{"Days": sum.WorkedDaysTotal}))
	if len(sum.MissingCheckins) > 0 {
		b.WriteString("\n")
		b.WriteString(i18n.T(ctx, "report.missing_checkin_header"))
		for _, m := range sum.MissingCheckins {
			b.WriteString("\n- " + m.WorkDate + " " + m.At.Format("15:04:05"))
		}
	}
	if len(sum.MissingCheckouts) > 0 {
		b.WriteString("\n")
		b.WriteString(i18n.T(ctx, "report.missing_checkout_header"))
		for _, m := range sum.MissingCheckouts {
			b.WriteString("\n- " + m.WorkDate + " " + m.At.Format("15:04:05"))
		}
	}
	return b.String()
}

// updateRecord upserts and mutates the ledger entry for key, marking it
// dirty for the next flush. Records are created lazily and fields are
// only ever filled in.
func (s *AttendanceService) updateRecord(key model.RecordKey, mutate func(*model.AttendanceRecord)) {
	now := s.clock.Now()
	s.mu.Lock()
	rec, ok := s.records[key]
	if !ok {
		rec = &model.AttendanceRecord{
			UserID:    key.UserID,
			WorkDate:  key.WorkDate,
			ShiftName: key.ShiftName,
			CreatedAt: now,
		}
		s.records[key] = rec
	}
	mutate(rec)
	rec.UpdatedAt = now
	s.dirty[key] = struct{}{}
	s.mu.Unlock()
}

// flush saves every dirty record. Failures are logged and the record
// stays dirty so the next mutating operation retries; the in-memory
// ledger remains authoritative either way.
func (s *AttendanceService) flush(ctx context.Context) {
	s.mu.Lock()
	pending := make([]*model.AttendanceRecord, 0, len(s.dirty))
	for key := range s.dirty {
		rec, ok := s.records[key]
		if !ok {
			delete(s.dirty, key)
			continue
		}
		cp := *rec
		cp.Breaks = append([]model.BreakLog(nil), rec.Breaks...)
		pending = append(pending, &cp)
	}
	s.mu.Unlock()

	for _, rec := range pending {
		if err := s.store.SaveRecord(ctx, rec); err != nil {
			s.log.Warn("save attendance record failed, will retry",
				zap.Int64("user_id", rec.UserID),
				zap.String("work_date", rec.WorkDate),
				zap.String("shift", rec.ShiftName),
				zap.Error(err))
			continue
		}
		s.mu.Lock()
		delete(s.dirty, rec.Key())
		s.mu.Unlock()
	}
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from).Minutes())
}

// FormatDuration renders a duration as "Xh Ym Zs" for chat messages.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%dh %dm %ds", total/3600, (total%3600)/60, total%60)
}
