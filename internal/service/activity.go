package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftbot/internal/i18n"
	"shiftbot/internal/model"
)

// ActivityConfig holds the per-kind duration limits, per-check-in usage
// quotas, and the escalation reminder cadence.
type ActivityConfig struct {
	Limits             map[model.ActivityKind]time.Duration
	MaxTimes           map[model.ActivityKind]int
	EscalationInterval time.Duration
}

// DefaultActivityConfig returns the shipped quota tables.
func DefaultActivityConfig() ActivityConfig {
	return ActivityConfig{
		Limits: map[model.ActivityKind]time.Duration{
			model.ActivityEating:      30 * time.Minute,
			model.ActivityToiletLarge: 15 * time.Minute,
			model.ActivityToiletSmall: 10 * time.Minute,
			model.ActivitySmoking:     10 * time.Minute,
			model.ActivityOther:       15 * time.Minute,
		},
		MaxTimes: map[model.ActivityKind]int{
			model.ActivityEating:      3,
			model.ActivityToiletLarge: 1,
			model.ActivityToiletSmall: 4,
			model.ActivitySmoking:     4,
			model.ActivityOther:       2,
		},
		EscalationInterval: 5 * time.Minute,
	}
}

// ActivityService owns the single-active-session-per-user invariant,
// enforces per-activity quotas, and runs the timeout watch plus the
// repeating escalation reminder for overrunning breaks.
type ActivityService struct {
	att  *AttendanceService
	cfg  ActivityConfig
	sink NotificationSink
	log  *zap.Logger
}

func NewActivityService(att *AttendanceService, cfg ActivityConfig, sink NotificationSink, log *zap.Logger) *ActivityService {
	return &ActivityService{att: att, cfg: cfg, sink: sink, log: log}
}

type StartResult struct {
	Kind       model.ActivityKind
	StartedAt  time.Time
	QuotaIndex int
	Remaining  int
}

// Start opens a break activity session. The user must be checked in,
// idle, and under the kind's quota; the quota counter is only bumped
// once all three checks pass.
func (s *ActivityService) Start(ctx context.Context, userID int64, username string, kind model.ActivityKind) (*StartResult, error) {
	limit, ok := s.cfg.Limits[kind]
	if !ok {
		return nil, fmt.Errorf("unknown activity kind %q", kind)
	}
	max := s.cfg.MaxTimes[kind]
	now := s.att.clock.Now()

	st := s.att.states.get(userID)
	st.mu.Lock()
	if st.checkin == nil {
		st.mu.Unlock()
		return nil, ErrNotCheckedIn
	}
	if st.session != nil {
		st.mu.Unlock()
		return nil, ErrActivityAlreadyActive
	}
	if st.quota[kind] >= max {
		st.mu.Unlock()
		return nil, ErrQuotaExceeded
	}
	st.quota[kind]++
	sess := &ActivitySession{
		ID:         uuid.New(),
		Kind:       kind,
		StartedAt:  now,
		QuotaIndex: st.quota[kind],
	}
	sessionID := sess.ID
	sess.watch = s.att.clock.AfterFunc(limit, func() {
		s.onTimeout(userID, username, sessionID)
	})
	st.session = sess
	st.mu.Unlock()

	res := &StartResult{
		Kind:       kind,
		StartedAt:  now,
		QuotaIndex: sess.QuotaIndex,
		Remaining:  max - sess.QuotaIndex,
	}

	s.sink.NotifyBroadcast(i18n.T(ctx, "activity.broadcast", map[string]any{
		"Name":      username,
		"Time":      now.Format("2006-01-02 15:04:05"),
		"Activity":  i18n.T(ctx, "activity.label."+string(kind)),
		"Ordinal":   ordinal(res.QuotaIndex),
		"Remaining": res.Remaining,
	}))
	return res, nil
}

type EndResult struct {
	Kind     model.ActivityKind
	Duration time.Duration
	TimedOut bool
}

// End closes the open session, cancelling the timeout watch and any
// escalation reminder, and appends the break to the day's record.
func (s *ActivityService) End(ctx context.Context, userID int64, username string) (*EndResult, error) {
	now := s.att.clock.Now()

	st := s.att.states.get(userID)
	st.mu.Lock()
	sess := st.closeSession()
	if sess == nil {
		st.mu.Unlock()
		return nil, ErrNoActiveActivity
	}
	ci := st.checkin
	st.mu.Unlock()

	duration := now.Sub(sess.StartedAt)

	if ci != nil {
		key := model.RecordKey{
			UserID:    userID,
			WorkDate:  ci.WorkDate.Format(time.DateOnly),
			ShiftName: ci.Window.Name,
		}
		s.att.updateRecord(key, func(rec *model.AttendanceRecord) {
			end := now
			rec.Breaks = append(rec.Breaks, model.BreakLog{
				Kind:     sess.Kind,
				Start:    sess.StartedAt,
				End:      &end,
				TimedOut: sess.TimedOut,
			})
		})
		s.att.flush(ctx)
	}

	text := i18n.T(ctx, "activity.returned", map[string]any{
		"Name":     username,
		"Activity": i18n.T(ctx, "activity.label."+string(sess.Kind)),
		"Duration": FormatDuration(duration),
	})
	if sess.TimedOut {
		text += " ⚠️"
	}
	s.sink.NotifyBroadcast(text)

	return &EndResult{Kind: sess.Kind, Duration: duration, TimedOut: sess.TimedOut}, nil
}

// QuotaStat is one row of the per-kind usage card.
type QuotaStat struct {
	Kind model.ActivityKind
	Used int
	Max  int
}

// QuotaStats reports current-check-in usage per activity kind, in
// display order.
func (s *ActivityService) QuotaStats(userID int64) []QuotaStat {
	st := s.att.states.get(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	stats := make([]QuotaStat, 0, len(model.ActivityKinds))
	for _, kind := range model.ActivityKinds {
		stats = append(stats, QuotaStat{
			Kind: kind,
			Used: st.quota[kind],
			Max:  s.cfg.MaxTimes[kind],
		})
	}
	return stats
}

// onTimeout fires when a session outlives its duration limit. It must
// verify the session it was armed for is still the open one: the watch
// may race with End or CheckOut. Arming the escalation reminder happens
// at most once per session.
func (s *ActivityService) onTimeout(userID int64, username string, sessionID uuid.UUID) {
	st := s.att.states.get(userID)
	st.mu.Lock()
	sess := st.session
	if sess == nil || sess.ID != sessionID {
		st.mu.Unlock()
		return
	}
	sess.TimedOut = true
	if !sess.escalating {
		sess.escalating = true
		sess.escalation = s.att.clock.AfterFunc(s.cfg.EscalationInterval, func() {
			s.onEscalation(userID, username, sessionID)
		})
	}
	kind := sess.Kind
	startedAt := sess.StartedAt
	st.mu.Unlock()

	ctx := context.Background()
	s.log.Warn("activity timed out",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)))
	s.sink.NotifyBroadcast(i18n.T(ctx, "activity.timeout", map[string]any{
		"Name":     username,
		"Activity": i18n.T(ctx, "activity.label."+string(kind)),
		"Minutes":  minutesBetween(startedAt, s.att.clock.Now()),
	}))
}

// onEscalation re-fires at a fixed interval until End cancels it. Each
// firing re-checks that its session is still current before alerting or
// re-arming.
func (s *ActivityService) onEscalation(userID int64, username string, sessionID uuid.UUID) {
	st := s.att.states.get(userID)
	st.mu.Lock()
	sess := st.session
	if sess == nil || sess.ID != sessionID {
		st.mu.Unlock()
		return
	}
	sess.escalation = s.att.clock.AfterFunc(s.cfg.EscalationInterval, func() {
		s.onEscalation(userID, username, sessionID)
	})
	kind := sess.Kind
	startedAt := sess.StartedAt
	st.mu.Unlock()

	ctx := context.Background()
	s.sink.NotifyBroadcast(i18n.T(ctx, "activity.escalation", map[string]any{
		"Name":     username,
		"Activity": i18n.T(ctx, "activity.label."+string(kind)),
		"Minutes":  minutesBetween(startedAt, s.att.clock.Now()),
	}))
}

func ordinal(n int) string {
	if n%100 >= 10 && n%100 <= 20 {
		return fmt.Sprintf("%dth", n)
	}
	switch n % 10 {
	case 1:
		return fmt.Sprintf("%dst", n)
	case 2:
		return fmt.Sprintf("%dnd", n)
	case 3:
		return fmt.Sprintf("%drd", n)
	default:
		return fmt.Sprintf("%dth", n)
	}
}
