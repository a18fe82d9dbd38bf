package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"shiftbot/internal/i18n"
	"shiftbot/internal/model"
	"shiftbot/internal/service"
	"shiftbot/internal/shift"
	"shiftbot/internal/telegram"
)

// Button labels of the persistent reply keyboard.
const (
	btnCheckIn  = "🏢 Check In"
	btnCheckOut = "🏠 Check Out"
	btnEat      = "🍽 Eat"
	btnSmoking  = "🚬 Smoking"
	btnPee      = "💧 Pee"
	btnToilet   = "🚽 Toilet"
	btnOther    = "📝 Other"
	btnReturn   = "↩ Return"
)

// Bot routes incoming Telegram updates to the core services and renders
// their results and errors as chat replies.
type Bot struct {
	tg          *telegram.Client
	attendance  *service.AttendanceService
	activity    *service.ActivityService
	users       *service.UserRegistry
	roleFor     func(userID int64) shift.Role
	locale      string
	pollTimeout int
	log         *zap.Logger
}

func NewBot(tg *telegram.Client, attendance *service.AttendanceService, activity *service.ActivityService, users *service.UserRegistry, roleFor func(int64) shift.Role, locale string, pollTimeout int, log *zap.Logger) *Bot {
	return &Bot{
		tg:          tg,
		attendance:  attendance,
		activity:    activity,
		users:       users,
		roleFor:     roleFor,
		locale:      locale,
		pollTimeout: pollTimeout,
		log:         log,
	}
}

// Run long-polls for updates until ctx is cancelled. Each update is
// dispatched on its own goroutine; per-user serialization happens
// inside the services.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := b.tg.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Warn("get updates failed", zap.Error(err))
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.From == nil || u.Message.Text == "" {
				continue
			}
			msg := u.Message
			go b.handleMessage(ctx, msg)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	ctx = i18n.WithLocale(ctx, b.locale)
	uid := msg.From.ID
	name := msg.From.FirstName
	text := msg.Text

	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(ctx, uid, name)
	case strings.HasPrefix(text, "/report"):
		b.handleReport(ctx, uid)
	case strings.Contains(text, "Check In"):
		b.handleCheckIn(ctx, uid, name)
	case strings.Contains(text, "Check Out"):
		b.handleCheckOut(ctx, uid, name)
	case strings.Contains(text, "Return"):
		b.handleReturn(ctx, uid, name)
	case strings.Contains(text, "Eat"):
		b.handleActivity(ctx, uid, name, model.ActivityEating)
	case strings.Contains(text, "Smoking"):
		b.handleActivity(ctx, uid, name, model.ActivitySmoking)
	case strings.Contains(text, "Pee"):
		b.handleActivity(ctx, uid, name, model.ActivityToiletSmall)
	case strings.Contains(text, "Toilet"):
		b.handleActivity(ctx, uid, name, model.ActivityToiletLarge)
	case strings.Contains(text, "Other"):
		b.handleActivity(ctx, uid, name, model.ActivityOther)
	}
}

func (b *Bot) handleStart(ctx context.Context, uid int64, name string) {
	fresh := b.users.Register(ctx, uid)

	var lines []string
	if fresh {
		lines = append(lines, i18n.T(ctx, "start.registered"))
	} else {
		lines = append(lines, i18n.T(ctx, "start.already"))
	}
	if ci, ok := b.attendance.CheckedIn(uid); ok {
		lines = append(lines, i18n.T(ctx, "status.working", map[string]any{"Time": ci.At.Format("15:04:05")}))
	} else {
		lines = append(lines, i18n.T(ctx, "status.off"))
	}
	lines = append(lines, "", b.statsText(ctx, uid))

	b.reply(ctx, uid, strings.Join(lines, "\n"), mainKeyboard())
	b.log.Info("user started", zap.Int64("user_id", uid), zap.String("name", name), zap.Bool("new", fresh))
}

func (b *Bot) handleCheckIn(ctx context.Context, uid int64, name string) {
	res, err := b.attendance.CheckIn(ctx, uid, name, b.roleFor(uid))
	if err != nil {
		b.reply(ctx, uid, b.errorText(ctx, err, ""), nil)
		return
	}
	text := i18n.T(ctx, "reply.checkin.success", map[string]any{"Time": res.At.Format("15:04:05")}) +
		"\n\n" + b.statsText(ctx, uid)
	b.reply(ctx, uid, text, mainKeyboard())
}

func (b *Bot) handleCheckOut(ctx context.Context, uid int64, name string) {
	res, err := b.attendance.CheckOut(ctx, uid, name)
	if err != nil {
		b.reply(ctx, uid, b.errorText(ctx, err, ""), nil)
		return
	}
	b.reply(ctx, uid, i18n.T(ctx, "reply.checkout.success", map[string]any{
		"Duration": service.FormatDuration(res.Duration),
	}), nil)
}

func (b *Bot) handleActivity(ctx context.Context, uid int64, name string, kind model.ActivityKind) {
	_, err := b.activity.Start(ctx, uid, name, kind)
	if err != nil {
		b.reply(ctx, uid, b.errorText(ctx, err, kind), nil)
		return
	}
	b.reply(ctx, uid, i18n.T(ctx, "reply.activity.started", map[string]any{
		"Activity": i18n.T(ctx, "activity.label."+string(kind)),
	}), nil)
}

func (b *Bot) handleReturn(ctx context.Context, uid int64, name string) {
	_, err := b.activity.End(ctx, uid, name)
	if err != nil {
		b.reply(ctx, uid, b.errorText(ctx, err, ""), nil)
		return
	}
	b.reply(ctx, uid, i18n.T(ctx, "reply.activity.returned")+"\n"+b.statsText(ctx, uid), nil)
}

func (b *Bot) handleReport(ctx context.Context, uid int64) {
	yearMonth := b.attendance.Now().Format("2006-01")
	sum := b.attendance.MonthlySummary(uid, b.roleFor(uid), yearMonth)
	b.reply(ctx, uid, b.attendance.SummaryText(ctx, sum), nil)
}

// reply delivers a direct response. Keyboard-less replies go through the
// best-effort NotifyUser path; only replies attaching the keyboard need
// the raw SendMessage call.
func (b *Bot) reply(ctx context.Context, uid int64, text string, kb *telegram.ReplyKeyboardMarkup) {
	if kb == nil {
		b.tg.NotifyUser(uid, text)
		return
	}
	if err := b.tg.SendMessage(ctx, uid, text, kb); err != nil {
		b.log.Warn("reply failed", zap.Int64("user_id", uid), zap.Error(err))
	}
}

func (b *Bot) statsText(ctx context.Context, uid int64) string {
	var lines []string
	lines = append(lines, i18n.T(ctx, "stats.header", map[string]any{"UserID": uid}))
	for _, st := range b.activity.QuotaStats(uid) {
		lines = append(lines, i18n.T(ctx, "stats.line", map[string]any{
			"Label": i18n.T(ctx, "activity.label."+string(st.Kind)),
			"Used":  st.Used,
			"Max":   st.Max,
		}))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) errorText(ctx context.Context, err error, kind model.ActivityKind) string {
	switch {
	case errors.Is(err, service.ErrOutsideShiftWindow):
		return i18n.T(ctx, "err.outside_window")
	case errors.Is(err, service.ErrDuplicateCheckIn):
		return i18n.T(ctx, "err.duplicate_checkin")
	case errors.Is(err, service.ErrNotCheckedIn):
		return i18n.T(ctx, "err.not_checked_in")
	case errors.Is(err, service.ErrActivityAlreadyActive):
		return i18n.T(ctx, "err.activity_active")
	case errors.Is(err, service.ErrQuotaExceeded):
		return i18n.T(ctx, "err.quota_exceeded", map[string]any{
			"Activity": i18n.T(ctx, "activity.label."+string(kind)),
		})
	case errors.Is(err, service.ErrNoActiveActivity):
		return i18n.T(ctx, "err.no_activity")
	default:
		b.log.Error("command failed", zap.Error(err))
		return i18n.T(ctx, "err.internal")
	}
}

func mainKeyboard() *telegram.ReplyKeyboardMarkup {
	return &telegram.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: btnCheckIn}, {Text: btnCheckOut}},
			{{Text: btnEat}, {Text: btnSmoking}},
			{{Text: btnPee}, {Text: btnToilet}},
			{{Text: btnOther}, {Text: btnReturn}},
		},
	}
}
