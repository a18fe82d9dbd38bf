package service

// NotificationSink delivers user-facing messages. Implementations are
// best-effort: a false return means the message was dropped, and the
// caller carries on regardless.
type NotificationSink interface {
	NotifyUser(userID int64, text string) bool
	NotifyBroadcast(text string) bool
}
