package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"shiftbot/internal/model"
	"shiftbot/internal/shift"
)

// CheckedInState exists only while a user is at work. Its absence means
// "not checked in". The shift window captured here is carried through to
// check-out; it is never re-derived from the check-out timestamp.
type CheckedInState struct {
	At       time.Time
	WorkDate time.Time
	Window   shift.Window
	Role     shift.Role
}

// ActivitySession is the single open break activity a user may hold.
// The uuid identity keys the timeout watch and escalation reminder, so
// a stale timer can never act on a successor session.
type ActivitySession struct {
	ID         uuid.UUID
	Kind       model.ActivityKind
	StartedAt  time.Time
	QuotaIndex int
	TimedOut   bool

	escalating bool
	watch      Timer
	escalation Timer
}

// userState bundles everything mutable about one user. All reads and
// writes happen under mu; operations on different users never contend.
type userState struct {
	mu      sync.Mutex
	checkin *CheckedInState
	session *ActivitySession
	quota   map[model.ActivityKind]int
}

// closeSession clears the open session and stops its timers. The caller
// must hold u.mu. A watch that is already mid-fire finds session nil (or
// a different session ID) and backs off.
func (u *userState) closeSession() *ActivitySession {
	sess := u.session
	if sess == nil {
		return nil
	}
	if sess.watch != nil {
		sess.watch.Stop()
	}
	if sess.escalation != nil {
		sess.escalation.Stop()
	}
	u.session = nil
	return sess
}

type stateRegistry struct {
	mu    sync.RWMutex
	users map[int64]*userState
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{users: make(map[int64]*userState)}
}

func (r *stateRegistry) get(userID int64) *userState {
	r.mu.RLock()
	st, ok := r.users[userID]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok = r.users[userID]; ok {
		return st
	}
	st = &userState{quota: make(map[model.ActivityKind]int)}
	r.users[userID] = st
	return st
}
