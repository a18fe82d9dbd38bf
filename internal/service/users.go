package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// UserStore is the durable backing for the registration set.
type UserStore interface {
	AddUser(ctx context.Context, userID int64) error
	LoadUsers(ctx context.Context) ([]int64, error)
}

// UserRegistry tracks which users have registered with the bot. The
// in-memory set is authoritative; persistence is best-effort.
type UserRegistry struct {
	store UserStore
	log   *zap.Logger

	mu    sync.RWMutex
	users map[int64]struct{}
}

func NewUserRegistry(store UserStore, log *zap.Logger) *UserRegistry {
	return &UserRegistry{
		store: store,
		log:   log,
		users: make(map[int64]struct{}),
	}
}

// Load hydrates the set from the store at startup.
func (r *UserRegistry) Load(ctx context.Context) error {
	ids, err := r.store.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load registered users: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.users[id] = struct{}{}
	}
	r.log.Info("registered users loaded", zap.Int("count", len(ids)))
	return nil
}

// Register adds the user to the set, reporting whether they were new.
func (r *UserRegistry) Register(ctx context.Context, userID int64) bool {
	r.mu.Lock()
	_, exists := r.users[userID]
	if !exists {
		r.users[userID] = struct{}{}
	}
	r.mu.Unlock()

	if exists {
		return false
	}
	if err := r.store.AddUser(ctx, userID); err != nil {
		r.log.Warn("persist registered user failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return true
}

func (r *UserRegistry) IsRegistered(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}
