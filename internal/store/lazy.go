package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/leadsync/internal/model"
)

// Opener connects to a backend and returns a ready Store.
type Opener func(ctx context.Context) (Store, error)

// Lazy is a Store that connects on first use. Concurrent first callers
// share one connection attempt; a failed attempt is not remembered, so the
// next call dials again.
type Lazy struct {
	open  Opener
	group singleflight.Group

	mu sync.RWMutex
	st Store
}

var _ Store = (*Lazy)(nil)

// NewLazy wraps open without calling it.
func NewLazy(open Opener) *Lazy {
	return &Lazy{open: open}
}

func (l *Lazy) current() Store {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st
}

// get returns the connected store, opening it if needed. The shared attempt
// runs under the context of whichever caller started it.
func (l *Lazy) get(ctx context.Context) (Store, error) {
	if st := l.current(); st != nil {
		return st, nil
	}

	v, err, _ := l.group.Do("open", func() (any, error) {
		if st := l.current(); st != nil {
			return st, nil
		}
		st, err := l.open(ctx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.st = st
		l.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, persistErr("connect", err)
	}
	return v.(Store), nil
}

func (l *Lazy) CreateLead(ctx context.Context, n model.NewLead) (*model.Lead, error) {
	st, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return st.CreateLead(ctx, n)
}

func (l *Lazy) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	st, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return st.ListLeads(ctx, filter)
}

func (l *Lazy) FindUnsyncedVerified(ctx context.Context) ([]model.Lead, error) {
	st, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return st.FindUnsyncedVerified(ctx)
}

func (l *Lazy) MarkSynced(ctx context.Context, id string) (bool, error) {
	st, err := l.get(ctx)
	if err != nil {
		return false, err
	}
	return st.MarkSynced(ctx, id)
}

func (l *Lazy) Migrate(ctx context.Context) error {
	st, err := l.get(ctx)
	if err != nil {
		return err
	}
	return st.Migrate(ctx)
}

func (l *Lazy) Ping(ctx context.Context) error {
	st, err := l.get(ctx)
	if err != nil {
		return err
	}
	return st.Ping(ctx)
}

// Close closes the underlying store if one was opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	st := l.st
	l.st = nil
	l.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Close()
}
