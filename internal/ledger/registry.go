package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"commit/internal/models"
)

const (
	defaultRegistrySize = 1024
	defaultLoadRetries  = 3
	defaultRetryBackoff = 100 * time.Millisecond
)

// RegistryConfig tunes a Registry
type RegistryConfig struct {
	Size         int
	LoadRetries  int
	RetryBackoff time.Duration
}

// Registry hands out one Ledger per account, keeping recently used ones in memory.
//
// An evicted ledger that still has a commit outstanding finishes that commit, but a later
// Get loads a fresh ledger from the store.
type Registry struct {
	store Store
	cache *lru.Cache
	cfg   RegistryConfig
	opts  []Option
	log   *zap.Logger

	mu      sync.Mutex
	loading map[string]*pendingLoad
}

type pendingLoad struct {
	done   chan struct{}
	ledger *Ledger
	err    error
}

// NewRegistry creates a registry over the store. opts are applied to every ledger.
func NewRegistry(store Store, cfg RegistryConfig, log *zap.Logger, opts ...Option) (*Registry, error) {
	if cfg.Size <= 0 {
		cfg.Size = defaultRegistrySize
	}
	if cfg.LoadRetries <= 0 {
		cfg.LoadRetries = defaultLoadRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := lru.New(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("create ledger cache: %w", err)
	}
	return &Registry{
		store:   store,
		cache:   cache,
		cfg:     cfg,
		opts:    append([]Option{WithLogger(log)}, opts...),
		log:     log,
		loading: make(map[string]*pendingLoad),
	}, nil
}

// Get returns the ledger of an account, loading it from the store if needed
func (r *Registry) Get(ctx context.Context, accountID string) (*Ledger, error) {
	r.mu.Lock()
	if v, ok := r.cache.Get(accountID); ok {
		r.mu.Unlock()
		return v.(*Ledger), nil
	}
	if p, ok := r.loading[accountID]; ok {
		r.mu.Unlock()
		select {
		case <-p.done:
			return p.ledger, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p := &pendingLoad{done: make(chan struct{})}
	r.loading[accountID] = p
	r.mu.Unlock()

	p.ledger, p.err = r.load(ctx, accountID)

	r.mu.Lock()
	if p.err == nil {
		r.cache.Add(accountID, p.ledger)
	}
	delete(r.loading, accountID)
	r.mu.Unlock()
	close(p.done)

	return p.ledger, p.err
}

// Bootstrap persists a new account and caches its ledger
func (r *Registry) Bootstrap(ctx context.Context, account *models.Account) (*Ledger, error) {
	change := &Change{
		Op:         "create_account",
		AccountID:  account.ID,
		NewAccount: true,
		Account:    account,
	}
	if err := r.store.Commit(ctx, change); err != nil {
		return nil, &PersistenceError{Op: change.Op, Err: err}
	}

	acct := *account
	l := New(r.store, &State{Account: &acct}, r.opts...)
	r.mu.Lock()
	r.cache.Add(account.ID, l)
	r.mu.Unlock()
	return l, nil
}

// Forget drops an account's ledger from memory
func (r *Registry) Forget(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(accountID)
}

// Len returns the number of ledgers held in memory
func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) load(ctx context.Context, accountID string) (*Ledger, error) {
	var lastErr error
	for attempt := 0; attempt < r.cfg.LoadRetries; attempt++ {
		l, err := Open(ctx, r.store, accountID, r.opts...)
		if err == nil {
			return l, nil
		}
		if errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}
		lastErr = err
		r.log.Warn("ledger load failed",
			zap.String("account_id", accountID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt == r.cfg.LoadRetries-1 {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * r.cfg.RetryBackoff
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, &PersistenceError{Op: "load", Err: ctx.Err()}
		}
	}
	return nil, &PersistenceError{Op: "load", Err: lastErr}
}
