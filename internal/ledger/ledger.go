// Package ledger owns the goals, check-ins, wallet and profile aggregates of one account.
//
// Every mutation is pessimistic: the next state is built on copies, written through the
// Store, and only applied in memory once the write has succeeded.
package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"commit/internal/models"
)

const (
	accountKey = "account"

	defaultCommitTimeout = 10 * time.Second
)

// Ledger serialises the operations of one account
type Ledger struct {
	mu       sync.Mutex
	store    Store
	state    *State
	inFlight map[string]struct{}

	now     func() time.Time
	newID   func() string
	timeout time.Duration
	log     *zap.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides how record IDs are generated
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithCommitTimeout bounds every store write
func WithCommitTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the logger used for persistence failures
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// New wraps an already loaded state
func New(store Store, state *State, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		state:    state,
		inFlight: make(map[string]struct{}),
		now:      time.Now,
		newID:    NewID,
		timeout:  defaultCommitTimeout,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open loads an account's state from the store
func Open(ctx context.Context, store Store, accountID string, opts ...Option) (*Ledger, error) {
	state, err := store.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return New(store, state, opts...), nil
}

// AccountID returns the ID of the account this ledger belongs to
func (l *Ledger) AccountID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Account.ID
}

// Account returns a copy of the account profile
func (l *Ledger) Account() models.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.state.Account
}

// Wallet returns a copy of the wallet, or nil if the account has none
func (l *Ledger) Wallet() *models.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Wallet == nil {
		return nil
	}
	return l.state.Wallet.Clone()
}

// Goals returns copies of all goals in creation order
func (l *Ledger) Goals() []models.Goal {
	l.mu.Lock()
	defer l.mu.Unlock()
	goals := make([]models.Goal, 0, len(l.state.Goals))
	for _, g := range l.state.Goals {
		goals = append(goals, *g.Clone())
	}
	return goals
}

// Goal returns a copy of one goal
func (l *Ledger) Goal(goalID string) (models.Goal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := l.findGoal(goalID)
	if g == nil {
		return models.Goal{}, ErrGoalNotFound
	}
	return *g.Clone(), nil
}

// CheckIns returns the check-ins of a goal, or of every goal when goalID is empty
func (l *Ledger) CheckIns(goalID string) []models.CheckIn {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.CheckIn
	for _, c := range l.state.CheckIns {
		if goalID == "" || c.GoalID == goalID {
			out = append(out, *c)
		}
	}
	return out
}

// Achievements returns the unlocked achievements
func (l *Ledger) Achievements() []models.UserAchievement {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.UserAchievement, 0, len(l.state.Achievements))
	for _, a := range l.state.Achievements {
		out = append(out, *a)
	}
	return out
}

// Snapshot returns a deep copy of the whole state
func (l *Ledger) Snapshot() *State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone()
}

// InFlight reports whether a write touching the goal is still outstanding
func (l *Ledger) InFlight(goalID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.inFlight[goalID]
	return busy
}

func (l *Ledger) findGoal(goalID string) *models.Goal {
	for _, g := range l.state.Goals {
		if g.ID == goalID && g.AccountID == l.state.Account.ID {
			return g
		}
	}
	return nil
}

func (l *Ledger) replaceGoal(next *models.Goal) {
	for i, g := range l.state.Goals {
		if g.ID == next.ID {
			l.state.Goals[i] = next
			return
		}
	}
}

// mutation is prepared under the lock and returns the write plus how to apply it
type mutation func(now time.Time) (*Change, func(), error)

// mutate prepares under the lock, commits without it, then applies under the lock.
// keys marks the goals (or the account) the write touches as in flight.
func (l *Ledger) mutate(ctx context.Context, keys []string, prepare mutation) error {
	l.mu.Lock()
	for _, k := range keys {
		if _, busy := l.inFlight[k]; busy {
			l.mu.Unlock()
			return ErrOperationInFlight
		}
	}
	change, apply, err := prepare(l.now())
	if err != nil {
		l.mu.Unlock()
		return err
	}
	for _, k := range keys {
		l.inFlight[k] = struct{}{}
	}
	change.AccountID = l.state.Account.ID
	l.mu.Unlock()

	err = l.commit(ctx, change)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		delete(l.inFlight, k)
	}
	if err != nil {
		return err
	}
	apply()
	return nil
}

func (l *Ledger) commit(ctx context.Context, change *Change) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.Commit(ctx, change); err != nil {
		l.log.Error("ledger commit failed",
			zap.String("op", change.Op),
			zap.String("account_id", change.AccountID),
			zap.Error(err))
		return &PersistenceError{Op: change.Op, Err: err}
	}
	l.log.Debug("ledger commit", zap.String("op", change.Op), zap.String("account_id", change.AccountID))
	return nil
}
