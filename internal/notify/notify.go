// Package notify decides when an account is due a check-in reminder and delivers it.
package notify

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"commit/internal/ledger"
	"commit/internal/models"
)

// Frequency is how often reminders may be sent
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

var minGap = map[Frequency]time.Duration{
	Daily:   24 * time.Hour,
	Weekly:  168 * time.Hour,
	Monthly: 720 * time.Hour,
}

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Settings are an account's reminder preferences
type Settings struct {
	Enabled   bool       `json:"enabled"`
	Frequency Frequency  `json:"frequency"`
	Time      string     `json:"time"`
	LastShown *time.Time `json:"last_shown,omitempty"`
}

// DefaultSettings is what an account starts with: reminders off, weekly at 09:00
func DefaultSettings() Settings {
	return Settings{Frequency: Weekly, Time: "09:00"}
}

// Validate checks the frequency and the HH:MM time
func (s Settings) Validate() error {
	if _, ok := minGap[s.Frequency]; !ok {
		return &ledger.ValidationError{Field: "frequency", Message: fmt.Sprintf("unknown frequency %q", s.Frequency)}
	}
	if !clockTime.MatchString(s.Time) {
		return &ledger.ValidationError{Field: "time", Message: "time must be HH:MM"}
	}
	return nil
}

// Due reports whether a reminder may be sent at now.
// An enabled account that has never been reminded is always due.
func (s Settings) Due(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.LastShown == nil {
		return true
	}
	gap, ok := minGap[s.Frequency]
	if !ok {
		return false
	}
	return now.Sub(*s.LastShown) >= gap
}

// Message is a reminder ready to deliver
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Compose builds reminder variant i (taken modulo the number of variants)
func Compose(counts ledger.ReminderCounts, i int) Message {
	bodies := []string{
		fmt.Sprintf("You have %d active goals. How's your progress today?", counts.ActiveGoals),
		fmt.Sprintf("Time to check in on your goals! %d updated today.", counts.CheckedInToday),
		"Your goals are waiting! Quick check-in?",
		"Making progress is a daily choice. Update your goals!",
	}
	if i < 0 {
		i = -i
	}
	return Message{Title: "Goal Check-in", Body: bodies[i%len(bodies)]}
}

// Recipient identifies who a reminder goes to
type Recipient struct {
	AccountID string
	Username  string
	Email     string
}

// Sender delivers a reminder
type Sender interface {
	Send(ctx context.Context, to Recipient, msg Message) error
}

// SettingsStore persists reminder settings across restarts
type SettingsStore interface {
	ReminderSettings(ctx context.Context) ([]models.ReminderSettings, error)
	SaveReminderSettings(ctx context.Context, settings models.ReminderSettings) error
}

// Notifier keeps reminder settings per account and sends reminders that are due
type Notifier struct {
	sender Sender
	store  SettingsStore
	log    *zap.Logger
	now    func() time.Time
	pick   func(n int) int

	// mu is held across store writes so saves for an account land in order
	mu       sync.Mutex
	settings map[string]Settings
}

// Option configures a Notifier
type Option func(*Notifier)

// WithSettingsStore writes every settings change through to st
func WithSettingsStore(st SettingsStore) Option {
	return func(n *Notifier) { n.store = st }
}

// NewNotifier creates a notifier delivering through sender
func NewNotifier(sender Sender, log *zap.Logger, opts ...Option) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Notifier{
		sender:   sender,
		log:      log,
		now:      time.Now,
		pick:     rand.IntN,
		settings: make(map[string]Settings),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Restore loads the stored settings of every account
func (n *Notifier) Restore(ctx context.Context) error {
	if n.store == nil {
		return nil
	}
	rows, err := n.store.ReminderSettings(ctx)
	if err != nil {
		return fmt.Errorf("load reminder settings: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range rows {
		n.settings[r.AccountID] = Settings{
			Enabled:   r.Enabled,
			Frequency: Frequency(r.Frequency),
			Time:      r.Time,
			LastShown: r.LastShown,
		}
	}
	n.log.Info("reminder settings restored", zap.Int("accounts", len(rows)))
	return nil
}

// save must be called with n.mu held
func (n *Notifier) save(ctx context.Context, accountID string, s Settings) error {
	if n.store == nil {
		return nil
	}
	return n.store.SaveReminderSettings(ctx, models.ReminderSettings{
		AccountID: accountID,
		Enabled:   s.Enabled,
		Frequency: string(s.Frequency),
		Time:      s.Time,
		LastShown: s.LastShown,
	})
}

// markShown records now as the last reminder time. A failed write is logged; the
// reminder has already gone out.
func (n *Notifier) markShown(ctx context.Context, accountID string, s Settings, now time.Time) {
	s.LastShown = &now
	n.settings[accountID] = s
	if err := n.save(ctx, accountID, s); err != nil {
		n.log.Warn("failed to save reminder time", zap.String("account_id", accountID), zap.Error(err))
	}
}

// Settings returns an account's reminder settings
func (n *Notifier) Settings(accountID string) Settings {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.settings[accountID]
	if !ok {
		return DefaultSettings()
	}
	return s
}

// UpdateSettings replaces an account's preferences, keeping when it was last reminded.
// Memory changes only once the store accepted the write.
func (n *Notifier) UpdateSettings(ctx context.Context, accountID string, s Settings) (Settings, error) {
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	s.LastShown = n.settings[accountID].LastShown
	if err := n.save(ctx, accountID, s); err != nil {
		return Settings{}, &ledger.PersistenceError{Op: "update_reminders", Err: err}
	}
	n.settings[accountID] = s
	return s, nil
}

// Enabled returns the IDs of accounts that have reminders turned on
func (n *Notifier) Enabled() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for id, s := range n.settings {
		if s.Enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// Remind sends a reminder if one is due, returning whether it was sent
func (n *Notifier) Remind(ctx context.Context, to Recipient, counts ledger.ReminderCounts) (bool, error) {
	now := n.now()
	if !n.Settings(to.AccountID).Due(now) {
		return false, nil
	}

	msg := Compose(counts, n.pick(4))
	if err := n.sender.Send(ctx, to, msg); err != nil {
		n.log.Error("failed to send reminder", zap.String("account_id", to.AccountID), zap.Error(err))
		return false, err
	}

	n.mu.Lock()
	s, ok := n.settings[to.AccountID]
	if !ok {
		s = DefaultSettings()
	}
	n.markShown(ctx, to.AccountID, s, now)
	n.mu.Unlock()

	n.log.Info("reminder sent", zap.String("account_id", to.AccountID))
	return true, nil
}

// Take returns the in-app reminder for an account if one is due and marks it shown
func (n *Notifier) Take(ctx context.Context, accountID string, counts ledger.ReminderCounts) (Message, bool) {
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.settings[accountID]
	if !ok || !s.Due(now) {
		return Message{}, false
	}
	n.markShown(ctx, accountID, s, now)
	return Compose(counts, n.pick(4)), true
}

// Source looks up the recipient and counters of an account
type Source func(ctx context.Context, accountID string) (Recipient, ledger.ReminderCounts, error)

// Run checks every enabled account each interval until ctx is cancelled
func (n *Notifier) Run(ctx context.Context, interval time.Duration, source Source) {
	if interval <= 0 {
		n.log.Info("reminder sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.sweep(ctx, source)
		}
	}
}

func (n *Notifier) sweep(ctx context.Context, source Source) {
	for _, id := range n.Enabled() {
		to, counts, err := source(ctx, id)
		if err != nil {
			n.log.Warn("skipping reminder", zap.String("account_id", id), zap.Error(err))
			continue
		}
		// errors are logged by Remind
		_, _ = n.Remind(ctx, to, counts)
	}
}
