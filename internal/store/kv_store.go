package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"commit/internal/ledger"
	"commit/internal/models"
)

const (
	keyPrefix      = "commit:"
	leaderboardKey = keyPrefix + "leaderboard"
	remindersKey   = keyPrefix + "reminders"
)

func accountKey(accountID, part string) string {
	return keyPrefix + accountID + ":" + part
}

func userKey(email string) string       { return keyPrefix + "user:" + strings.ToLower(email) }
func usernameKey(name string) string    { return keyPrefix + "username:" + strings.ToLower(name) }
func squadKey(id string) string         { return keyPrefix + "squad:" + id }
func squadCodeKey(code string) string   { return keyPrefix + "squadcode:" + code }
func userIDKey(accountID string) string { return accountKey(accountID, "user") }

// squadRecord keeps every membership, including members who left
type squadRecord struct {
	Squad   models.Squad         `json:"squad"`
	Members []models.SquadMember `json:"members"`
}

func (r *squadRecord) active() *models.SquadWithMembers {
	out := &models.SquadWithMembers{Squad: r.Squad}
	for _, m := range r.Members {
		if m.Status == models.MemberActive {
			out.Members = append(out.Members, m)
		}
	}
	return out
}

// KVStore persists ledgers as JSON documents in a key/value store
type KVStore struct {
	kv  KV
	log *zap.Logger

	// squads are shared between accounts, so their read-modify-write is serialised here
	squadMu sync.Mutex

	// reminder settings share one document
	remindersMu sync.Mutex

	// commits rewrite whole per-account documents and must not interleave
	locksMu sync.Mutex
	locks   map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

// NewKVStore creates a store over kv
func NewKVStore(kv KV, log *zap.Logger) *KVStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &KVStore{kv: kv, log: log, locks: make(map[string]*accountLock)}
}

// lockAccount serialises commits for one account and returns the unlock func
func (s *KVStore) lockAccount(accountID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &accountLock{}
		s.locks[accountID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, accountID)
		}
		s.locksMu.Unlock()
	}
}

// Close closes the underlying KV
func (s *KVStore) Close() error {
	return s.kv.Close()
}

func (s *KVStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(b *Batch, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	b.Set(key, raw)
	return nil
}

// Load reads one account's full ledger state
func (s *KVStore) Load(ctx context.Context, accountID string) (*ledger.State, error) {
	state := &ledger.State{}
	var account models.Account
	found, err := s.getJSON(ctx, accountKey(accountID, "account"), &account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ledger.ErrAccountNotFound
	}
	state.Account = &account

	if _, err := s.getJSON(ctx, accountKey(accountID, "goals"), &state.Goals); err != nil {
		return nil, err
	}
	if _, err := s.getJSON(ctx, accountKey(accountID, "checkins"), &state.CheckIns); err != nil {
		return nil, err
	}
	if _, err := s.getJSON(ctx, accountKey(accountID, "achievements"), &state.Achievements); err != nil {
		return nil, err
	}
	var wallet models.Wallet
	found, err = s.getJSON(ctx, accountKey(accountID, "wallet"), &wallet)
	if err != nil {
		return nil, err
	}
	if found {
		state.Wallet = &wallet
	}
	return state, nil
}

// Commit merges a change into the stored documents and writes them in one batch
func (s *KVStore) Commit(ctx context.Context, ch *ledger.Change) error {
	unlock := s.lockAccount(ch.AccountID)
	defer unlock()

	b := &Batch{}
	var staleUsername string

	if ch.Account != nil {
		var prev models.Account
		found, err := s.getJSON(ctx, accountKey(ch.AccountID, "account"), &prev)
		if err != nil {
			return err
		}
		if !found || !strings.EqualFold(prev.Username, ch.Account.Username) {
			ok, err := s.kv.SetNX(ctx, usernameKey(ch.Account.Username), []byte(ch.AccountID))
			if err != nil {
				return err
			}
			if !ok {
				owner, err := s.kv.Get(ctx, usernameKey(ch.Account.Username))
				if err != nil {
					return err
				}
				if string(owner) != ch.AccountID {
					return fmt.Errorf("username %q: %w", ch.Account.Username, ErrConflict)
				}
			}
			if found {
				staleUsername = prev.Username
			}
		}
		if err := setJSON(b, accountKey(ch.AccountID, "account"), ch.Account); err != nil {
			return err
		}
		b.Score(leaderboardKey, ch.AccountID, float64(ch.Account.XP))
	}

	if len(ch.NewGoals) > 0 || len(ch.UpdatedGoals) > 0 || len(ch.DeletedGoalIDs) > 0 {
		var goals []*models.Goal
		if _, err := s.getJSON(ctx, accountKey(ch.AccountID, "goals"), &goals); err != nil {
			return err
		}
		goals = append(goals, ch.NewGoals...)
		for _, u := range ch.UpdatedGoals {
			i := slices.IndexFunc(goals, func(g *models.Goal) bool { return g.ID == u.ID })
			if i < 0 {
				return fmt.Errorf("goal %s: %w", u.ID, ledger.ErrGoalNotFound)
			}
			goals[i] = u
		}
		goals = slices.DeleteFunc(goals, func(g *models.Goal) bool {
			return slices.Contains(ch.DeletedGoalIDs, g.ID)
		})
		if err := setJSON(b, accountKey(ch.AccountID, "goals"), goals); err != nil {
			return err
		}
	}

	if len(ch.NewCheckIns) > 0 {
		var checkIns []*models.CheckIn
		if _, err := s.getJSON(ctx, accountKey(ch.AccountID, "checkins"), &checkIns); err != nil {
			return err
		}
		for _, c := range ch.NewCheckIns {
			dup := slices.ContainsFunc(checkIns, func(e *models.CheckIn) bool {
				return e.GoalID == c.GoalID && e.Date == c.Date
			})
			if dup {
				return ledger.ErrAlreadyCheckedIn
			}
			checkIns = append(checkIns, c)
		}
		if err := setJSON(b, accountKey(ch.AccountID, "checkins"), checkIns); err != nil {
			return err
		}
	}

	if ch.Wallet != nil {
		if err := setJSON(b, accountKey(ch.AccountID, "wallet"), ch.Wallet); err != nil {
			return err
		}
	}
	if len(ch.NewTransactions) > 0 {
		var txns []*models.Transaction
		if _, err := s.getJSON(ctx, accountKey(ch.AccountID, "transactions"), &txns); err != nil {
			return err
		}
		txns = append(txns, ch.NewTransactions...)
		if err := setJSON(b, accountKey(ch.AccountID, "transactions"), txns); err != nil {
			return err
		}
	}

	if len(ch.NewAchievements) > 0 {
		var unlocked []*models.UserAchievement
		if _, err := s.getJSON(ctx, accountKey(ch.AccountID, "achievements"), &unlocked); err != nil {
			return err
		}
		unlocked = append(unlocked, ch.NewAchievements...)
		if err := setJSON(b, accountKey(ch.AccountID, "achievements"), unlocked); err != nil {
			return err
		}
	}

	if err := s.kv.Apply(ctx, b); err != nil {
		return err
	}
	if staleUsername != "" {
		if err := s.kv.Delete(ctx, usernameKey(staleUsername)); err != nil {
			s.log.Warn("failed to release old username", zap.String("username", staleUsername), zap.Error(err))
		}
	}
	return nil
}

// Transactions returns an account's wallet transactions, newest first
func (s *KVStore) Transactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	var txns []models.Transaction
	if _, err := s.getJSON(ctx, accountKey(accountID, "transactions"), &txns); err != nil {
		return nil, err
	}
	slices.Reverse(txns)
	return txns, nil
}

// CreateUser claims the email and username and stores the credentials
func (s *KVStore) CreateUser(ctx context.Context, user *models.User, username string) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	ok, err := s.kv.SetNX(ctx, userKey(user.Email), raw)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("email %q: %w", user.Email, ErrConflict)
	}
	ok, err = s.kv.SetNX(ctx, usernameKey(username), []byte(user.ID))
	if err == nil && !ok {
		err = fmt.Errorf("username %q: %w", username, ErrConflict)
	}
	if err != nil {
		if delErr := s.kv.Delete(ctx, userKey(user.Email)); delErr != nil {
			s.log.Warn("failed to release email", zap.String("email", user.Email), zap.Error(delErr))
		}
		return err
	}
	b := &Batch{}
	b.Set(userIDKey(user.ID), []byte(strings.ToLower(user.Email)))
	return s.kv.Apply(ctx, b)
}

// UserByEmail returns the user with the email, or nil
func (s *KVStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	found, err := s.getJSON(ctx, userKey(email), &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes the credentials and ledger documents of an account
func (s *KVStore) DeleteUser(ctx context.Context, id string) error {
	keys := []string{userIDKey(id)}
	if email, err := s.kv.Get(ctx, userIDKey(id)); err == nil {
		keys = append(keys, userKey(string(email)))
	} else if !errors.Is(err, ErrKeyNotFound) {
		return err
	}
	var account models.Account
	found, err := s.getJSON(ctx, accountKey(id, "account"), &account)
	if err != nil {
		return err
	}
	if found {
		keys = append(keys, usernameKey(account.Username))
	}
	for _, part := range []string{"account", "goals", "checkins", "wallet", "achievements", "transactions", "squads"} {
		keys = append(keys, accountKey(id, part))
	}
	return s.kv.Delete(ctx, keys...)
}

// UsernameTaken reports whether the username is claimed
func (s *KVStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := s.kv.Get(ctx, usernameKey(username))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CreateSquad claims the invite code and stores the squad with its creator
func (s *KVStore) CreateSquad(ctx context.Context, squad *models.Squad, creator *models.SquadMember) error {
	s.squadMu.Lock()
	defer s.squadMu.Unlock()

	ok, err := s.kv.SetNX(ctx, squadCodeKey(squad.Code), []byte(squad.ID))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("squad code %q: %w", squad.Code, ErrConflict)
	}
	rec := squadRecord{Squad: *squad, Members: []models.SquadMember{*creator}}
	b := &Batch{}
	if err := setJSON(b, squadKey(squad.ID), rec); err != nil {
		return err
	}
	if err := s.addAccountSquad(ctx, b, creator.AccountID, squad.ID); err != nil {
		return err
	}
	return s.kv.Apply(ctx, b)
}

func (s *KVStore) addAccountSquad(ctx context.Context, b *Batch, accountID, squadID string) error {
	var ids []string
	if _, err := s.getJSON(ctx, accountKey(accountID, "squads"), &ids); err != nil {
		return err
	}
	if !slices.Contains(ids, squadID) {
		ids = append(ids, squadID)
	}
	return setJSON(b, accountKey(accountID, "squads"), ids)
}

func (s *KVStore) squadRecord(ctx context.Context, id string) (*squadRecord, error) {
	var rec squadRecord
	found, err := s.getJSON(ctx, squadKey(id), &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

// SquadByID returns a squad with its active members, or nil
func (s *KVStore) SquadByID(ctx context.Context, id string) (*models.SquadWithMembers, error) {
	rec, err := s.squadRecord(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.active(), nil
}

// SquadByCode returns the squad with the invite code, or nil
func (s *KVStore) SquadByCode(ctx context.Context, code string) (*models.SquadWithMembers, error) {
	id, err := s.kv.Get(ctx, squadCodeKey(code))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.SquadByID(ctx, string(id))
}

// JoinSquad adds a member, reactivating a previous membership if there is one
func (s *KVStore) JoinSquad(ctx context.Context, m *models.SquadMember) error {
	s.squadMu.Lock()
	defer s.squadMu.Unlock()

	rec, err := s.squadRecord(ctx, m.SquadID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("squad %s: %w", m.SquadID, ErrKeyNotFound)
	}
	i := slices.IndexFunc(rec.Members, func(e models.SquadMember) bool { return e.AccountID == m.AccountID })
	if i >= 0 {
		rec.Members[i].Status = models.MemberActive
		rec.Members[i].JoinedAt = m.JoinedAt
	} else {
		rec.Members = append(rec.Members, *m)
	}

	b := &Batch{}
	if err := setJSON(b, squadKey(m.SquadID), rec); err != nil {
		return err
	}
	if err := s.addAccountSquad(ctx, b, m.AccountID, m.SquadID); err != nil {
		return err
	}
	return s.kv.Apply(ctx, b)
}

// LeaveSquad marks a membership inactive
func (s *KVStore) LeaveSquad(ctx context.Context, squadID, accountID string, at time.Time) error {
	s.squadMu.Lock()
	defer s.squadMu.Unlock()

	rec, err := s.squadRecord(ctx, squadID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("squad %s: %w", squadID, ErrKeyNotFound)
	}
	i := slices.IndexFunc(rec.Members, func(e models.SquadMember) bool { return e.AccountID == accountID })
	if i < 0 {
		return fmt.Errorf("squad member %s: %w", accountID, ErrKeyNotFound)
	}
	rec.Members[i].Status = models.MemberInactive
	rec.Members[i].JoinedAt = at

	var ids []string
	if _, err := s.getJSON(ctx, accountKey(accountID, "squads"), &ids); err != nil {
		return err
	}
	ids = slices.DeleteFunc(ids, func(id string) bool { return id == squadID })

	b := &Batch{}
	if err := setJSON(b, squadKey(squadID), rec); err != nil {
		return err
	}
	if err := setJSON(b, accountKey(accountID, "squads"), ids); err != nil {
		return err
	}
	return s.kv.Apply(ctx, b)
}

// SquadsForAccount returns the squads the account is an active member of
func (s *KVStore) SquadsForAccount(ctx context.Context, accountID string) ([]models.SquadWithMembers, error) {
	var ids []string
	if _, err := s.getJSON(ctx, accountKey(accountID, "squads"), &ids); err != nil {
		return nil, err
	}
	out := make([]models.SquadWithMembers, 0, len(ids))
	for _, id := range ids {
		sq, err := s.SquadByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if sq != nil {
			out = append(out, *sq)
		}
	}
	return out, nil
}

// Leaderboard returns the top accounts by XP
func (s *KVStore) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	top, err := s.kv.TopScores(ctx, leaderboardKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	entries := make([]models.LeaderboardEntry, 0, len(top))
	for _, sc := range top {
		var a models.Account
		found, err := s.getJSON(ctx, accountKey(sc.Member, "account"), &a)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			AccountID: a.ID,
			Username:  a.Username,
			Avatar:    a.Avatar,
			XP:        a.XP,
			Level:     a.Level,
			Streak:    a.CurrentStreak,
			Rank:      len(entries) + 1,
		})
	}
	return entries, nil
}

// ReminderSettings returns every stored reminder preference, ordered by account
func (s *KVStore) ReminderSettings(ctx context.Context) ([]models.ReminderSettings, error) {
	var all map[string]models.ReminderSettings
	if _, err := s.getJSON(ctx, remindersKey, &all); err != nil {
		return nil, err
	}
	out := make([]models.ReminderSettings, 0, len(all))
	for _, r := range all {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b models.ReminderSettings) int { return strings.Compare(a.AccountID, b.AccountID) })
	return out, nil
}

// SaveReminderSettings writes one account's reminder preference
func (s *KVStore) SaveReminderSettings(ctx context.Context, settings models.ReminderSettings) error {
	s.remindersMu.Lock()
	defer s.remindersMu.Unlock()

	all := make(map[string]models.ReminderSettings)
	if _, err := s.getJSON(ctx, remindersKey, &all); err != nil {
		return err
	}
	all[settings.AccountID] = settings
	b := &Batch{}
	if err := setJSON(b, remindersKey, all); err != nil {
		return err
	}
	return s.kv.Apply(ctx, b)
}
