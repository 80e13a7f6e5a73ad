package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"commit/internal/models"
)

// memStore is an in-memory Store that records every change it is given
type memStore struct {
	mu       sync.Mutex
	states   map[string]*State
	commits  []*Change
	failNext error
	loadErrs int
	loads    int

	hold    chan struct{}
	entered chan struct{}
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]*State)}
}

func (s *memStore) Load(ctx context.Context, accountID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErrs > 0 {
		s.loadErrs--
		return nil, errors.New("connection reset")
	}
	st, ok := s.states[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return st.Clone(), nil
}

func (s *memStore) Commit(ctx context.Context, change *Change) error {
	s.mu.Lock()
	hold, entered := s.hold, s.entered
	s.hold, s.entered = nil, nil
	s.mu.Unlock()

	if hold != nil {
		close(entered)
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.commits = append(s.commits, change)
	if change.NewAccount {
		acct := *change.Account
		s.states[change.AccountID] = &State{Account: &acct}
	}
	return nil
}

// holdNextCommit blocks the next Commit until release is called
func (s *memStore) holdNextCommit() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = make(chan struct{})
	s.entered = make(chan struct{})
	hold := s.hold
	return s.entered, func() { close(hold) }
}

func (s *memStore) lastCommit() *Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commits) == 0 {
		return nil
	}
	return s.commits[len(s.commits)-1]
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) nextDay() { c.now = c.now.Add(24 * time.Hour) }

var testStart = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *memStore, *testClock) {
	t.Helper()
	store := newMemStore()
	clock := &testClock{now: testStart}
	seq := 0
	acct := models.NewAccount("acct-1", "sam", "sam@example.com", testStart)
	l := New(store, &State{Account: acct},
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}))
	return l, store, clock
}

func createTestGoal(t *testing.T, l *Ledger, wager int64) models.Goal {
	t.Helper()
	g, err := l.CreateGoal(context.Background(), GoalInput{
		Title:        "Run every morning",
		Category:     "fitness",
		DurationDays: 30,
		WagerAmount:  decimal.NewFromInt(wager),
	})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	return g
}

func TestCreateGoalValidation(t *testing.T) {
	end := testStart.Add(-time.Hour)

	tests := []struct {
		name  string
		input GoalInput
		field string
	}{
		{"blank title", GoalInput{Title: "   ", Category: "fitness", DurationDays: 7}, "title"},
		{"missing category", GoalInput{Title: "Read", DurationDays: 7}, "category"},
		{"custom without days", GoalInput{Title: "Read", Category: "learning", Frequency: models.FrequencyCustom, DurationDays: 7}, "custom_days"},
		{"custom with bad day", GoalInput{Title: "Read", Category: "learning", Frequency: models.FrequencyCustom, CustomDays: []string{"funday"}, DurationDays: 7}, "custom_days"},
		{"unknown frequency", GoalInput{Title: "Read", Category: "learning", Frequency: "hourly", DurationDays: 7}, "frequency"},
		{"negative wager", GoalInput{Title: "Read", Category: "learning", DurationDays: 7, WagerAmount: decimal.NewFromInt(-1)}, "wager_amount"},
		{"squad without id", GoalInput{Title: "Read", Category: "learning", DurationDays: 7, Privacy: models.PrivacySquad}, "squad_id"},
		{"no window", GoalInput{Title: "Read", Category: "learning"}, "end_date"},
		{"negative duration", GoalInput{Title: "Read", Category: "learning", DurationDays: -3}, "duration_days"},
		{"end before start", GoalInput{Title: "Read", Category: "learning", EndDate: &end}, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store, _ := newTestLedger(t)
			_, err := l.CreateGoal(context.Background(), tt.input)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("CreateGoal() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", verr.Field, tt.field)
			}
			if len(l.Goals()) != 0 || store.lastCommit() != nil {
				t.Error("invalid goal was stored")
			}
		})
	}
}

func TestCreateGoalDefaults(t *testing.T) {
	l, store, _ := newTestLedger(t)

	g, err := l.CreateGoal(context.Background(), GoalInput{
		Title:      "  Meditate  ",
		Category:   "mind",
		Frequency:  models.FrequencyCustom,
		CustomDays: []string{"Mon", "wed", "mon"},
		Period:     "monthly",
	})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	if g.Title != "Meditate" {
		t.Errorf("Title = %q, want trimmed", g.Title)
	}
	if g.Status != models.GoalStatusActive || g.Privacy != models.PrivacySolo || g.Currency != "₹" {
		t.Errorf("defaults = %s/%s/%s", g.Status, g.Privacy, g.Currency)
	}
	if len(g.CustomDays) != 2 {
		t.Errorf("CustomDays = %v, want deduplicated mon,wed", g.CustomDays)
	}
	wantEnd := time.Date(2024, 3, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !g.EndDate.Equal(wantEnd) {
		t.Errorf("EndDate = %v, want %v", g.EndDate, wantEnd)
	}
	if g.TotalCheckIns != 0 || g.MissedCheckIns != 0 || g.CurrentStreak != 0 || !g.TotalBurned.IsZero() {
		t.Error("new goal has non-zero counters")
	}

	c := store.lastCommit()
	if c == nil || len(c.NewGoals) != 1 || c.AccountID != "acct-1" {
		t.Fatalf("commit = %+v, want one new goal for acct-1", c)
	}
}

func TestCheckInCountersAndBurn(t *testing.T) {
	l, _, clock := newTestLedger(t)
	g := createTestGoal(t, l, 40)

	outcomes := []bool{true, false, true, true, false, false, true}
	failures := 0
	for i, ok := range outcomes {
		if _, err := l.PerformCheckIn(context.Background(), g.ID, ok, ""); err != nil {
			t.Fatalf("check-in %d: %v", i, err)
		}
		if !ok {
			failures++
		}
		clock.nextDay()
	}

	got, _ := l.Goal(g.ID)
	if got.TotalCheckIns+got.MissedCheckIns != len(outcomes) {
		t.Errorf("total check-ins = %d, want %d", got.TotalCheckIns+got.MissedCheckIns, len(outcomes))
	}
	wantBurn := decimal.NewFromInt(int64(failures * 40))
	if !got.TotalBurned.Equal(wantBurn) {
		t.Errorf("TotalBurned = %s, want %s", got.TotalBurned, wantBurn)
	}
	if n := len(l.CheckIns(g.ID)); n != len(outcomes) {
		t.Errorf("CheckIns() = %d records, want %d", n, len(outcomes))
	}
}

func TestCheckInStreaks(t *testing.T) {
	l, _, clock := newTestLedger(t)
	g := createTestGoal(t, l, 0)

	longest := 0
	prev := 0
	for i, ok := range []bool{true, true, true, false, true, true, false, true} {
		res, err := l.PerformCheckIn(context.Background(), g.ID, ok, "")
		if err != nil {
			t.Fatalf("check-in %d: %v", i, err)
		}
		if ok && res.Goal.CurrentStreak != prev+1 {
			t.Errorf("check-in %d: streak = %d, want %d", i, res.Goal.CurrentStreak, prev+1)
		}
		if !ok && (res.Goal.CurrentStreak != 0 || res.Account.CurrentStreak != 0) {
			t.Errorf("check-in %d: failure left streak goal=%d account=%d", i, res.Goal.CurrentStreak, res.Account.CurrentStreak)
		}
		if res.Account.LongestStreak < longest {
			t.Errorf("check-in %d: longest streak dropped from %d to %d", i, longest, res.Account.LongestStreak)
		}
		if res.Account.LongestStreak < res.Account.CurrentStreak {
			t.Errorf("check-in %d: longest %d < current %d", i, res.Account.LongestStreak, res.Account.CurrentStreak)
		}
		longest = res.Account.LongestStreak
		prev = res.Goal.CurrentStreak
		clock.nextDay()
	}
	if longest != 3 {
		t.Errorf("longest streak = %d, want 3", longest)
	}
}

func TestCheckInWagerScenario(t *testing.T) {
	l, store, clock := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddXP(ctx, 240); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Deposit(ctx, decimal.NewFromInt(500), ""); err != nil {
		t.Fatal(err)
	}
	g, err := l.CreateGoal(ctx, GoalInput{
		Title: "No sugar", Category: "health", DurationDays: 14,
		WagerAmount: decimal.NewFromInt(100), Currency: "₹",
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := l.PerformCheckIn(ctx, g.ID, false, "cake happened")
	if err != nil {
		t.Fatalf("failed check-in: %v", err)
	}
	if !res.Goal.TotalBurned.Equal(decimal.NewFromInt(100)) || res.Goal.CurrentStreak != 0 || res.Account.CurrentStreak != 0 {
		t.Errorf("after failure: burned=%s goal streak=%d account streak=%d",
			res.Goal.TotalBurned, res.Goal.CurrentStreak, res.Account.CurrentStreak)
	}
	if res.Wallet == nil || !res.Wallet.Balance.Equal(decimal.NewFromInt(400)) || !res.Wallet.TotalBurned.Equal(decimal.NewFromInt(100)) {
		t.Errorf("wallet after failure = %+v", res.Wallet)
	}
	c := store.lastCommit()
	if len(c.NewTransactions) != 1 || c.NewTransactions[0].Type != models.TransactionBurn {
		t.Errorf("failed check-in transactions = %+v, want one burn", c.NewTransactions)
	}

	clock.nextDay()
	res, err = l.PerformCheckIn(ctx, g.ID, true, "")
	if err != nil {
		t.Fatalf("successful check-in: %v", err)
	}
	if res.Goal.CurrentStreak != 1 || res.Goal.XPEarned != 25 || res.CheckIn.XPEarned != 25 {
		t.Errorf("after success: streak=%d goal xp=%d", res.Goal.CurrentStreak, res.Goal.XPEarned)
	}
	if res.Account.XP != 265 || res.Account.Level != 2 {
		t.Errorf("account xp=%d level=%d, want 265/2", res.Account.XP, res.Account.Level)
	}
	if !res.Wallet.Balance.Equal(decimal.NewFromInt(400)) {
		t.Errorf("success changed wallet balance to %s", res.Wallet.Balance)
	}
}

func TestCheckInBurnCanOverdrawWallet(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.Deposit(ctx, decimal.NewFromInt(50), ""); err != nil {
		t.Fatal(err)
	}
	g := createTestGoal(t, l, 80)

	res, err := l.PerformCheckIn(ctx, g.ID, false, "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Wallet.InDebt() || !res.Wallet.Balance.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("balance = %s, want -30", res.Wallet.Balance)
	}
}

func TestSecondCheckInSameDayRejected(t *testing.T) {
	l, store, clock := newTestLedger(t)
	ctx := context.Background()
	g := createTestGoal(t, l, 10)

	if _, err := l.PerformCheckIn(ctx, g.ID, true, ""); err != nil {
		t.Fatal(err)
	}
	commits := len(store.commits)

	clock.now = clock.now.Add(10 * time.Hour)
	if _, err := l.PerformCheckIn(ctx, g.ID, false, ""); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("second check-in error = %v, want ErrAlreadyCheckedIn", err)
	}
	if len(store.commits) != commits {
		t.Error("rejected check-in was written")
	}
	got, _ := l.Goal(g.ID)
	if got.TotalCheckIns != 1 || got.MissedCheckIns != 0 {
		t.Errorf("counters = %d/%d, want 1/0", got.TotalCheckIns, got.MissedCheckIns)
	}

	clock.nextDay()
	if _, err := l.PerformCheckIn(ctx, g.ID, true, ""); err != nil {
		t.Errorf("next-day check-in error = %v", err)
	}
}

func TestCheckInDayFollowsAccountTimezone(t *testing.T) {
	if _, err := time.LoadLocation("America/Los_Angeles"); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	l, _, clock := newTestLedger(t)
	ctx := context.Background()
	tz := "America/Los_Angeles"
	if _, err := l.UpdateProfile(ctx, ProfileUpdate{Timezone: &tz}); err != nil {
		t.Fatal(err)
	}
	g := createTestGoal(t, l, 0)

	// 16:00 and 23:00 UTC are both on the 4th in Los Angeles
	clock.now = time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)
	res, err := l.PerformCheckIn(ctx, g.ID, true, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.CheckIn.Date != "2024-03-04" {
		t.Errorf("Date = %s, want 2024-03-04", res.CheckIn.Date)
	}
	clock.now = time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC)
	if _, err := l.PerformCheckIn(ctx, g.ID, true, ""); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Errorf("error = %v, want ErrAlreadyCheckedIn", err)
	}
}

func TestCheckInRequiresActiveGoal(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown goal", func(t *testing.T) {
		l, _, _ := newTestLedger(t)
		if _, err := l.PerformCheckIn(ctx, "missing", true, ""); !errors.Is(err, ErrGoalNotFound) {
			t.Errorf("error = %v, want ErrGoalNotFound", err)
		}
	})

	t.Run("expired goal", func(t *testing.T) {
		l, _, clock := newTestLedger(t)
		g := createTestGoal(t, l, 0)
		clock.now = g.EndDate.Add(time.Minute)
		if _, err := l.PerformCheckIn(ctx, g.ID, true, ""); !errors.Is(err, ErrGoalNotActive) {
			t.Errorf("error = %v, want ErrGoalNotActive", err)
		}
	})

	t.Run("completed goal", func(t *testing.T) {
		l, _, _ := newTestLedger(t)
		g := createTestGoal(t, l, 0)
		if _, err := l.CompleteGoal(ctx, g.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := l.PerformCheckIn(ctx, g.ID, true, ""); !errors.Is(err, ErrGoalNotActive) {
			t.Errorf("error = %v, want ErrGoalNotActive", err)
		}
	})
}

func TestFailedCommitLeavesStateUntouched(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.Deposit(ctx, decimal.NewFromInt(100), ""); err != nil {
		t.Fatal(err)
	}
	g := createTestGoal(t, l, 25)
	before := l.Snapshot()

	storeErr := errors.New("disk full")
	store.failNext = storeErr
	_, err := l.PerformCheckIn(ctx, g.ID, false, "")

	var perr *PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, storeErr) {
		t.Fatalf("error = %v, want PersistenceError wrapping %v", err, storeErr)
	}
	if perr.Op != "check_in" {
		t.Errorf("PersistenceError.Op = %q", perr.Op)
	}

	after := l.Snapshot()
	gotGoal, _ := l.Goal(g.ID)
	if gotGoal.MissedCheckIns != 0 || !gotGoal.TotalBurned.IsZero() || gotGoal.LastCheckIn != nil {
		t.Errorf("goal changed after failed commit: %+v", gotGoal)
	}
	if len(after.CheckIns) != len(before.CheckIns) {
		t.Error("check-in recorded after failed commit")
	}
	if !after.Wallet.Balance.Equal(before.Wallet.Balance) {
		t.Errorf("wallet balance changed to %s", after.Wallet.Balance)
	}
	if l.InFlight(g.ID) {
		t.Error("goal still marked in flight")
	}

	if _, err := l.PerformCheckIn(ctx, g.ID, false, ""); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestOperationInFlight(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()
	g := createTestGoal(t, l, 0)
	other := createTestGoal(t, l, 0)

	entered, release := store.holdNextCommit()
	done := make(chan error, 1)
	go func() {
		_, err := l.UpdateGoal(ctx, g.ID, Recategorize{Category: "running"})
		done <- err
	}()
	<-entered

	if !l.InFlight(g.ID) {
		t.Error("InFlight() = false while commit outstanding")
	}
	if _, err := l.PerformCheckIn(ctx, g.ID, true, ""); !errors.Is(err, ErrOperationInFlight) {
		t.Errorf("concurrent check-in error = %v, want ErrOperationInFlight", err)
	}
	if _, err := l.PerformCheckIn(ctx, other.ID, true, ""); err != nil {
		t.Errorf("check-in on another goal: %v", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("held update: %v", err)
	}
	if l.InFlight(g.ID) {
		t.Error("InFlight() = true after commit finished")
	}
	got, _ := l.Goal(g.ID)
	if got.Category != "running" {
		t.Errorf("Category = %q, want running", got.Category)
	}
}

func TestUpdateGoalCommands(t *testing.T) {
	title := "Run 5k"
	blank := " "

	tests := []struct {
		name    string
		setup   []GoalCommand
		cmd     GoalCommand
		wantErr error
		field   string
		check   func(t *testing.T, g models.Goal)
	}{
		{
			name: "rename",
			cmd:  RenameGoal{Title: &title},
			check: func(t *testing.T, g models.Goal) {
				if g.Title != "Run 5k" {
					t.Errorf("Title = %q", g.Title)
				}
			},
		},
		{name: "rename blank", cmd: RenameGoal{Title: &blank}, field: "title"},
		{name: "reschedule backwards", cmd: RescheduleGoal{EndDate: testStart.Add(-time.Hour)}, field: "end_date"},
		{
			name: "reschedule",
			cmd:  RescheduleGoal{EndDate: testStart.AddDate(0, 2, 0)},
			check: func(t *testing.T, g models.Goal) {
				if !g.EndDate.Equal(testStart.AddDate(0, 2, 0)) {
					t.Errorf("EndDate = %v", g.EndDate)
				}
			},
		},
		{
			name: "change wager",
			cmd:  ChangeWager{Amount: decimal.NewFromInt(75), Currency: "$"},
			check: func(t *testing.T, g models.Goal) {
				if !g.WagerAmount.Equal(decimal.NewFromInt(75)) || g.Currency != "$" {
					t.Errorf("wager = %s %s", g.WagerAmount, g.Currency)
				}
			},
		},
		{name: "negative wager", cmd: ChangeWager{Amount: decimal.NewFromInt(-5)}, field: "wager_amount"},
		{name: "squad privacy without squad", cmd: ChangePrivacy{Privacy: models.PrivacySquad}, field: "squad_id"},
		{
			name: "public privacy clears squad",
			setup: []GoalCommand{ChangePrivacy{Privacy: models.PrivacySquad, SquadID: "sq-1"}},
			cmd:   ChangePrivacy{Privacy: models.PrivacyPublic, SquadID: "sq-1"},
			check: func(t *testing.T, g models.Goal) {
				if g.Privacy != models.PrivacyPublic || g.SquadID != "" {
					t.Errorf("privacy = %s squad = %q", g.Privacy, g.SquadID)
				}
			},
		},
		{name: "custom schedule without days", cmd: ChangeSchedule{Frequency: models.FrequencyCustom}, field: "custom_days"},
		{name: "blank category", cmd: Recategorize{Category: ""}, field: "category"},
		{
			name: "pause then resume",
			setup: []GoalCommand{SetGoalStatus{Status: models.GoalStatusPaused}},
			cmd:   SetGoalStatus{Status: models.GoalStatusActive},
			check: func(t *testing.T, g models.Goal) {
				if g.Status != models.GoalStatusActive {
					t.Errorf("Status = %s", g.Status)
				}
			},
		},
		{
			name:    "completed is terminal",
			setup:   []GoalCommand{SetGoalStatus{Status: models.GoalStatusCompleted}},
			cmd:     SetGoalStatus{Status: models.GoalStatusActive},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "failed is terminal",
			setup:   []GoalCommand{SetGoalStatus{Status: models.GoalStatusFailed}},
			cmd:     SetGoalStatus{Status: models.GoalStatusPaused},
			wantErr: ErrInvalidTransition,
		},
		{name: "expired is not storable", cmd: SetGoalStatus{Status: models.GoalStatusExpired}, field: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, _ := newTestLedger(t)
			ctx := context.Background()
			g := createTestGoal(t, l, 10)
			for _, c := range tt.setup {
				if _, err := l.UpdateGoal(ctx, g.ID, c); err != nil {
					t.Fatalf("setup: %v", err)
				}
			}
			before, _ := l.Goal(g.ID)

			got, err := l.UpdateGoal(ctx, g.ID, tt.cmd)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			case tt.field != "":
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Field != tt.field {
					t.Fatalf("error = %v, want ValidationError on %s", err, tt.field)
				}
			default:
				if err != nil {
					t.Fatalf("UpdateGoal() error = %v", err)
				}
				tt.check(t, got)
				stored, _ := l.Goal(g.ID)
				tt.check(t, stored)
				return
			}
			after, _ := l.Goal(g.ID)
			if after.Status != before.Status || after.Title != before.Title || !after.WagerAmount.Equal(before.WagerAmount) {
				t.Error("rejected command changed the goal")
			}
		})
	}
}

func TestUpdateGoalNotFound(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if _, err := l.UpdateGoal(context.Background(), "nope", Recategorize{Category: "x"}); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("error = %v, want ErrGoalNotFound", err)
	}
}

func TestDeleteGoalKeepsCheckIns(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()
	g := createTestGoal(t, l, 0)
	if _, err := l.PerformCheckIn(ctx, g.ID, true, ""); err != nil {
		t.Fatal(err)
	}

	if err := l.DeleteGoal(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGoal() error = %v", err)
	}
	if _, err := l.Goal(g.ID); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("Goal() after delete error = %v", err)
	}
	if len(l.CheckIns(g.ID)) != 1 {
		t.Error("check-ins were removed with the goal")
	}
	if c := store.lastCommit(); len(c.DeletedGoalIDs) != 1 || c.DeletedGoalIDs[0] != g.ID {
		t.Errorf("commit = %+v", c)
	}
	if err := l.DeleteGoal(ctx, g.ID); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("second delete error = %v, want ErrGoalNotFound", err)
	}
}

func TestStats(t *testing.T) {
	l, _, clock := newTestLedger(t)
	ctx := context.Background()
	a := createTestGoal(t, l, 0)
	createTestGoal(t, l, 0)

	empty := l.Stats(clock.now)
	if empty.SuccessRate != 0 || empty.TotalGoals != 2 || empty.ActiveGoals != 2 {
		t.Errorf("stats before check-ins = %+v", empty)
	}

	for _, ok := range []bool{true, true, false, true} {
		if _, err := l.PerformCheckIn(ctx, a.ID, ok, ""); err != nil {
			t.Fatal(err)
		}
		clock.nextDay()
	}

	s := l.Stats(clock.now)
	if s.SuccessRate != 75 {
		t.Errorf("SuccessRate = %d, want 75", s.SuccessRate)
	}
	if s.WeeklyXP != 75 {
		t.Errorf("WeeklyXP = %d, want 75", s.WeeklyXP)
	}
	if s.CurrentStreak != 1 || s.LongestStreak != 2 {
		t.Errorf("streaks = %d/%d, want 1/2", s.CurrentStreak, s.LongestStreak)
	}

	if _, err := l.CompleteGoal(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	s = l.Stats(clock.now)
	if s.CompletedGoals != 1 || s.ActiveGoals != 1 {
		t.Errorf("completed/active = %d/%d, want 1/1", s.CompletedGoals, s.ActiveGoals)
	}

	later := l.Stats(clock.now.AddDate(0, 0, 8))
	if later.WeeklyXP != 0 {
		t.Errorf("WeeklyXP a week later = %d, want 0", later.WeeklyXP)
	}
	if later.ActiveGoals != 1 {
		t.Errorf("ActiveGoals = %d, want 1", later.ActiveGoals)
	}
	expired := l.Stats(clock.now.AddDate(0, 2, 0))
	if expired.ActiveGoals != 0 {
		t.Errorf("ActiveGoals after end date = %d, want 0", expired.ActiveGoals)
	}
}

func TestReminderCounts(t *testing.T) {
	l, _, clock := newTestLedger(t)
	a := createTestGoal(t, l, 0)
	createTestGoal(t, l, 0)

	if _, err := l.PerformCheckIn(context.Background(), a.ID, true, ""); err != nil {
		t.Fatal(err)
	}
	rc := l.ReminderCounts(clock.now)
	if rc.ActiveGoals != 2 || rc.CheckedInToday != 1 {
		t.Errorf("ReminderCounts() = %+v, want 2/1", rc)
	}
	clock.nextDay()
	if rc := l.ReminderCounts(clock.now); rc.CheckedInToday != 0 {
		t.Errorf("CheckedInToday next day = %d, want 0", rc.CheckedInToday)
	}
}

func TestSearchGoals(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	for _, title := range []string{"Morning run", "Read books", "Run a marathon"} {
		if _, err := l.CreateGoal(ctx, GoalInput{Title: title, Category: "misc", DurationDays: 5}); err != nil {
			t.Fatal(err)
		}
	}

	got := l.SearchGoals("run")
	if len(got) != 2 {
		t.Fatalf("SearchGoals(run) = %d results, want 2", len(got))
	}
	for _, g := range got {
		if g.Title == "Read books" {
			t.Error("unrelated goal matched")
		}
	}
	if len(l.SearchGoals("  ")) != 0 {
		t.Error("blank query matched goals")
	}
}

func TestProfileOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("add xp recomputes level", func(t *testing.T) {
		for _, xp := range []int{0, 1, 249, 250, 499, 500, 10000} {
			l, _, _ := newTestLedger(t)
			acct, err := l.AddXP(ctx, xp)
			if err != nil {
				t.Fatal(err)
			}
			if acct.Level != xp/250+1 {
				t.Errorf("AddXP(%d) level = %d", xp, acct.Level)
			}
		}
		l, _, _ := newTestLedger(t)
		if _, err := l.AddXP(ctx, -5); err == nil {
			t.Error("negative xp accepted")
		}
	})

	t.Run("coins never go negative", func(t *testing.T) {
		l, _, _ := newTestLedger(t)
		if _, err := l.AddCoins(ctx, 30); err != nil {
			t.Fatal(err)
		}
		if _, err := l.AddCoins(ctx, -31); !errors.Is(err, ErrInsufficientCoins) {
			t.Errorf("error = %v, want ErrInsufficientCoins", err)
		}
		acct, err := l.AddCoins(ctx, -30)
		if err != nil || acct.Coins != 0 {
			t.Errorf("coins = %d err = %v, want 0", acct.Coins, err)
		}
	})

	t.Run("update stamps last active", func(t *testing.T) {
		l, _, clock := newTestLedger(t)
		clock.now = clock.now.Add(time.Hour)
		name := "  samira "
		acct, err := l.UpdateProfile(ctx, ProfileUpdate{Username: &name})
		if err != nil {
			t.Fatal(err)
		}
		if acct.Username != "samira" || !acct.LastActive.Equal(clock.now) {
			t.Errorf("account = %+v", acct)
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		l, _, _ := newTestLedger(t)
		short := "ab"
		tz := "Mars/Olympus"
		for _, upd := range []ProfileUpdate{{Username: &short}, {Timezone: &tz}} {
			var verr *ValidationError
			if _, err := l.UpdateProfile(ctx, upd); !errors.As(err, &verr) {
				t.Errorf("UpdateProfile(%+v) error = %v", upd, err)
			}
		}
		if l.Account().Username != "sam" {
			t.Error("rejected update changed username")
		}
	})
}

func TestWallet(t *testing.T) {
	l, store, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Withdraw(ctx, decimal.NewFromInt(1)); !errors.Is(err, ErrNoWallet) {
		t.Errorf("withdraw without wallet error = %v", err)
	}

	w, err := l.Deposit(ctx, decimal.NewFromInt(200), "$")
	if err != nil {
		t.Fatal(err)
	}
	if c := store.lastCommit(); !c.NewWallet || len(c.NewTransactions) != 1 {
		t.Errorf("first deposit commit = %+v", c)
	}
	if w.Currency != "$" || !w.Balance.Equal(decimal.NewFromInt(200)) {
		t.Errorf("wallet = %+v", w)
	}

	w, err = l.Deposit(ctx, decimal.NewFromInt(50), "")
	if err != nil {
		t.Fatal(err)
	}
	if store.lastCommit().NewWallet {
		t.Error("second deposit recreated the wallet")
	}

	if _, err := l.Withdraw(ctx, decimal.NewFromInt(300)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraw error = %v, want ErrInsufficientFunds", err)
	}
	w, err = l.Withdraw(ctx, decimal.NewFromInt(100))
	if err != nil {
		t.Fatal(err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(150)) || !w.TotalWithdrawn.Equal(decimal.NewFromInt(100)) {
		t.Errorf("wallet after withdraw = %+v", w)
	}
	if _, err := l.Deposit(ctx, decimal.Zero, ""); err == nil {
		t.Error("zero deposit accepted")
	}
}

func TestUnlockAchievements(t *testing.T) {
	l, store, clock := newTestLedger(t)
	ctx := context.Background()
	g := createTestGoal(t, l, 0)

	got, err := l.UnlockAchievements(ctx, models.DefaultAchievements)
	if err != nil || len(got) != 0 {
		t.Fatalf("UnlockAchievements() = %v, %v; want nothing", got, err)
	}
	commits := len(store.commits)

	if _, err := l.PerformCheckIn(ctx, g.ID, true, ""); err != nil {
		t.Fatal(err)
	}
	clock.nextDay()
	if _, err := l.CompleteGoal(ctx, g.ID); err != nil {
		t.Fatal(err)
	}

	got, err = l.UnlockAchievements(ctx, models.DefaultAchievements)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, a := range got {
		ids[a.ID] = true
	}
	if len(got) != 2 || !ids["first-step"] || !ids["finisher"] {
		t.Errorf("unlocked = %v, want first-step and finisher", ids)
	}
	acct := l.Account()
	if acct.XP != 25+10+100 || acct.Coins != 5+25 {
		t.Errorf("account xp=%d coins=%d", acct.XP, acct.Coins)
	}
	if len(store.commits) != commits+3 {
		t.Errorf("commits = %d, want %d", len(store.commits), commits+3)
	}

	again, err := l.UnlockAchievements(ctx, models.DefaultAchievements)
	if err != nil || len(again) != 0 {
		t.Errorf("second unlock = %v, %v; want nothing", again, err)
	}
	if len(l.Achievements()) != 2 {
		t.Errorf("Achievements() = %d, want 2", len(l.Achievements()))
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("bootstrap then get", func(t *testing.T) {
		store := newMemStore()
		reg, err := NewRegistry(store, RegistryConfig{Size: 2}, nil)
		if err != nil {
			t.Fatal(err)
		}
		acct := models.NewAccount("acct-9", "kim", "kim@example.com", testStart)
		l, err := reg.Bootstrap(ctx, acct)
		if err != nil {
			t.Fatal(err)
		}
		got, err := reg.Get(ctx, "acct-9")
		if err != nil || got != l {
			t.Errorf("Get() = %p, %v; want bootstrapped ledger", got, err)
		}
		if store.loads != 0 {
			t.Errorf("loads = %d, want 0", store.loads)
		}

		reg.Forget("acct-9")
		got, err = reg.Get(ctx, "acct-9")
		if err != nil || got == l || got.AccountID() != "acct-9" {
			t.Errorf("Get() after Forget = %v, %v", got, err)
		}
	})

	t.Run("unknown account is not retried", func(t *testing.T) {
		store := newMemStore()
		reg, _ := NewRegistry(store, RegistryConfig{LoadRetries: 3, RetryBackoff: time.Millisecond}, nil)
		if _, err := reg.Get(ctx, "ghost"); !errors.Is(err, ErrAccountNotFound) {
			t.Errorf("error = %v, want ErrAccountNotFound", err)
		}
		if store.loads != 1 {
			t.Errorf("loads = %d, want 1", store.loads)
		}
	})

	t.Run("transient load errors are retried", func(t *testing.T) {
		store := newMemStore()
		store.states["acct-1"] = &State{Account: models.NewAccount("acct-1", "sam", "", testStart)}
		store.loadErrs = 2
		reg, _ := NewRegistry(store, RegistryConfig{LoadRetries: 3, RetryBackoff: time.Millisecond}, nil)
		if _, err := reg.Get(ctx, "acct-1"); err != nil {
			t.Errorf("Get() error = %v", err)
		}
		if store.loads != 3 {
			t.Errorf("loads = %d, want 3", store.loads)
		}
	})

	t.Run("gives up after retries", func(t *testing.T) {
		store := newMemStore()
		store.loadErrs = 5
		reg, _ := NewRegistry(store, RegistryConfig{LoadRetries: 2, RetryBackoff: time.Millisecond}, nil)
		var perr *PersistenceError
		if _, err := reg.Get(ctx, "acct-1"); !errors.As(err, &perr) {
			t.Errorf("error = %v, want PersistenceError", err)
		}
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		store := newMemStore()
		reg, _ := NewRegistry(store, RegistryConfig{Size: 1}, nil)
		for _, id := range []string{"a1", "a2"} {
			if _, err := reg.Bootstrap(ctx, models.NewAccount(id, "user-"+id, "", testStart)); err != nil {
				t.Fatal(err)
			}
		}
		if reg.Len() != 1 {
			t.Errorf("Len() = %d, want 1", reg.Len())
		}
	})
}
