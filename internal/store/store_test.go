package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"commit/internal/database"
	"commit/internal/ledger"
	"commit/internal/models"
	"commit/internal/repository"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping sqlite test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "commit.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := db.RunMigrations(ctx, "../../migrations", zap.NewNop()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if err := repository.NewAchievementRepository(db).SeedCatalog(ctx, models.DefaultAchievements); err != nil {
		t.Fatalf("Failed to seed achievements: %v", err)
	}
	return NewSQLStore(db, zap.NewNop())
}

func backends(t *testing.T) map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		"memory": func(t *testing.T) Backend { return NewKVStore(NewMemoryKV(), zap.NewNop()) },
		"sqlite": func(t *testing.T) Backend { return newSQLiteStore(t) },
	}
}

// signUp creates credentials and the initial account the way the auth service does
func signUp(t *testing.T, b Backend, id, username string) *models.Account {
	t.Helper()
	ctx := context.Background()
	user := &models.User{ID: id, Email: username + "@example.com", PasswordHash: "hash", CreatedAt: t0, UpdatedAt: t0}
	if err := b.CreateUser(ctx, user, username); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	acct := models.NewAccount(id, username, user.Email, t0)
	err := b.Commit(ctx, &ledger.Change{Op: "create_account", AccountID: id, NewAccount: true, Account: acct})
	if err != nil {
		t.Fatalf("Commit(create_account) error = %v", err)
	}
	return acct
}

func TestBackendLedgerRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			signUp(t, b, "acct-1", "sam")

			now := t0
			l, err := ledger.Open(ctx, b, "acct-1", ledger.WithClock(func() time.Time { return now }))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if _, err := l.Deposit(ctx, decimal.NewFromInt(500), "₹"); err != nil {
				t.Fatalf("Deposit() error = %v", err)
			}
			goal, err := l.CreateGoal(ctx, ledger.GoalInput{
				Title:        "Run",
				Category:     "fitness",
				Frequency:    models.FrequencyCustom,
				CustomDays:   []string{"mon", "wed"},
				DurationDays: 30,
				WagerAmount:  decimal.NewFromInt(100),
				Privacy:      models.PrivacySolo,
			})
			if err != nil {
				t.Fatalf("CreateGoal() error = %v", err)
			}
			if _, err := l.PerformCheckIn(ctx, goal.ID, true, "felt good"); err != nil {
				t.Fatalf("PerformCheckIn() error = %v", err)
			}
			now = now.Add(24 * time.Hour)
			if _, err := l.PerformCheckIn(ctx, goal.ID, false, ""); err != nil {
				t.Fatalf("PerformCheckIn(miss) error = %v", err)
			}
			if _, err := l.UnlockAchievements(ctx, models.DefaultAchievements); err != nil {
				t.Fatalf("UnlockAchievements() error = %v", err)
			}

			want := l.Snapshot()
			got, err := b.Load(ctx, "acct-1")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if got.Account.XP != want.Account.XP || got.Account.Level != want.Account.Level {
				t.Errorf("account XP/level = %d/%d, want %d/%d",
					got.Account.XP, got.Account.Level, want.Account.XP, want.Account.Level)
			}
			if len(got.Goals) != 1 {
				t.Fatalf("loaded %d goals, want 1", len(got.Goals))
			}
			g := got.Goals[0]
			if g.TotalCheckIns != 1 || g.MissedCheckIns != 1 || g.CurrentStreak != 0 {
				t.Errorf("goal counters = %d/%d/%d, want 1/1/0", g.TotalCheckIns, g.MissedCheckIns, g.CurrentStreak)
			}
			if !g.TotalBurned.Equal(decimal.NewFromInt(100)) {
				t.Errorf("goal burned = %s, want 100", g.TotalBurned)
			}
			if len(g.CustomDays) != 2 || g.CustomDays[0] != "mon" {
				t.Errorf("custom days = %v", g.CustomDays)
			}
			if g.LastCheckIn == nil || !g.LastCheckIn.Equal(now) {
				t.Errorf("last check-in = %v, want %v", g.LastCheckIn, now)
			}
			if len(got.CheckIns) != 2 {
				t.Errorf("loaded %d check-ins, want 2", len(got.CheckIns))
			}
			if got.Wallet == nil || !got.Wallet.Balance.Equal(decimal.NewFromInt(400)) {
				t.Errorf("wallet = %+v, want balance 400", got.Wallet)
			}
			if len(got.Achievements) != len(want.Achievements) || len(got.Achievements) == 0 {
				t.Errorf("loaded %d achievements, want %d", len(got.Achievements), len(want.Achievements))
			}
		})
	}
}

func TestBackendRejectsDuplicateCheckIn(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			signUp(t, b, "acct-1", "sam")
			l, err := ledger.Open(ctx, b, "acct-1", ledger.WithClock(func() time.Time { return t0 }))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			goal, err := l.CreateGoal(ctx, ledger.GoalInput{Title: "Read", Category: "learning", DurationDays: 10})
			if err != nil {
				t.Fatalf("CreateGoal() error = %v", err)
			}

			// a second writer that never saw the first check-in
			other, err := ledger.Open(ctx, b, "acct-1", ledger.WithClock(func() time.Time { return t0 }))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if _, err := l.PerformCheckIn(ctx, goal.ID, true, ""); err != nil {
				t.Fatalf("PerformCheckIn() error = %v", err)
			}
			_, err = other.PerformCheckIn(ctx, goal.ID, true, "")
			if !errors.Is(err, ledger.ErrAlreadyCheckedIn) {
				t.Fatalf("second writer error = %v, want ErrAlreadyCheckedIn", err)
			}
			var perr *ledger.PersistenceError
			if !errors.As(err, &perr) {
				t.Errorf("error %v is not a PersistenceError", err)
			}
			if other.Goals()[0].TotalCheckIns != 0 {
				t.Error("failed commit changed the second writer's memory")
			}
		})
	}
}

func TestBackendLoadMissingAccount(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := open(t).Load(context.Background(), "nobody")
			if !errors.Is(err, ledger.ErrAccountNotFound) {
				t.Errorf("Load() error = %v, want ErrAccountNotFound", err)
			}
		})
	}
}

func TestBackendUsers(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			signUp(t, b, "acct-1", "sam")

			u, err := b.UserByEmail(ctx, "SAM@example.com")
			if err != nil || u == nil || u.ID != "acct-1" {
				t.Fatalf("UserByEmail() = %+v, %v", u, err)
			}
			if u, _ := b.UserByEmail(ctx, "nobody@example.com"); u != nil {
				t.Errorf("UserByEmail(unknown) = %+v, want nil", u)
			}

			dupEmail := &models.User{ID: "acct-2", Email: "sam@example.com", PasswordHash: "x", CreatedAt: t0, UpdatedAt: t0}
			if err := b.CreateUser(ctx, dupEmail, "other"); !errors.Is(err, ErrConflict) {
				t.Errorf("CreateUser(duplicate email) error = %v, want ErrConflict", err)
			}
			dupName := &models.User{ID: "acct-3", Email: "x@example.com", PasswordHash: "x", CreatedAt: t0, UpdatedAt: t0}
			if err := b.CreateUser(ctx, dupName, "sam"); !errors.Is(err, ErrConflict) {
				t.Errorf("CreateUser(duplicate username) error = %v, want ErrConflict", err)
			}

			taken, err := b.UsernameTaken(ctx, "sam")
			if err != nil || !taken {
				t.Errorf("UsernameTaken(sam) = %v, %v", taken, err)
			}

			if err := b.DeleteUser(ctx, "acct-1"); err != nil {
				t.Fatalf("DeleteUser() error = %v", err)
			}
			if _, err := b.Load(ctx, "acct-1"); !errors.Is(err, ledger.ErrAccountNotFound) {
				t.Errorf("Load() after delete error = %v", err)
			}
		})
	}
}

func TestBackendSquads(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			signUp(t, b, "acct-1", "sam")
			signUp(t, b, "acct-2", "alex")

			squad := &models.Squad{ID: "sq-1", Name: "Runners", Code: "ABC123", CreatorID: "acct-1",
				TotalPot: decimal.Zero, WeeklyPot: decimal.Zero, MaxMembers: 10, CreatedAt: t0}
			creator := &models.SquadMember{ID: "m-1", SquadID: "sq-1", AccountID: "acct-1",
				Role: models.SquadRoleCreator, JoinedAt: t0, Status: models.MemberActive}
			if err := b.CreateSquad(ctx, squad, creator); err != nil {
				t.Fatalf("CreateSquad() error = %v", err)
			}

			clash := *squad
			clash.ID = "sq-2"
			if err := b.CreateSquad(ctx, &clash, creator); !errors.Is(err, ErrConflict) {
				t.Errorf("CreateSquad(same code) error = %v, want ErrConflict", err)
			}

			member := &models.SquadMember{ID: "m-2", SquadID: "sq-1", AccountID: "acct-2",
				Role: models.SquadRoleMember, JoinedAt: t0, Status: models.MemberActive}
			if err := b.JoinSquad(ctx, member); err != nil {
				t.Fatalf("JoinSquad() error = %v", err)
			}
			got, err := b.SquadByCode(ctx, "ABC123")
			if err != nil || got == nil {
				t.Fatalf("SquadByCode() = %v, %v", got, err)
			}
			if len(got.Members) != 2 {
				t.Errorf("members = %d, want 2", len(got.Members))
			}

			if err := b.LeaveSquad(ctx, "sq-1", "acct-2", t0.Add(time.Hour)); err != nil {
				t.Fatalf("LeaveSquad() error = %v", err)
			}
			mine, err := b.SquadsForAccount(ctx, "acct-2")
			if err != nil {
				t.Fatal(err)
			}
			if len(mine) != 0 {
				t.Errorf("squads after leaving = %d, want 0", len(mine))
			}

			// rejoining reactivates the old membership
			member.JoinedAt = t0.Add(2 * time.Hour)
			if err := b.JoinSquad(ctx, member); err != nil {
				t.Fatalf("JoinSquad(rejoin) error = %v", err)
			}
			got, _ = b.SquadByID(ctx, "sq-1")
			if got == nil || len(got.Members) != 2 {
				t.Errorf("members after rejoin = %v", got)
			}
			if none, _ := b.SquadByCode(ctx, "ZZZ999"); none != nil {
				t.Errorf("SquadByCode(unknown) = %+v, want nil", none)
			}
		})
	}
}

func TestBackendLeaderboard(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			for i, name := range []string{"ann", "ben", "cat"} {
				acct := signUp(t, b, "acct-"+name, name)
				acct.AddXP((i + 1) * 100)
				if err := b.Commit(ctx, &ledger.Change{Op: "add_xp", AccountID: acct.ID, Account: acct}); err != nil {
					t.Fatal(err)
				}
			}

			entries, err := b.Leaderboard(ctx, 2)
			if err != nil {
				t.Fatalf("Leaderboard() error = %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("entries = %d, want 2", len(entries))
			}
			if entries[0].Username != "cat" || entries[0].Rank != 1 || entries[1].Username != "ben" {
				t.Errorf("leaderboard = %+v", entries)
			}
		})
	}
}

func TestMemoryKVTopScores(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	b := &Batch{}
	b.Score("board", "a", 10)
	b.Score("board", "b", 30)
	b.Score("board", "c", 20)
	if err := kv.Apply(ctx, b); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		n    int
		want []string
	}{
		{n: 1, want: []string{"b"}},
		{n: 3, want: []string{"b", "c", "a"}},
		{n: 10, want: []string{"b", "c", "a"}},
	}
	for _, tt := range tests {
		got, err := kv.TopScores(ctx, "board", tt.n)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("TopScores(%d) = %v", tt.n, got)
		}
		for i := range got {
			if got[i].Member != tt.want[i] {
				t.Errorf("TopScores(%d)[%d] = %s, want %s", tt.n, i, got[i].Member, tt.want[i])
			}
		}
	}

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
	ok, _ := kv.SetNX(ctx, "k", []byte("1"))
	again, _ := kv.SetNX(ctx, "k", []byte("2"))
	if !ok || again {
		t.Errorf("SetNX = %v then %v, want true then false", ok, again)
	}
}

func TestBackendReminderSettings(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			signUp(t, b, "acct-1", "sam")
			signUp(t, b, "acct-2", "ann")

			none, err := b.ReminderSettings(ctx)
			if err != nil || len(none) != 0 {
				t.Fatalf("ReminderSettings() = %v, %v, want empty", none, err)
			}

			shown := t0.Add(time.Hour)
			first := models.ReminderSettings{AccountID: "acct-1", Enabled: true, Frequency: "daily", Time: "08:00"}
			if err := b.SaveReminderSettings(ctx, first); err != nil {
				t.Fatalf("SaveReminderSettings() error = %v", err)
			}
			first.Frequency = "weekly"
			first.LastShown = &shown
			if err := b.SaveReminderSettings(ctx, first); err != nil {
				t.Fatalf("SaveReminderSettings(update) error = %v", err)
			}
			second := models.ReminderSettings{AccountID: "acct-2", Frequency: "monthly", Time: "21:30"}
			if err := b.SaveReminderSettings(ctx, second); err != nil {
				t.Fatalf("SaveReminderSettings(second) error = %v", err)
			}

			rows, err := b.ReminderSettings(ctx)
			if err != nil {
				t.Fatalf("ReminderSettings() error = %v", err)
			}
			if len(rows) != 2 {
				t.Fatalf("rows = %d, want 2", len(rows))
			}
			got := rows[0]
			if got.AccountID != "acct-1" || !got.Enabled || got.Frequency != "weekly" || got.Time != "08:00" {
				t.Errorf("acct-1 settings = %+v", got)
			}
			if got.LastShown == nil || !got.LastShown.Equal(shown) {
				t.Errorf("acct-1 LastShown = %v, want %v", got.LastShown, shown)
			}
			if rows[1].Enabled || rows[1].LastShown != nil || rows[1].Frequency != "monthly" {
				t.Errorf("acct-2 settings = %+v", rows[1])
			}
		})
	}
}

// gatedKV blocks the first goals write after arm until release is closed
type gatedKV struct {
	*MemoryKV
	armed   chan struct{}
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedKV() *gatedKV {
	return &gatedKV{
		MemoryKV: NewMemoryKV(),
		armed:    make(chan struct{}),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (g *gatedKV) Apply(ctx context.Context, b *Batch) error {
	select {
	case <-g.armed:
		if _, ok := b.Sets[accountKey("acct-1", "goals")]; ok {
			g.once.Do(func() {
				close(g.entered)
				<-g.release
			})
		}
	default:
	}
	return g.MemoryKV.Apply(ctx, b)
}

func TestKVStoreOverlappingCommitsKeepEveryGoal(t *testing.T) {
	kv := newGatedKV()
	b := NewKVStore(kv, zap.NewNop())
	ctx := context.Background()
	signUp(t, b, "acct-1", "sam")

	l, err := ledger.Open(ctx, b, "acct-1", ledger.WithClock(func() time.Time { return t0 }))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	input := ledger.GoalInput{Title: "Run", Category: "fitness", DurationDays: 30, Privacy: models.PrivacySolo}
	first, err := l.CreateGoal(ctx, input)
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	close(kv.armed)
	title := "Run 10k"
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := l.UpdateGoal(ctx, first.ID, ledger.RenameGoal{Title: &title})
		errs <- err
	}()
	<-kv.entered

	// the rename is stalled mid-commit while a second goal is created
	wg.Add(1)
	go func() {
		defer wg.Done()
		input.Title = "Read"
		_, err := l.CreateGoal(ctx, input)
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond)
	close(kv.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("overlapping commit error = %v", err)
		}
	}

	stored, err := b.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(stored.Goals) != len(l.Goals()) || len(stored.Goals) != 2 {
		t.Fatalf("stored %d goals, ledger has %d, want 2", len(stored.Goals), len(l.Goals()))
	}
	for _, g := range stored.Goals {
		if g.ID == first.ID && g.Title != title {
			t.Errorf("stored title = %q, want %q", g.Title, title)
		}
	}
}
