package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"commit/internal/database"
	"commit/internal/models"
	"commit/internal/repository"
)

const backupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version          string                   `json:"version"`
	ExportedAt       time.Time                `json:"exported_at"`
	DatabaseType     string                   `json:"database_type"`
	Users            []models.User            `json:"users"`
	Profiles         []models.Account         `json:"profiles"`
	Squads           []models.Squad           `json:"squads"`
	SquadMembers     []models.SquadMember     `json:"squad_members"`
	Goals            []*models.Goal           `json:"goals"`
	CheckIns         []*models.CheckIn        `json:"check_ins"`
	Wallets          []*models.Wallet         `json:"wallets"`
	Transactions     []models.Transaction     `json:"transactions"`
	UserAchievements []models.UserAchievement `json:"user_achievements"`
	ReminderSettings []models.ReminderSettings `json:"reminder_settings,omitempty"`
}

// clearOrder lists tables children first so foreign keys never block a delete
var clearOrder = []string{
	"reminder_settings", "user_achievements", "transactions", "wallets", "check_ins", "goals",
	"squad_members", "squads", "profiles", "users",
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db  *database.DB
	log *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log *zap.Logger) *BackupService {
	return &BackupService{db: db, log: log}
}

// Snapshot reads every table into a BackupData
func (s *BackupService) Snapshot(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
	}

	var err error
	if backup.Users, err = repository.NewUserRepository(s.db).ListUsers(ctx); err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	if backup.Profiles, err = repository.NewProfileRepository(s.db).ListProfiles(ctx); err != nil {
		return nil, fmt.Errorf("failed to export profiles: %w", err)
	}
	squads := repository.NewSquadRepository(s.db)
	if backup.Squads, err = squads.ListAllSquads(ctx); err != nil {
		return nil, fmt.Errorf("failed to export squads: %w", err)
	}
	if backup.SquadMembers, err = squads.ListAllMembers(ctx); err != nil {
		return nil, fmt.Errorf("failed to export squad members: %w", err)
	}
	if backup.Goals, err = repository.NewGoalRepository(s.db).ListAllGoals(ctx); err != nil {
		return nil, fmt.Errorf("failed to export goals: %w", err)
	}
	if backup.CheckIns, err = repository.NewCheckInRepository(s.db).ListAllCheckIns(ctx); err != nil {
		return nil, fmt.Errorf("failed to export check-ins: %w", err)
	}
	wallets := repository.NewWalletRepository(s.db)
	if backup.Wallets, err = wallets.ListWallets(ctx); err != nil {
		return nil, fmt.Errorf("failed to export wallets: %w", err)
	}
	if backup.Transactions, err = wallets.ListTransactions(ctx, ""); err != nil {
		return nil, fmt.Errorf("failed to export transactions: %w", err)
	}
	if backup.UserAchievements, err = repository.NewAchievementRepository(s.db).ListUserAchievements(ctx, ""); err != nil {
		return nil, fmt.Errorf("failed to export achievements: %w", err)
	}
	if backup.ReminderSettings, err = repository.NewReminderRepository(s.db).ListReminderSettings(ctx); err != nil {
		return nil, fmt.Errorf("failed to export reminder settings: %w", err)
	}
	return backup, nil
}

// ExportToWriter writes the whole database as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return backup, nil
}

// Export creates a complete backup of the database to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	s.log.Info("starting database export", zap.String("output", outputPath))

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.ExportToWriter(ctx, file)
	if err != nil {
		return err
	}
	s.log.Info("database exported",
		zap.String("output", outputPath),
		zap.Int("users", len(backup.Users)),
		zap.Int("goals", len(backup.Goals)),
		zap.Int("check_ins", len(backup.CheckIns)),
		zap.Int("transactions", len(backup.Transactions)))
	return nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, clear bool) error {
	s.log.Info("starting database import", zap.String("input", inputPath))

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.ImportFromReader(ctx, file, clear)
}

// ImportFromReader restores a backup in one transaction, optionally wiping existing rows first
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, clear bool) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}
	s.log.Info("restoring backup",
		zap.String("version", backup.Version),
		zap.Time("exported_at", backup.ExportedAt),
		zap.Bool("clear", clear))

	if err := s.seedCatalog(ctx); err != nil {
		return err
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if clear {
			for _, table := range clearOrder {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return fmt.Errorf("failed to clear %s: %w", table, err)
				}
			}
		}
		return restore(ctx, tx, &backup)
	})
	if err != nil {
		return err
	}
	s.log.Info("database import completed", zap.Int("users", len(backup.Users)), zap.Int("goals", len(backup.Goals)))
	return nil
}

// seedCatalog makes sure achievement rows exist before user achievements reference them
func (s *BackupService) seedCatalog(ctx context.Context) error {
	return repository.NewAchievementRepository(s.db).SeedCatalog(ctx, models.DefaultAchievements)
}

// restore inserts rows in dependency order
func restore(ctx context.Context, q database.Querier, b *BackupData) error {
	users := repository.NewUserRepository(q)
	for i := range b.Users {
		if err := users.CreateUser(ctx, &b.Users[i]); err != nil {
			return fmt.Errorf("failed to import user %s: %w", b.Users[i].ID, err)
		}
	}
	profiles := repository.NewProfileRepository(q)
	for i := range b.Profiles {
		if err := profiles.CreateProfile(ctx, &b.Profiles[i]); err != nil {
			return fmt.Errorf("failed to import profile %s: %w", b.Profiles[i].ID, err)
		}
	}
	squads := repository.NewSquadRepository(q)
	for i := range b.Squads {
		if err := squads.CreateSquad(ctx, &b.Squads[i]); err != nil {
			return fmt.Errorf("failed to import squad %s: %w", b.Squads[i].ID, err)
		}
	}
	for i := range b.SquadMembers {
		if err := squads.AddMember(ctx, &b.SquadMembers[i]); err != nil {
			return fmt.Errorf("failed to import squad member %s: %w", b.SquadMembers[i].ID, err)
		}
	}
	goals := repository.NewGoalRepository(q)
	for _, g := range b.Goals {
		if err := goals.CreateGoal(ctx, g); err != nil {
			return fmt.Errorf("failed to import goal %s: %w", g.ID, err)
		}
	}
	checkIns := repository.NewCheckInRepository(q)
	for _, c := range b.CheckIns {
		if err := checkIns.CreateCheckIn(ctx, c); err != nil {
			return fmt.Errorf("failed to import check-in %s: %w", c.ID, err)
		}
	}
	wallets := repository.NewWalletRepository(q)
	for _, w := range b.Wallets {
		if err := wallets.CreateWallet(ctx, w); err != nil {
			return fmt.Errorf("failed to import wallet %s: %w", w.ID, err)
		}
	}
	for i := range b.Transactions {
		if err := wallets.CreateTransaction(ctx, &b.Transactions[i]); err != nil {
			return fmt.Errorf("failed to import transaction %s: %w", b.Transactions[i].ID, err)
		}
	}
	achievements := repository.NewAchievementRepository(q)
	for i := range b.UserAchievements {
		if err := achievements.CreateUserAchievement(ctx, &b.UserAchievements[i]); err != nil {
			return fmt.Errorf("failed to import achievement %s: %w", b.UserAchievements[i].ID, err)
		}
	}
	reminders := repository.NewReminderRepository(q)
	for _, r := range b.ReminderSettings {
		if err := reminders.ReplaceReminderSettings(ctx, r); err != nil {
			return fmt.Errorf("failed to import reminder settings for %s: %w", r.AccountID, err)
		}
	}
	return nil
}

// ObjectPutter is the part of the S3 client used for uploads
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client loads the default AWS configuration for region
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Upload exports the database straight to an S3 object and returns its key
func (s *BackupService) Upload(ctx context.Context, client ObjectPutter, bucket string) (string, error) {
	var buf bytes.Buffer
	backup, err := s.ExportToWriter(ctx, &buf)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("backups/commit-%s.json", backup.ExportedAt.Format("20060102-150405"))
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload backup to s3://%s/%s: %w", bucket, key, err)
	}
	s.log.Info("backup uploaded", zap.String("bucket", bucket), zap.String("key", key))
	return key, nil
}
