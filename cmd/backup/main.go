package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"commit/internal/config"
	"commit/internal/database"
	"commit/internal/logging"
	"commit/internal/service"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	exportBucket := exportCmd.String("s3-bucket", "", "Upload the backup to this S3 bucket instead of a local file")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.LedgerBackend != config.BackendSQL {
		log.Fatal("backups are only supported for the sql ledger backend", zap.String("backend", cfg.LedgerBackend))
	}

	ctx := context.Background()
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx, cfg.MigrationsPath, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	backupService := service.NewBackupService(db, log)

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		bucket := *exportBucket
		if bucket == "" {
			bucket = cfg.BackupBucket
		}
		if bucket != "" && *exportOutput == "" {
			handleUpload(ctx, log, backupService, cfg.AWSRegion, bucket)
			return
		}
		handleExport(ctx, log, backupService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, log, backupService, *importInput, *importClear)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, log *zap.Logger, backupService *service.BackupService, outputPath string) {
	// Generate default filename if not provided
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("failed to create output directory", zap.Error(err))
		}
	}

	if err := backupService.Export(ctx, outputPath); err != nil {
		log.Fatal("export failed", zap.Error(err))
	}

	if fileInfo, err := os.Stat(outputPath); err == nil {
		log.Info("export complete", zap.String("output", outputPath), zap.Float64("size_mb", float64(fileInfo.Size())/1024/1024))
	}
}

func handleUpload(ctx context.Context, log *zap.Logger, backupService *service.BackupService, region, bucket string) {
	client, err := service.NewS3Client(ctx, region)
	if err != nil {
		log.Fatal("failed to create s3 client", zap.Error(err))
	}
	key, err := backupService.Upload(ctx, client, bucket)
	if err != nil {
		log.Fatal("upload failed", zap.Error(err))
	}
	log.Info("export complete", zap.String("location", "s3://"+bucket+"/"+key))
}

func handleImport(ctx context.Context, log *zap.Logger, backupService *service.BackupService, inputPath string, clearData bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatal("input file does not exist", zap.String("input", inputPath))
	}

	if clearData {
		fmt.Print("WARNING: This will delete all existing data. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Info("import cancelled")
			return
		}
	}

	if err := backupService.Import(ctx, inputPath, clearData); err != nil {
		log.Fatal("import failed", zap.Error(err))
	}
	log.Info("import complete")
}

func printUsage() {
	fmt.Println("Commit Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export database to JSON file or S3")
	fmt.Println("  backup import [options]    Import database from JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>       Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println("  -s3-bucket <bucket>  Upload to S3 (default: BACKUP_BUCKET)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  backup export -output mybackup.json")
	fmt.Println("  backup export -s3-bucket commit-backups")
	fmt.Println("  backup import -input backup.json -clear")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./commit.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
	fmt.Println("  AWS_REGION       Region of the backup bucket")
}
