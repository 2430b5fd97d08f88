package main

// Run database migrations:
//   go run ./cmd/migrate
// and optionally seed account root folders for ROOT_FOLDER_SOURCE=db:
//   go run ./cmd/migrate -account-folders ./account_folders.yaml

import (
	"context"
	"flag"
	"log"
	"os"

	"filing-backend/internal/crm"
	"filing-backend/internal/shared/config"
	"filing-backend/internal/shared/storage/db"
)

func main() {
	foldersPath := flag.String("account-folders", "", "YAML file mapping account id to WorkDrive root folder")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	if *foldersPath == "" {
		return
	}
	roots, err := crm.LoadRootFolders(*foldersPath)
	if err != nil {
		log.Printf("failed to load account folders: %v", err)
		os.Exit(1)
	}
	n, err := crm.NewDBLookup(sqlDB).ImportRootFolders(ctx, roots)
	if err != nil {
		log.Printf("failed to import account folders: %v", err)
		os.Exit(1)
	}
	log.Printf("imported %d account folders", n)
}
