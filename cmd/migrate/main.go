package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ringstat/adapters/postgres"
	"ringstat/adapters/tables"
	"ringstat/domain/sweep"
	"ringstat/internal/errors"
	"ringstat/internal/migration"
	"ringstat/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [results_dir]")
	}

	databaseURL := os.Args[1]
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Connect to database
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema at version %s", runner.Version())

	if len(os.Args) < 3 {
		return
	}
	resultsDir := os.Args[2]

	files, err := findGridFiles(resultsDir)
	if err != nil {
		log.Fatalf("Failed to find sweep exports: %v", err)
	}
	log.Printf("Found %d sweep exports in %s", len(files), resultsDir)

	repo := postgres.NewSweepRepository(db)
	imported, skipped := 0, 0
	for _, file := range files {
		grid, err := loadGrid(file)
		if err != nil {
			log.Printf("Failed to load sweep from %s: %v", file, err)
			skipped++
			continue
		}
		if stored, err := alreadyStored(ctx, repo, grid.ID); err != nil {
			log.Printf("Failed to look up sweep %s: %v", grid.ID, err)
			skipped++
			continue
		} else if stored {
			log.Printf("Sweep %s already stored, skipping %s", grid.ID, file)
			skipped++
			continue
		}
		if err := repo.Save(ctx, grid); err != nil {
			log.Printf("Failed to store sweep from %s: %v", file, err)
			skipped++
			continue
		}
		imported++
	}

	log.Printf("Import completed: %d imported, %d skipped", imported, skipped)
}

// findGridFiles walks dir for sweep exports
func findGridFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, tables.SuffixGrid) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadGrid reads one export and checks that it can be stored
func loadGrid(path string) (*sweep.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var grid sweep.Grid
	if err := json.Unmarshal(data, &grid); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(grid.ID); err != nil {
		return nil, errors.InvalidInput("sweep id " + grid.ID + " is not a UUID")
	}
	if len(grid.Cells) != grid.Size() {
		return nil, errors.InvalidInput("sweep export is incomplete")
	}
	return &grid, nil
}

func alreadyStored(ctx context.Context, repo ports.SweepRepository, id string) (bool, error) {
	_, err := repo.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.HasCode(err, errors.CodeDataNotFound):
		return false, nil
	default:
		return false, err
	}
}
