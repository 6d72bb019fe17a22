// cmd/import/main.go
// Imports canyons from the SQLite database of the old Flask application
// into the configured database, copying their photos into UPLOAD_DIR.
//
// Usage:
//
//	LEGACY_DB=/srv/old/barrancos.db \
//	go run ./cmd/import -images /srv/old/static/uploads
package main

import (
	"context"
	"flag"
	"log"

	"github.com/padraicbc/barrancos/config"
	bundb "github.com/padraicbc/barrancos/db"
	"github.com/padraicbc/barrancos/uploads"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()

	legacyPath := flag.String("legacy", cfg.LegacyDB, "path to the Flask barrancos.db (default $LEGACY_DB)")
	imagesDir := flag.String("images", "", "directory holding the old uploaded photos")
	flag.Parse()

	if *legacyPath == "" {
		log.Fatal("LEGACY_DB or -legacy is required")
	}

	// --- legacy SQLite ---
	legacyDB, err := bundb.OpenSQLite(*legacyPath)
	if err != nil {
		log.Fatalf("open legacy db: %v", err)
	}
	defer legacyDB.Close()
	if err := legacyDB.PingContext(ctx); err != nil {
		log.Fatalf("ping legacy db: %v", err)
	}
	log.Printf("connected to legacy db %s", *legacyPath)

	// --- target ---
	db := bundb.Setup(cfg)
	defer db.Close()
	if err := bundb.CreateTables(ctx, db); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	dir, err := uploads.Open(cfg.UploadDir)
	if err != nil {
		log.Fatalf("upload dir: %v", err)
	}
	defer dir.Close()

	imp := &importer{db: db, files: dir, imagesDir: *imagesDir}
	stats, err := imp.run(ctx, legacyDB)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	log.Printf("read %d, inserted %d, skipped %d invalid and %d already present, %d missing images",
		stats.read, stats.inserted, stats.invalid, stats.existing, stats.missingImages)
}
