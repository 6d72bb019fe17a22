package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/uptrace/bun"

	"github.com/padraicbc/barrancos/models"
	"github.com/padraicbc/barrancos/records"
	"github.com/padraicbc/barrancos/uploads"
)

const batchSize = 500

// Spanish choice values stored by the Flask forms.
var (
	legacyDifficulty = map[string]string{
		"Baja":  string(models.DifficultyLow),
		"Media": string(models.DifficultyMedium),
		"Alta":  string(models.DifficultyHigh),
	}
	legacyOverhang = map[string]string{
		"Sí": records.OverhangYes,
		"Si": records.OverhangYes,
		"No": records.OverhangNo,
	}
)

// legacyRow is one row of the Flask "barranco" table.
type legacyRow struct {
	ID          int
	Nombre      string
	Ubicacion   string
	Dificultad  string
	NumRapeles  int
	Metros      string
	Volado      string
	Imagen      sql.NullString
	Comentarios sql.NullString
}

type importStats struct {
	read          int
	inserted      int
	invalid       int
	existing      int
	missingImages int
}

type importer struct {
	db        bun.IDB
	files     *uploads.Dir
	imagesDir string
}

// pendingRow is a converted row waiting for its batch. image is the legacy
// file name, copied only once the row is known to be new.
type pendingRow struct {
	canyon models.Canyon
	image  string
}

func (imp *importer) run(ctx context.Context, legacy *sql.DB) (importStats, error) {
	var stats importStats

	rows, err := legacy.QueryContext(ctx,
		`SELECT id, nombre, ubicacion, dificultad, num_rapeles, metros_rapeles,
		        volado, imagen, comentarios
		 FROM barranco ORDER BY id`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	var pending []pendingRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.ID, &r.Nombre, &r.Ubicacion, &r.Dificultad, &r.NumRapeles,
			&r.Metros, &r.Volado, &r.Imagen, &r.Comentarios); err != nil {
			return stats, err
		}
		stats.read++

		c, err := convert(r)
		if err != nil {
			log.Printf("skip legacy row %d (%q): %v", r.ID, r.Nombre, err)
			stats.invalid++
			continue
		}

		pending = append(pending, pendingRow{canyon: *c, image: r.Imagen.String})
		if len(pending) >= batchSize {
			if err := imp.flush(ctx, pending, &stats); err != nil {
				return stats, err
			}
			pending = pending[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := imp.flush(ctx, pending, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// flush drops rows whose name is already stored, copies the photos of the
// rest and inserts them.
func (imp *importer) flush(ctx context.Context, pending []pendingRow, stats *importStats) error {
	if len(pending) == 0 {
		return nil
	}

	names := make([]string, len(pending))
	for i, p := range pending {
		names[i] = p.canyon.Name
	}
	existing, err := existingNames(ctx, imp.db, names)
	if err != nil {
		return err
	}

	batch := make([]models.Canyon, 0, len(pending))
	for _, p := range pending {
		c := p.canyon
		if existing[c.Name] {
			stats.existing++
			continue
		}
		if p.image != "" {
			name, err := imp.copyImage(p.image)
			if err != nil {
				log.Printf("canyon %q: image %q not copied: %v", c.Name, p.image, err)
				stats.missingImages++
			} else {
				c.Image = &name
			}
		}
		batch = append(batch, c)
	}

	n, err := bulkInsert(ctx, imp.db, batch)
	if err != nil {
		return err
	}
	stats.inserted += n
	return nil
}

// convert runs a legacy row through the same validation as the web forms,
// including the extension of the name its photo will be stored under.
func convert(r legacyRow) (*models.Canyon, error) {
	var lengths []float64
	if err := json.Unmarshal([]byte(r.Metros), &lengths); err != nil {
		return nil, fmt.Errorf("metros_rapeles: %w", err)
	}

	difficulty, ok := legacyDifficulty[r.Dificultad]
	if !ok {
		difficulty = r.Dificultad
	}
	overhang, ok := legacyOverhang[r.Volado]
	if !ok {
		overhang = r.Volado
	}

	form := records.Form{
		Name:          r.Nombre,
		Location:      r.Ubicacion,
		Difficulty:    difficulty,
		RappelCount:   strconv.Itoa(r.NumRapeles),
		RappelLengths: records.FormatLengths(lengths),
		HasOverhang:   overhang,
		Comments:      r.Comentarios.String,
	}
	if r.Imagen.String != "" {
		form.ImageName = uploads.Sanitize(r.Imagen.String)
		if form.ImageName == "" {
			return nil, fmt.Errorf("imagen %q: %w", r.Imagen.String, records.ErrInvalidFileType)
		}
	}
	draft, err := records.Validate(form)
	if err != nil {
		return nil, err
	}

	c := &models.Canyon{}
	draft.Apply(c)
	return c, nil
}

func (imp *importer) copyImage(name string) (string, error) {
	if imp.imagesDir == "" {
		return "", errors.New("no -images directory given")
	}
	src, err := os.Open(filepath.Join(imp.imagesDir, filepath.Base(name)))
	if err != nil {
		return "", err
	}
	defer src.Close()
	return imp.files.Save(name, src)
}

func existingNames(ctx context.Context, db bun.IDB, names []string) (map[string]bool, error) {
	var found []string
	err := db.NewSelect().
		Model((*models.Canyon)(nil)).
		Column("name").
		Where("b.name IN (?)", bun.In(names)).
		Scan(ctx, &found)
	if err != nil {
		return nil, fmt.Errorf("lookup existing names: %w", err)
	}
	set := make(map[string]bool, len(found))
	for _, n := range found {
		set[n] = true
	}
	return set, nil
}

// bulkInsert inserts a batch. Names stored concurrently since the lookup are
// skipped by the database.
func bulkInsert(ctx context.Context, db bun.IDB, rows []models.Canyon) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res, err := db.NewInsert().
		Model(&rows).
		Ignore().
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(rows), nil
	}
	return int(n), nil
}
