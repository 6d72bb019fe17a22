package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/padraicbc/barrancos/models"
)

// CanyonStore persists canyon records in the barrancos table.
type CanyonStore struct {
	db bun.IDB
}

// NewCanyonStore returns a store backed by db.
func NewCanyonStore(db bun.IDB) *CanyonStore {
	return &CanyonStore{db: db}
}

// All returns every record in primary-key order.
func (s *CanyonStore) All(ctx context.Context) ([]models.Canyon, error) {
	var canyons []models.Canyon
	err := s.db.NewSelect().
		Model(&canyons).
		OrderExpr("b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select canyons: %w", err)
	}
	return canyons, nil
}

// ByID returns the record with the given id or ErrNotFound.
func (s *CanyonStore) ByID(ctx context.Context, id int64) (*models.Canyon, error) {
	canyon := &models.Canyon{}
	err := s.db.NewSelect().Model(canyon).
		Where("b.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return canyon, nil
}

// ByName returns the record with exactly this name or ErrNotFound.
func (s *CanyonStore) ByName(ctx context.Context, name string) (*models.Canyon, error) {
	canyon := &models.Canyon{}
	err := s.db.NewSelect().Model(canyon).
		Where("b.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return canyon, nil
}

// Insert adds canyon and sets its ID.
func (s *CanyonStore) Insert(ctx context.Context, canyon *models.Canyon) error {
	canyon.ID = 0
	if _, err := s.db.NewInsert().Model(canyon).Exec(ctx); err != nil {
		return translate(err)
	}
	return nil
}

// Update overwrites every column of the row identified by canyon.ID.
func (s *CanyonStore) Update(ctx context.Context, canyon *models.Canyon) error {
	res, err := s.db.NewUpdate().Model(canyon).WherePK().Exec(ctx)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

// Delete removes the row with the given id.
func (s *CanyonStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().
		Model((*models.Canyon)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return translate(err)
	}
	return requireRow(res)
}

// Ping checks the connection; used by the health endpoint.
func (s *CanyonStore) Ping(ctx context.Context) error {
	var one int
	return s.db.NewSelect().ColumnExpr("1").Scan(ctx, &one)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func requireRow(res rowsAffected) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
