package records

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/padraicbc/barrancos/db"
	"github.com/padraicbc/barrancos/metrics"
	"github.com/padraicbc/barrancos/models"
	"github.com/padraicbc/barrancos/uploads"
)

// Store is the persistence the service needs. *db.CanyonStore implements it.
type Store interface {
	All(ctx context.Context) ([]models.Canyon, error)
	ByID(ctx context.Context, id int64) (*models.Canyon, error)
	ByName(ctx context.Context, name string) (*models.Canyon, error)
	Insert(ctx context.Context, c *models.Canyon) error
	Update(ctx context.Context, c *models.Canyon) error
	Delete(ctx context.Context, id int64) error
}

// FileSaver stores an uploaded image and returns its stored name.
// *uploads.Dir implements it.
type FileSaver interface {
	Save(name string, r io.Reader) (string, error)
}

// Upload is an image sent along with a form.
type Upload struct {
	Name string
	Size int64
	Body io.Reader
}

// Service applies validated form input to the store.
type Service struct {
	store   Store
	files   FileSaver
	logger  *zap.Logger
	metrics *metrics.Records
}

// NewService wires a Service. logger and m may be nil.
func NewService(store Store, files FileSaver, logger *zap.Logger, m *metrics.Records) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, files: files, logger: logger, metrics: m}
}

// List returns every record in id order.
func (s *Service) List(ctx context.Context) ([]models.Canyon, error) {
	return s.store.All(ctx)
}

// Get returns one record or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*models.Canyon, error) {
	c, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return c, nil
}

// Create validates f, stores the optional upload and inserts a new record.
// It returns the new id.
func (s *Service) Create(ctx context.Context, f Form, up *Upload) (id int64, err error) {
	defer func() { s.observe("create", err) }()

	draft, err := s.check(f, up)
	if err != nil {
		return 0, err
	}

	if err := s.ensureNameFree(ctx, draft.Name, 0); err != nil {
		return 0, err
	}

	c := &models.Canyon{}
	draft.Apply(c)

	if up != nil {
		name, err := s.save(up)
		if err != nil {
			return 0, err
		}
		c.Image = &name
	}

	if err := s.store.Insert(ctx, c); err != nil {
		return 0, mapStoreErr(err)
	}

	s.logger.Info("canyon created", zap.Int64("id", c.ID), zap.String("name", c.Name))
	return c.ID, nil
}

// Update replaces the fields of record id with f. Without an upload the
// existing image is kept.
func (s *Service) Update(ctx context.Context, id int64, f Form, up *Upload) (err error) {
	defer func() { s.observe("update", err) }()

	c, err := s.store.ByID(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}

	draft, err := s.check(f, up)
	if err != nil {
		return err
	}

	if draft.Name != c.Name {
		if err := s.ensureNameFree(ctx, draft.Name, c.ID); err != nil {
			return err
		}
	}

	if up != nil {
		name, err := s.save(up)
		if err != nil {
			return err
		}
		c.Image = &name
	}
	draft.Apply(c)

	if err := s.store.Update(ctx, c); err != nil {
		return mapStoreErr(err)
	}

	s.logger.Info("canyon updated", zap.Int64("id", c.ID), zap.String("name", c.Name))
	return nil
}

// Delete removes record id. Its image file is left on disk.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer func() { s.observe("delete", err) }()

	c, err := s.store.ByID(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	if err := s.store.Delete(ctx, c.ID); err != nil {
		return mapStoreErr(err)
	}

	s.logger.Info("canyon deleted", zap.Int64("id", c.ID), zap.String("name", c.Name))
	return nil
}

// check runs every pure validation so nothing is written when the input is
// rejected. The image extension is checked on the name the file will be
// stored under, not the one the client sent.
func (s *Service) check(f Form, up *Upload) (Draft, error) {
	f.ImageName = ""
	if up != nil {
		f.ImageName = uploads.Sanitize(up.Name)
	}
	draft, err := Validate(f)
	if err != nil {
		return Draft{}, err
	}
	if up != nil && f.ImageName == "" {
		return Draft{}, fieldErr("image", ErrInvalidFileType, "Nombre de archivo no válido.")
	}
	return draft, nil
}

func (s *Service) ensureNameFree(ctx context.Context, name string, self int64) error {
	existing, err := s.store.ByName(ctx, name)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup name: %w", err)
	case existing.ID != self:
		return fieldErr("name", ErrDuplicateName, "Ya existe un barranco con ese nombre.")
	}
	return nil
}

func (s *Service) save(up *Upload) (string, error) {
	name, err := s.files.Save(up.Name, up.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrStorageWrite, up.Name, err)
	}
	s.metrics.ObserveUpload(up.Size)
	return name, nil
}

func (s *Service) observe(op string, err error) {
	s.metrics.Observe(op, outcome(err))
	if err != nil && !IsValidation(err) && !errors.Is(err, ErrNotFound) {
		s.logger.Error("canyon "+op+" failed", zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrDuplicateName):
		return metrics.OutcomeDuplicate
	case IsValidation(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, db.ErrUniqueViolation):
		// Lost a race with a concurrent write of the same name.
		return &FieldError{
			Field: "name",
			Kind:  errors.Join(ErrDuplicateName, ErrStorageConstraint),
			Msg:   "Ya existe un barranco con ese nombre.",
		}
	default:
		return fmt.Errorf("store: %w", err)
	}
}
