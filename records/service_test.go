package records

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/barrancos/config"
	"github.com/padraicbc/barrancos/db"
	"github.com/padraicbc/barrancos/metrics"
	"github.com/padraicbc/barrancos/models"
	"github.com/padraicbc/barrancos/uploads"
)

type fixture struct {
	svc     *Service
	store   *db.CanyonStore
	dir     *uploads.Dir
	metrics *metrics.Records
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	bdb, err := db.Open(ctx, &config.Config{
		DBDriver:   config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "records.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	require.NoError(t, db.CreateTables(ctx, bdb))

	dir, err := uploads.Open(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dir.Close() })

	m, err := metrics.NewRecords(prometheus.NewRegistry())
	require.NoError(t, err)

	store := db.NewCanyonStore(bdb)
	return &fixture{
		svc:     NewService(store, dir, nil, m),
		store:   store,
		dir:     dir,
		metrics: m,
	}
}

func (fx *fixture) count(t *testing.T) int {
	t.Helper()
	all, err := fx.store.All(context.Background())
	require.NoError(t, err)
	return len(all)
}

func (fx *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(fx.dir.Path())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func upload(name, body string) *Upload {
	return &Upload{Name: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestCreateRoundTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f := validForm()
	f.Comments = "sin agua en verano"
	id, err := fx.svc.Create(ctx, f, nil)
	require.NoError(t, err)

	got, err := fx.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cueva Azul", got.Name)
	assert.Equal(t, "Sierra X", got.Location)
	assert.Equal(t, models.DifficultyMedium, got.Difficulty)
	assert.Equal(t, 2, got.RappelCount)
	assert.Equal(t, []float64{10.0, 15.5}, got.RappelLengths)
	assert.False(t, got.HasOverhang)
	assert.Nil(t, got.Image)
	require.NotNil(t, got.Comments)
	assert.Equal(t, "sin agua en verano", *got.Comments)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Operations.WithLabelValues("create", metrics.OutcomeOK)))
}

func TestCreateCountMismatchLeavesStoreUnchanged(t *testing.T) {
	fx := newFixture(t)

	f := validForm()
	f.RappelLengths = "10"
	_, err := fx.svc.Create(context.Background(), f, upload("foto.png", "img"))
	assert.ErrorIs(t, err, ErrCountMismatch)

	assert.Zero(t, fx.count(t))
	assert.Empty(t, fx.files(t), "rejected input must not leave a file behind")
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Operations.WithLabelValues("create", metrics.OutcomeInvalid)))
}

func TestCreateDuplicateName(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, validForm(), nil)
	require.NoError(t, err)

	_, err = fx.svc.Create(ctx, validForm(), upload("otra.jpg", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.True(t, IsValidation(err))

	assert.Equal(t, 1, fx.count(t))
	assert.Empty(t, fx.files(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Operations.WithLabelValues("create", metrics.OutcomeDuplicate)))
}

// racingStore hides existing names from the service so only the storage
// constraint can catch the duplicate.
type racingStore struct {
	*db.CanyonStore
}

func (racingStore) ByName(context.Context, string) (*models.Canyon, error) {
	return nil, db.ErrNotFound
}

func TestCreateDuplicateCaughtByStorage(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	svc := NewService(racingStore{fx.store}, fx.dir, nil, nil)

	_, err := svc.Create(ctx, validForm(), nil)
	require.NoError(t, err)

	_, err = svc.Create(ctx, validForm(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, ErrStorageConstraint)
	assert.Equal(t, 1, fx.count(t))
}

func TestCreateWithImage(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.svc.Create(ctx, validForm(), upload("../../etc/passwd.png", "png-bytes"))
	require.NoError(t, err)

	got, err := fx.svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Image)
	assert.Equal(t, "etc_passwd.png", *got.Image)

	data, err := os.ReadFile(fx.dir.FullPath(*got.Image))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Uploads))
}

func TestCreateRejectsBadImages(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, validForm(), upload("doc.pdf", "x"))
	assert.ErrorIs(t, err, ErrInvalidFileType)

	_, err = fx.svc.Create(ctx, validForm(), upload("foto.png.exe", "x"))
	assert.ErrorIs(t, err, ErrInvalidFileType)

	assert.Zero(t, fx.count(t))
}

func TestCreateRejectsNamesLosingExtension(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{".png", "_.jpg", "/.png", "..jpeg"} {
		_, err := fx.svc.Create(ctx, validForm(), upload(name, "<html><script>alert(1)</script>"))
		assert.ErrorIs(t, err, ErrInvalidFileType, name)
	}

	assert.Zero(t, fx.count(t))
	assert.Empty(t, fx.files(t))
}

func TestUpdateRejectsNameLosingExtension(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.svc.Create(ctx, validForm(), upload("azul.png", "img"))
	require.NoError(t, err)

	err = fx.svc.Update(ctx, id, validForm(), upload(".png", "<html>"))
	assert.ErrorIs(t, err, ErrInvalidFileType)

	got, err := fx.svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Image)
	assert.Equal(t, "azul.png", *got.Image)
	assert.Equal(t, []string{"azul.png"}, fx.files(t))
}

type failingSaver struct{}

func (failingSaver) Save(string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestCreateStorageWriteError(t *testing.T) {
	fx := newFixture(t)
	svc := NewService(fx.store, failingSaver{}, nil, fx.metrics)

	_, err := svc.Create(context.Background(), validForm(), upload("foto.jpg", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageWrite)
	assert.False(t, IsValidation(err))
	assert.Zero(t, fx.count(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Operations.WithLabelValues("create", metrics.OutcomeError)))
}

func TestUpdate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.svc.Create(ctx, validForm(), upload("azul.jpg", "v1"))
	require.NoError(t, err)

	f := validForm()
	f.Location = "Sierra Y"
	f.Difficulty = "High"
	f.RappelCount = "3"
	f.RappelLengths = "1.5, 2, 3.25"
	f.HasOverhang = "Yes"
	require.NoError(t, fx.svc.Update(ctx, id, f, nil))

	got, err := fx.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Sierra Y", got.Location)
	assert.Equal(t, models.DifficultyHigh, got.Difficulty)
	assert.Equal(t, []float64{1.5, 2, 3.25}, got.RappelLengths)
	assert.True(t, got.HasOverhang)
	require.NotNil(t, got.Image, "image is kept when no new file is sent")
	assert.Equal(t, "azul.jpg", *got.Image)

	require.NoError(t, fx.svc.Update(ctx, id, f, upload("nueva.png", "v2")))
	got, err = fx.svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Image)
	assert.Equal(t, "nueva.png", *got.Image)
}

func TestUpdateKeepOwnName(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.svc.Create(ctx, validForm(), nil)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Update(ctx, id, validForm(), nil))
	require.NoError(t, fx.svc.Update(ctx, id, validForm(), nil))
}

func TestUpdateRenameToTakenName(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, validForm(), nil)
	require.NoError(t, err)

	other := validForm()
	other.Name = "Otro"
	id, err := fx.svc.Create(ctx, other, nil)
	require.NoError(t, err)

	err = fx.svc.Update(ctx, id, validForm(), nil)
	assert.ErrorIs(t, err, ErrDuplicateName)

	got, err := fx.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Otro", got.Name)
}

func TestUpdateCountMismatchLeavesRecordUnchanged(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.svc.Create(ctx, validForm(), nil)
	require.NoError(t, err)

	f := validForm()
	f.Location = "cambiada"
	f.RappelCount = "3"
	err = fx.svc.Update(ctx, id, f, upload("x.png", "x"))
	assert.ErrorIs(t, err, ErrCountMismatch)

	got, err := fx.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Sierra X", got.Location)
	assert.Equal(t, 2, got.RappelCount)
	assert.Empty(t, fx.files(t))
}

func TestUpdateNotFound(t *testing.T) {
	fx := newFixture(t)
	err := fx.svc.Update(context.Background(), 99, validForm(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.svc.Create(ctx, validForm(), upload("azul.png", "img"))
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(ctx, id))
	_, err = fx.svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"azul.png"}, fx.files(t), "delete keeps the image file")
}

func TestDeleteNotFoundLeavesStoreUnchanged(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, validForm(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, fx.svc.Delete(ctx, 12345), ErrNotFound)
	assert.Equal(t, 1, fx.count(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Operations.WithLabelValues("delete", metrics.OutcomeNotFound)))
}

func TestListOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"B", "A", "C"} {
		f := validForm()
		f.Name = name
		_, err := fx.svc.Create(ctx, f, nil)
		require.NoError(t, err)
	}

	all, err := fx.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "B", all[0].Name)
	assert.Equal(t, "C", all[2].Name)
}
