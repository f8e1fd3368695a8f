package postgres_test

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
	"github.com/printsafeai/printsafe-api/internal/domain/clients"
	"github.com/printsafeai/printsafe-api/internal/infra/db/postgres"
)

type fakeImages struct {
	saved   []string
	removed []string
}

func (f *fakeImages) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	p := "imagenes_guardadas/" + fileName
	f.saved = append(f.saved, p)
	return p, nil
}

func (f *fakeImages) Remove(ctx context.Context, path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func TestSaveAnalysisBatch_Commit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	images := &fakeImages{}
	store := postgres.NewStore(db, images)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO cliente").
		WillReturnRows(sqlmock.NewRows([]string{"id_cliente"}).AddRow(5))
	mock.ExpectQuery("INSERT INTO imagen_analisis").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(200))
	mock.ExpectCommit()

	clientID, records, err := store.SaveAnalysisBatch(context.Background(),
		&clients.Client{FirstName: "Ana", LastName: "Torres", Phone: "999888777"},
		3,
		[]domain.BatchEntry{{FileName: "logo.png", Data: []byte{1}, Label: domain.LabelInfractor, RawScore: 0.1}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, int64(5), clientID)
	require.Len(t, records, 1)
	assert.Equal(t, int64(200), records[0].ID)
	assert.Equal(t, int64(5), records[0].ClientID)
	assert.Empty(t, images.removed)
}

func TestSaveAnalysisBatch_ConstraintRollsBackAndRemovesCopies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	images := &fakeImages{}
	store := postgres.NewStore(db, images)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO cliente").
		WillReturnRows(sqlmock.NewRows([]string{"id_cliente"}).AddRow(5))
	mock.ExpectQuery("INSERT INTO imagen_analisis").
		WillReturnError(&pq.Error{Code: "23503", Message: "fk violation"})
	mock.ExpectRollback()

	_, _, err = store.SaveAnalysisBatch(context.Background(),
		&clients.Client{FirstName: "Ana", LastName: "Torres", Phone: "999888777"},
		3,
		[]domain.BatchEntry{{FileName: "logo.png", Data: []byte{1}, Label: domain.LabelInfractor, RawScore: 0.1}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, err, domain.ErrConstraint)
	assert.Equal(t, images.saved, images.removed)
}

func TestSaveAnalysisBatch_NonConstraintFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := postgres.NewStore(db, &fakeImages{})

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO cliente").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err = store.SaveAnalysisBatch(context.Background(),
		&clients.Client{FirstName: "Ana", LastName: "Torres", Phone: "999888777"},
		3,
		[]domain.BatchEntry{{FileName: "logo.png", Data: []byte{1}, Label: domain.LabelInfractor, RawScore: 0.1}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
