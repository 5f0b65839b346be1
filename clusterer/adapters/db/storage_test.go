package db

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlmock "github.com/zhashkevych/go-sqlxmock"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.Newx()
	require.NoError(t, err)

	return &DB{
		log:  newTestLogger(),
		conn: conn,
	}, mock
}

func sampleResult() core.Result {
	return core.Result{
		ID:     "01JA2Z5Q6W7E8R9T0Y1U2I3O4P",
		Mode:   core.ModeContext,
		Source: core.SourceLocal,
		Clusters: []core.Cluster{
			{
				Name:       "Купить Диван",
				Intent:     "commercial",
				Phrases:    []core.Phrase{{Text: "купить диван", Count: 100}, {Text: "диван цена", Count: 50}},
				TotalCount: 150,
			},
		},
		MinusWords: map[string]core.MinusWordCategory{
			"free": {Key: "free", Name: "Бесплатно", Phrases: []core.Phrase{{Text: "диван бесплатно", Count: 10}}, TotalVolume: 10},
			"diy":  {Key: "diy", Name: "Своими руками", Phrases: []core.Phrase{{Text: "диван своими руками", Count: 5}}, TotalVolume: 5},
		},
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateProject(t *testing.T) {
	storage, mock := newMockDB(t)

	mock.ExpectQuery(`insert into clustering_projects`).
		WithArgs("42", "Диваны").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := storage.CreateProject(context.Background(), "42", "Диваны")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult(t *testing.T) {
	storage, mock := newMockDB(t)
	res := sampleResult()

	// категории минус-слов пишутся отсортированными
	mock.ExpectExec(`update clustering_projects`).
		WithArgs(sqlmock.AnyArg(), int64(2), int64(1), int64(2), "{\"diy\",\"free\"}", int64(7), "42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, storage.SaveResult(context.Background(), "42", 7, res))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_NotFound(t *testing.T) {
	storage, mock := newMockDB(t)

	mock.ExpectExec(`update clustering_projects`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := storage.SaveResult(context.Background(), "42", 7, sampleResult())
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveResult_ExecError(t *testing.T) {
	storage, mock := newMockDB(t)

	mock.ExpectExec(`update clustering_projects`).
		WillReturnError(assert.AnError)

	err := storage.SaveResult(context.Background(), "42", 7, sampleResult())
	require.ErrorIs(t, err, assert.AnError)
}

func TestResult(t *testing.T) {
	storage, mock := newMockDB(t)
	want := sampleResult()
	data, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectQuery(`select results from clustering_projects`).
		WithArgs(int64(7), "42").
		WillReturnRows(sqlmock.NewRows([]string{"results"}).AddRow(data))

	got, err := storage.Result(context.Background(), "42", 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResult_NotFound(t *testing.T) {
	testCases := []struct {
		name string
		rows *sqlmock.Rows
	}{
		{name: "no project", rows: sqlmock.NewRows([]string{"results"})},
		{name: "no results yet", rows: sqlmock.NewRows([]string{"results"}).AddRow(nil)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			storage, mock := newMockDB(t)
			mock.ExpectQuery(`select results from clustering_projects`).
				WithArgs(int64(9), "42").
				WillReturnRows(tc.rows)

			_, err := storage.Result(context.Background(), "42", 9)
			require.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestResult_Broken(t *testing.T) {
	storage, mock := newMockDB(t)

	mock.ExpectQuery(`select results from clustering_projects`).
		WillReturnRows(sqlmock.NewRows([]string{"results"}).AddRow([]byte(`{"clusters":`)))

	_, err := storage.Result(context.Background(), "42", 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestDBClose(t *testing.T) {
	storage, mock := newMockDB(t)

	mock.ExpectClose()

	require.NoError(t, storage.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
