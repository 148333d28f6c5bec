package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/datasetcrawler/internal/crawler"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestInitCreatesTable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchCommitsTransaction(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	records := []crawler.DocumentRecord{
		{SourceTopic: "https://example.com/a", SourceURL: "https://example.com/a", Text: "Hello\nWorld"},
		{SourceTopic: "go", SourceURL: "https://go.dev", Text: "Go"},
	}
	mock.ExpectBegin()
	for _, rec := range records {
		mock.ExpectExec("INSERT INTO documents").
			WithArgs(rec.SourceTopic, rec.SourceURL, rec.Text).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.InsertBatch(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchRollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	boom := errors.New("deadlock detected")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").WillReturnError(boom)
	mock.ExpectRollback()

	err := store.InsertBatch(context.Background(), []crawler.DocumentRecord{{SourceURL: "u", Text: "t"}})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	require.NoError(t, store.InsertBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanTextAndCount(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT text_content FROM documents").
		WillReturnRows(pgxmock.NewRows([]string{"text_content"}).AddRow("one").AddRow("two"))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	var got []string
	require.NoError(t, store.ScanText(context.Background(), func(s string) error {
		got = append(got, s)
		return nil
	}))
	require.Equal(t, []string{"one", "two"}, got)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "documents; DROP TABLE x")
	require.Error(t, err)
	_, err = NewWithPool(nil, "")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
