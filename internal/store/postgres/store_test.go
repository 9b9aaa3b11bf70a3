package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock, "tracked_sites")
	require.NoError(t, err)
	return mock, store
}

func TestAddSiteInsertsRow(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("INSERT INTO tracked_sites").
		WithArgs("42", "http://ex.com/a", "fp1", []byte(`[{"name":"report","url":"http://ex.com/report.pdf"}]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.AddSite(context.Background(), "42", "http://ex.com/a", "fp1",
		[]watch.DocumentRef{{Name: "report", URL: "http://ex.com/report.pdf"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSiteConflictMapsToAlreadyTracked(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("INSERT INTO tracked_sites").
		WithArgs("42", "http://ex.com/a", "fp1", []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := store.AddSite(context.Background(), "42", "http://ex.com/a", "fp1", nil)
	assert.ErrorIs(t, err, watch.ErrAlreadyTracked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveSiteReportsPresence(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("DELETE FROM tracked_sites").
		WithArgs("42", "http://ex.com/a").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM tracked_sites").
		WithArgs("42", "http://ex.com/gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err := store.RemoveSite(context.Background(), "42", "http://ex.com/a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemoveSite(context.Background(), "42", "http://ex.com/gone")
	require.NoError(t, err)
	assert.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSitesDecodesDocuments(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	rows := pgxmock.NewRows([]string{"url", "fingerprint", "documents"}).
		AddRow("http://ex.com/a", "fp1", []byte(`[{"name":"report","url":"http://ex.com/report.pdf"}]`)).
		AddRow("http://ex.com/b", "fp2", []byte(`[]`))
	mock.ExpectQuery("SELECT url, fingerprint, documents").
		WithArgs("42").
		WillReturnRows(rows)

	sites, err := store.ListSites(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "http://ex.com/a", sites[0].URL)
	assert.Equal(t, []watch.DocumentRef{{Name: "report", URL: "http://ex.com/report.pdf"}}, sites[0].Documents)
	assert.Nil(t, sites[1].Documents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSiteMiss(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT url, fingerprint, documents").
		WithArgs("42", "http://ex.com/missing").
		WillReturnRows(pgxmock.NewRows([]string{"url", "fingerprint", "documents"}))

	_, ok, err := store.GetSite(context.Background(), "42", "http://ex.com/missing")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSiteMissingKeyIsNoOp(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("UPDATE tracked_sites").
		WithArgs("42", "http://ex.com/gone", "fp2", []byte(`[]`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateSite(context.Background(), "42", "http://ex.com/gone", "fp2", nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForEachSiteVisitsAllRows(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	rows := pgxmock.NewRows([]string{"user_id", "url", "fingerprint", "documents"}).
		AddRow("1", "http://ex.com/a", "fp1", []byte(`[]`)).
		AddRow("2", "http://ex.com/b", "fp2", []byte(`[{"name":"n","url":"http://ex.com/n.pdf"}]`))
	mock.ExpectQuery("SELECT user_id, url, fingerprint, documents").
		WillReturnRows(rows)

	var visited []string
	err := store.ForEachSite(context.Background(), func(userID string, site watch.TrackedSite) error {
		visited = append(visited, userID+" "+site.URL)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1 http://ex.com/a", "2 http://ex.com/b"}, visited)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "tracked; DROP TABLE users")
	assert.Error(t, err)
}
