package drafts

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/storyqueue/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE drafts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`)
	require.NoError(t, err)
	return db
}

func draft(text string, at int64) models.Draft {
	d := models.NewTextDraft(text)
	d.CreatedAt = time.UnixMilli(at).UTC()
	return d
}

func TestInsertAndList(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	id1, err := r.Insert(ctx, draft("first", 1000))
	require.NoError(t, err)
	id2, err := r.Insert(ctx, draft("second", 2000))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id1, got[0].ID)
	assert.Equal(t, "first", got[0].Title)
	assert.Equal(t, "first", got[0].Description)
	assert.Equal(t, time.UnixMilli(1000).UTC(), got[0].CreatedAt)
	assert.Equal(t, "second", got[1].Description)
}

func TestInsert_IDsAreNotReused(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	id1, err := r.Insert(ctx, draft("a", 1))
	require.NoError(t, err)
	ok, err := r.Delete(ctx, id1)
	require.NoError(t, err)
	require.True(t, ok)

	id2, err := r.Insert(ctx, draft("b", 2))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)
}

func TestDelete_MissingIDReportsFalse(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	ok, err := r.Delete(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCount(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.Insert(ctx, draft("x", 1))
	require.NoError(t, err)

	n, err = r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestList_EmptyReturnsNil(t *testing.T) {
	got, err := NewSQLiteRepository(setupDB(t)).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(r *SQLiteRepository) error
		want string
	}{
		{"insert", func(r *SQLiteRepository) error { _, err := r.Insert(ctx, draft("a", 1)); return err }, "failed to insert draft"},
		{"list", func(r *SQLiteRepository) error { _, err := r.List(ctx); return err }, "failed to list drafts"},
		{"delete", func(r *SQLiteRepository) error { _, err := r.Delete(ctx, 7); return err }, "failed to delete draft 7"},
		{"count", func(r *SQLiteRepository) error { _, err := r.Count(ctx); return err }, "failed to count drafts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupDB(t)
			r := NewSQLiteRepository(db)
			require.NoError(t, db.Close())

			err := tt.call(r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestList_ScanErrorWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "title", "description", "created_at"}).
		AddRow("not-a-number", "t", "d", 1)
	mock.ExpectQuery("SELECT id, title, description, created_at FROM drafts").WillReturnRows(rows)

	_, err = NewSQLiteRepository(db).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan draft row")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_LastInsertIDErrorWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO drafts").
		WillReturnResult(sqlmock.NewErrorResult(assert.AnError))

	_, err = NewSQLiteRepository(db).Insert(context.Background(), draft("a", 1))
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to read draft id")
	require.NoError(t, mock.ExpectationsWereMet())
}
