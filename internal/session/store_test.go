package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresStore_SaveAndGet(t *testing.T) {
	store, mock := newStoreWithMock(t)
	now := time.Now()
	s := &models.Session{ID: "sid", UserID: 9, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	mock.ExpectExec(`(?s)INSERT INTO user_sessions .*ON CONFLICT \(id\)`).
		WithArgs("sid", int64(9), now, s.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`(?s)SELECT id, user_id, created_at, expires_at FROM user_sessions.*expires_at > NOW\(\)`).
		WithArgs("sid").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at", "expires_at"}).
			AddRow("sid", 9, now, s.ExpiresAt))

	require.NoError(t, store.Save(context.Background(), s))
	got, err := store.Get(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT id, user_id`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`DELETE FROM user_sessions WHERE id = \$1`).
		WithArgs("sid").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "sid"))
	require.NoError(t, mock.ExpectationsWereMet())
}
