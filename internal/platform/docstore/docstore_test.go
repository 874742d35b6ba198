package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return New(mock), mock
}

func TestStoreGetDecodesDocument(t *testing.T) {
	s, mock := newMockStore(t)
	updated := time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT data, updated_at FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("roles", "u-1").
		WillReturnRows(pgxmock.NewRows([]string{"data", "updated_at"}).AddRow([]byte(`{"role":"admin"}`), updated))

	var doc struct {
		Role string `json:"role"`
	}
	at, err := s.Get(context.Background(), "roles", "u-1", &doc)
	require.NoError(t, err)
	assert.Equal(t, "admin", doc.Role)
	assert.Equal(t, updated, at)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT data, updated_at FROM documents`).
		WithArgs("roles", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "roles", "missing", nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSetUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents .* ON CONFLICT \(collection, id\) DO UPDATE`).
		WithArgs("rolePermissions", "viewer", []byte(`{"permissions":{"home.view":true}}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Set(context.Background(), "rolePermissions", "viewer", map[string]any{
		"permissions": map[string]bool{"home.view": true},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs("licenses", "nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.Delete(context.Background(), "licenses", "nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListPreservesOrder(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, data, updated_at FROM documents WHERE collection = \$1 ORDER BY id`).
		WithArgs("health").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data", "updated_at"}).
			AddRow("backend", []byte(`{"status":"UP"}`), now).
			AddRow("sheets", []byte(`{"status":"DOWN"}`), now))

	docs, err := s.List(context.Background(), "health")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "backend", docs[0].ID)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, docs[1].Decode(&body))
	assert.Equal(t, "DOWN", body.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
