package metadata

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

// seed stores a signed-in session next to an offline snapshot.
func seed(t *testing.T, r *SQLiteRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "auth:token", []byte("jwt")))
	require.NoError(t, r.Set(ctx, "auth:email", []byte("ana@choir.org")))
	require.NoError(t, r.Set(ctx, "persist:root", []byte(`{"v":1}`)))
}

func TestGetAndSet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	v, err := r.Get(ctx, "auth:token")
	require.NoError(t, err)
	assert.Nil(t, v, "a missing key is (nil, nil)")

	require.NoError(t, r.Set(ctx, "auth:token", []byte("first")))
	require.NoError(t, r.Set(ctx, "auth:token", []byte("second")))

	v, err = r.Get(ctx, "auth:token")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), v)
}

func TestList_ByNamespace(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	seed(t, r)
	ctx := context.Background()

	auth, err := r.List(ctx, "auth:")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"auth:token": []byte("jwt"),
		"auth:email": []byte("ana@choir.org"),
	}, auth)

	all, err := r.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := r.List(ctx, "reports:")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestList_PrefixIsLiteral(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "a_b", []byte{1}))
	require.NoError(t, r.Set(ctx, "axb", []byte{2}))
	require.NoError(t, r.Set(ctx, "A_B", []byte{3}))

	m, err := r.List(ctx, "a_")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a_b": {1}}, m)
}

func TestClear_OnlyTheNamespace(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	seed(t, r)
	ctx := context.Background()

	require.NoError(t, r.Clear(ctx, "auth:"))
	m, err := r.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"persist:root": []byte(`{"v":1}`)}, m)

	require.NoError(t, r.Clear(ctx, ""))
	m, err = r.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestDelete_SeveralKeysLeavesOthers(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	seed(t, r)
	ctx := context.Background()

	require.NoError(t, r.Delete(ctx, "auth:token", "auth:email", "absent"))
	require.NoError(t, r.Delete(ctx))
	require.NoError(t, r.Delete(ctx, "auth:token"))

	m, err := r.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"persist:root": []byte(`{"v":1}`)}, m)
}

func TestDelete_UsesSingleStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM metadata WHERE key IN (?, ?)`)).
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, NewSQLiteRepository(db).Delete(context.Background(), "a", "b"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_NullValueIsReturnedAsNil(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB);`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO metadata(key, value) VALUES ('persist:root', NULL);`)
	require.NoError(t, err)

	m, err := NewSQLiteRepository(db).List(context.Background(), "persist:")
	require.NoError(t, err)
	v, ok := m["persist:root"]
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "auth:token")
	require.ErrorContains(t, err, "failed to get metadata[auth:token]")

	err = r.Set(ctx, "auth:token", []byte("v"))
	require.ErrorContains(t, err, "failed to set metadata[auth:token]")

	err = r.Delete(ctx, "auth:token")
	require.ErrorContains(t, err, "failed to delete metadata[auth:token]")

	err = r.Clear(ctx, "auth:")
	require.ErrorContains(t, err, "failed to clear metadata[auth:*]")

	_, err = r.List(ctx, "auth:")
	require.ErrorContains(t, err, "failed to list metadata[auth:*]")
}
