package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/polylex/internal/testutil"
)

func setupSQLiteSlot(t *testing.T) *SQLSlot {
	t.Helper()
	slot, err := OpenSQL(context.Background(), DialectSQLite, ":memory:", DefaultSlotName, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = slot.Close() })
	return slot
}

func TestSQLSlot_ReadBeforeWrite(t *testing.T) {
	slot := setupSQLiteSlot(t)

	data, err := slot.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLSlot_WriteOverwrites(t *testing.T) {
	ctx := context.Background()
	slot := setupSQLiteSlot(t)

	require.NoError(t, slot.Write(ctx, []byte(`{"ruby":{"name":"Ruby","config":{}}}`)))
	require.NoError(t, slot.Write(ctx, []byte(`{}`)))

	data, err := slot.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	var rows int
	require.NoError(t, slot.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plugin_slots`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSQLSlot_SlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	a := setupSQLiteSlot(t)
	b := NewSQLSlot(a.db, DialectSQLite, "other")

	require.NoError(t, a.Write(ctx, []byte(`{"a":1}`)))

	data, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLSlot_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".polylex", "state.db")

	slot, err := OpenSQL(ctx, DialectSQLite, path, DefaultSlotName, nil)
	require.NoError(t, err)
	require.NoError(t, slot.Write(ctx, []byte(`{"go":{"name":"Go","config":{"name":"Go"}}}`)))
	require.NoError(t, slot.Close())

	slot, err = OpenSQL(ctx, DialectSQLite, path, DefaultSlotName, nil)
	require.NoError(t, err)
	defer func() { _ = slot.Close() }()

	data, err := slot.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"go":{"name":"Go","config":{"name":"Go"}}}`, string(data))

	version, err := MigrationVersion(slot.db, DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestSQLSlot_WriteFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO plugin_slots").
		WithArgs(DefaultSlotName, `{}`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	slot := NewSQLSlot(db, DialectSQLite, DefaultSlotName)
	err = slot.Write(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write slot")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSlot_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT value FROM plugin_slots WHERE name = \$1`).
		WithArgs(DefaultSlotName).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"a":1}`))
	mock.ExpectBegin()
	mock.ExpectExec(`VALUES \(\$1, \$2, CURRENT_TIMESTAMP\)`).
		WithArgs(DefaultSlotName, `{"a":2}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	slot := NewSQLSlot(db, DialectPostgres, DefaultSlotName)
	data, err := slot.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	require.NoError(t, slot.Write(context.Background(), []byte(`{"a":2}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPluginStore_OnSQLiteCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO plugin_slots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(assert.AnError)

	store := NewPluginStore(NewSQLSlot(db, DialectSQLite, DefaultSlotName), testutil.NewTestLogger(t))
	err = store.SaveAll(context.Background(), sampleRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin store write")
	assert.NoError(t, mock.ExpectationsWereMet())
}
