package repo

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-todos-backend/internal/domain"
)

func openFile(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "absent", "todos.db"))
	assert.Nil(t, db)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "err=%v", err)
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t,
		"todos.db?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		sqliteDSN("todos.db"))
	assert.True(t, strings.HasPrefix(sqliteDSN("file:todos.db?mode=rwc"), "file:todos.db?mode=rwc&_pragma=journal_mode(WAL)&"))
}

func TestOpenSQLite_PragmasOnEveryConnection(t *testing.T) {
	db := openFile(t, "todos.db")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)

	// Two connections held at once so the second is not a reuse of the first.
	tx1 := db.Begin()
	tx2 := db.Begin()
	t.Cleanup(func() { tx1.Rollback(); tx2.Rollback() })

	for _, conn := range []*gorm.DB{tx1, tx2} {
		var mode string
		var syncMode, fk, busy int
		require.NoError(t, conn.Raw("PRAGMA journal_mode").Row().Scan(&mode))
		require.NoError(t, conn.Raw("PRAGMA synchronous").Row().Scan(&syncMode))
		require.NoError(t, conn.Raw("PRAGMA foreign_keys").Row().Scan(&fk))
		require.NoError(t, conn.Raw("PRAGMA busy_timeout").Row().Scan(&busy))
		assert.Equal(t, "wal", strings.ToLower(mode))
		assert.Equal(t, 1, syncMode)
		assert.Equal(t, 1, fk)
		assert.Equal(t, 5000, busy)
	}
}

func TestAutoMigrate_SchemaUsable(t *testing.T) {
	db := openFile(t, "schema.db")
	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AutoMigrate(db), "migrations must be re-runnable")

	m := db.Migrator()
	assert.True(t, m.HasTable(&domain.Todo{}))
	assert.True(t, m.HasTable(&domain.Idempotency{}))
	assert.True(t, m.HasIndex(&domain.Todo{}, "idx_owner_created"))

	td := &domain.Todo{ID: NewTodoID(), OwnerID: "u1", Title: "water plants"}
	require.NoError(t, db.Create(td).Error)
	assert.False(t, td.CreatedAt.IsZero())
	assert.Equal(t, "UTC", td.CreatedAt.Location().String())
}

func TestOpen_Dispatch(t *testing.T) {
	db, err := Open(" SQLite ", filepath.Join(t.TempDir(), "dispatch.db"))
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()

	_, err = Open("oracle", "scott/tiger")
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Open(DriverPostgres, "  ")
	assert.ErrorContains(t, err, "dsn is empty")
}

func TestEnableTracing(t *testing.T) {
	db := openFile(t, "trace.db")
	require.NoError(t, EnableTracing(db))
	require.NoError(t, AutoMigrate(db))

	var n int64
	require.NoError(t, db.Model(&domain.Todo{}).Count(&n).Error)
	assert.Zero(t, n)
}
