package db_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alexanderramin/strata/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*sql.DB, *db.SQLiteUnitOfWork) {
	t.Helper()
	database, err := db.OpenDB(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database, db.NewSQLiteUnitOfWork(database)
}

func insertProject(ctx context.Context, tx db.DBTX, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects (id, tenant_id, name, created_at, updated_at)
		VALUES (?, 't1', 'p', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`, id)
	return err
}

func countProjects(t *testing.T, database *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&n))
	return n
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	database, uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		return insertProject(ctx, tx, "p1")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countProjects(t, database))
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	database, uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProject(ctx, tx, "p1"); err != nil {
			return err
		}
		return errors.New("deliberate failure")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliberate failure")
	assert.Equal(t, 0, countProjects(t, database))
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	database, uow := openTestDB(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_ = insertProject(ctx, tx, "p1")
			panic("boom")
		})
	})
	assert.Equal(t, 0, countProjects(t, database))
}

func TestWithinTx_CancelledContext(t *testing.T) {
	_, uow := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := uow.WithinTx(ctx, func(context.Context, db.DBTX) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWithinTx_DeferredSelfReference(t *testing.T) {
	database, uow := openTestDB(t)

	// Child inserted before its parent must pass because self references are deferred.
	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProject(ctx, tx, "p1"); err != nil {
			return err
		}
		stmt := `INSERT INTO tasks (id, tenant_id, project_id, parent_id, name, created_at, updated_at)
			VALUES (?, 't1', 'p1', ?, ?, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`
		if _, err := tx.ExecContext(ctx, stmt, "child", "parent", "child"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, stmt, "parent", nil, "parent")
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestWithinTx_DanglingReferenceRollsBack(t *testing.T) {
	database, uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertProject(ctx, tx, "p1"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO tasks (id, tenant_id, project_id, parent_id, name, created_at, updated_at)
			VALUES ('orphan', 't1', 'p1', 'missing', 'orphan', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 0, countProjects(t, database))
}

func TestOpenDB_FileIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "strata.db")

	first, err := db.OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, insertProject(context.Background(), first, "p1"))
	require.NoError(t, first.Close())

	second, err := db.OpenDB(path)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, 1, countProjects(t, second))
}
