package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countUsers(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func insertUser(ctx context.Context, db *sql.DB, email string) error {
	now := time.Now().UTC().Truncate(time.Second)
	_, err := Conn(ctx, db).ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at, updated_at) VALUES (?,?,?,?)`,
		email, "x", now, now)
	return err
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, func(ctx context.Context) error {
		require.True(t, InTx(ctx))
		return insertUser(ctx, db, "a@test.com")
	})
	require.NoError(t, err)
	require.Equal(t, 1, countUsers(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, func(ctx context.Context) error {
		require.NoError(t, insertUser(ctx, db, "a@test.com"))
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	require.Equal(t, 0, countUsers(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	func() {
		defer func() {
			require.NotNil(t, recover(), "panic must be rethrown")
		}()
		_ = WithTx(context.Background(), db, func(ctx context.Context) error {
			require.NoError(t, insertUser(ctx, db, "a@test.com"))
			panic("kaboom")
		})
	}()
	require.Equal(t, 0, countUsers(t, db), "must rollback on panic")
}

func TestWithTx_NestedJoinsOuterTransaction(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, func(ctx context.Context) error {
		outer := Conn(ctx, db)
		if err := insertUser(ctx, db, "outer@test.com"); err != nil {
			return err
		}
		inner := WithTx(ctx, db, func(ctx context.Context) error {
			require.Same(t, outer, Conn(ctx, db), "nested call must reuse the active tx")
			return insertUser(ctx, db, "inner@test.com")
		})
		require.NoError(t, inner)
		return errors.New("abort outer")
	})
	require.Error(t, err)
	require.Equal(t, 0, countUsers(t, db), "inner work is rolled back with the outer tx")
}

func TestConn_WithoutTxReturnsDB(t *testing.T) {
	db := setupDB(t)
	require.False(t, InTx(context.Background()))
	require.Same(t, db, Conn(context.Background(), db))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := setupDB(t)

	n, err := Migrate(context.Background(), db, "sqlite")
	require.NoError(t, err)
	require.Zero(t, n, "second run has nothing to apply")

	_, err = Migrate(context.Background(), db, "postgres")
	require.Error(t, err)
}
