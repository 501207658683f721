package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
)

var memSeq atomic.Int64

// OpenMemory opens a fresh, fully migrated in-memory SQLite database. Each
// call gets its own database so callers never share state.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	name := fmt.Sprintf("file:authcore_%d?mode=memory&cache=shared", memSeq.Add(1))
	db, err := OpenSQLite(name)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
