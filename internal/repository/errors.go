// Package repository defines the persistence layer for accounts and their
// tokens, together with error values shared across repositories. The
// sentinel values allow higher layers such as services and handlers to
// distinguish between different failure scenarios without inspecting
// driver-specific errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists is returned when a user is created with an e-mail address
// that is already registered. Handlers translate it into "Email exists".
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned by mutations that target a row which does not
// exist (or is soft-deleted). Lookups return a nil value instead.
var ErrNotFound = errors.New("not found")

// isDuplicateKey recognises unique-constraint violations from MySQL
// (error 1062) and SQLite.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
