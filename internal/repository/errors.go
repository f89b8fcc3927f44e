// Package repository implements the MySQL persistence layer.  Errors
// returned here wrap the sentinels of package resource so handlers and
// services can classify them with errors.Is: ErrNotFound when no row
// matches and ErrDuplicate when a unique index rejects a write.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/dms-api/internal/resource"
)

// Re-exported so callers that only deal with repositories need not import
// package resource.
var (
	ErrNotFound  = resource.ErrNotFound
	ErrDuplicate = resource.ErrDuplicate
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the package sentinels.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%s: %w: %s", op, ErrDuplicate, me.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
