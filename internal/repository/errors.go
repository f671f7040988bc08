// Package repository is the MySQL persistence layer.  Repositories accept a
// sqlx.ExtContext so the same code runs against the pool or inside a
// transaction opened by Store.WithTx.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update matched no row because
// the state it depended on changed, e.g. a slot whose claim version moved
// or a reservation whose status was already transitioned.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")

const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
