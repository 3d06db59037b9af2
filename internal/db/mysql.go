package db

import (
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// NewMySQLConnection opens the relational job/appointment store.
// The DSN needs parseTime=true; migrate also needs multiStatements=true.
func NewMySQLConnection(dsn string, opts PoolOpts) (*sqlx.DB, error) {
	return open("mysql", dsn, opts, 5*time.Second)
}
