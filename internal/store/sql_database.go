package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/migrations"
)

// DB wraps the sql connection together with the placeholder style of the
// active backend so one repository serves both SQLite and Postgres.
type DB struct {
	*sql.DB
	builder sq.StatementBuilderType
	dialect string
	logger  *logger.Logger
}

func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB, db.dialect)
}
