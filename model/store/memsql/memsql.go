package memsql

import (
	"context"
	"database/sql"
	"strings"

	C "mta/config"
	"mta/model/model"
	U "mta/util"

	"github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MemSQL store over the gorm connection in config services. Works with
// MemSQL/MySQL in deployments and sqlite in tests.
type MemSQL struct{}

var memSQLStore *MemSQL

func GetStore() *MemSQL {
	if memSQLStore == nil {
		memSQLStore = &MemSQL{}
	}
	return memSQLStore
}

const (
	// Error 1062: Leaf Error (127.0.0.1:3307): Duplicate entry '...' for key 'PRIMARY'
	MEMSQL_ERROR_CODE_DUPLICATE_ENTRY = "Error 1062"
	MYSQL_ER_DUP_ENTRY                = 1062
	SQLITE_ERROR_UNIQUE_CONSTRAINT    = "UNIQUE constraint failed"
)

func IsDuplicateRecordError(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == MYSQL_ER_DUP_ENTRY
	}
	return strings.HasPrefix(err.Error(), MEMSQL_ERROR_CODE_DUPLICATE_ENTRY) ||
		strings.Contains(err.Error(), SQLITE_ERROR_UNIQUE_CONSTRAINT)
}

// AutoMigrate creates or updates tables of all entities.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Channel{},
		&model.AttributionModel{},
		&model.Journey{},
		&model.Touchpoint{},
		&model.Conversion{},
		&model.AttributionResult{},
	).Error
}

func (store *MemSQL) getDB() *gorm.DB {
	return C.GetServices().Db
}

// checkContext gorm calls outside transactions do not take a context,
// cancellation is checked before issuing them.
func checkContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return model.NewPersistenceFailureError(errors.Wrap(err, operation), "")
	}
	return nil
}

// queryContext runs the statement on the pool bound to ctx. Unlike gorm calls,
// an expired or cancelled ctx aborts the query in flight.
func (store *MemSQL) queryContext(ctx context.Context, logCtx *log.Entry, operation,
	stmnt string, params []interface{}) (*sql.Rows, error) {

	rows, err := store.getDB().DB().QueryContext(ctx, stmnt, params...)
	if err != nil {
		logCtx.WithError(err).WithField("query", U.DBDebugPreparedStatement(stmnt, params)).
			Error("Failed to execute " + operation + " query.")
		return nil, persistenceFailure(err, operation)
	}
	return rows, nil
}

// selectContext queryContext with each row scanned into an entity by gorm's column mapping.
func (store *MemSQL) selectContext(ctx context.Context, logCtx *log.Entry, operation, stmnt string,
	params []interface{}, scanRow func(db *gorm.DB, rows *sql.Rows) error) error {

	rows, err := store.queryContext(ctx, logCtx, operation, stmnt, params)
	if err != nil {
		return err
	}
	defer rows.Close()

	db := store.getDB()
	for rows.Next() {
		if err := scanRow(db, rows); err != nil {
			logCtx.WithError(err).Error("Failed to scan " + operation + " rows.")
			return persistenceFailure(err, operation)
		}
	}
	if err := rows.Err(); err != nil {
		logCtx.WithError(err).Error("Failed to read " + operation + " rows.")
		return persistenceFailure(err, operation)
	}
	return nil
}

func persistenceFailure(err error, operation string) error {
	return model.NewPersistenceFailureError(errors.Wrap(err, operation), "")
}

// withTransaction runs fn in a transaction bound to ctx. Typed errors
// returned by fn are passed through after rollback.
func (store *MemSQL) withTransaction(ctx context.Context, logCtx *log.Entry,
	operation string, fn func(tx *gorm.DB) error) error {

	if err := checkContext(ctx, operation); err != nil {
		return err
	}

	tx := store.getDB().BeginTx(ctx, nil)
	if tx.Error != nil {
		logCtx.WithError(tx.Error).Error("Failed to begin transaction on " + operation + ".")
		return persistenceFailure(tx.Error, operation)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		var attributionErr *model.AttributionError
		if errors.As(err, &attributionErr) {
			return err
		}
		logCtx.WithError(err).Error("Failed " + operation + ". Rolled back.")
		return persistenceFailure(err, operation)
	}

	if err := tx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit transaction on " + operation + ".")
		return persistenceFailure(err, operation)
	}
	return nil
}
