// Package dbgateway implements the Database Gateway: a
// prepared-statement CRUD surface over one MySQL connection per consumer
// process, with transparent reconnect-and-retry-once on a dropped
// connection.
package dbgateway

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/pipelineerr"
	"github.com/eluceo/jacobine/internal/retry"
)

// Credentials names the connection parameters the gateway redials with on
// reconnect. Keeping these as their own type (rather than passing raw
// strings around) is what makes the host/port swap bug the Open
// Question warns about impossible to reintroduce by accident: there is
// exactly one place host and port are read from, and a test pins it down.
type Credentials struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (c Credentials) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.Database)
}

// Gateway owns the single live *sql.DB handle for a consumer process. No
// other component is allowed to hold a reference to it.
type Gateway struct {
	mu    sync.Mutex
	db    *sql.DB
	creds Credentials
	log   logger.Logger
}

// Open connects to MySQL using creds.
func Open(creds Credentials, log logger.Logger) (*Gateway, error) {
	if creds.Driver == "" {
		creds.Driver = "mysql"
	}
	db, err := sql.Open(creds.Driver, creds.dsn())
	if err != nil {
		return nil, pipelineerr.NewDatabaseError(0, "open connection", err)
	}
	if err := db.Ping(); err != nil {
		return nil, pipelineerr.NewDatabaseError(0, "ping connection", err)
	}
	return &Gateway{db: db, creds: creds, log: log}, nil
}

// NewWithDB wraps an already-open *sql.DB as a Gateway. Production code
// should use Open; this exists so tests can hand the gateway a
// sqlmock-backed *sql.DB without going through a real TCP dial.
func NewWithDB(db *sql.DB, creds Credentials, log logger.Logger) *Gateway {
	return &Gateway{db: db, creds: creds, log: log}
}

// Close releases the underlying connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Close()
}

// reconnect tears down the current handle and opens a fresh one using the
// cached credentials. Host and port are read from g.creds, the single
// source of truth — never swapped, unlike the known-buggy original
// implementation this guards against.
func (g *Gateway) reconnect() error {
	if err := g.db.Close(); err != nil {
		g.log.Warn("error closing stale connection before reconnect", logger.Error(err))
	}
	db, err := sql.Open(g.creds.Driver, g.creds.dsn())
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}
	g.db = db
	return nil
}

// withReconnect runs fn against the live handle. If fn fails with a
// connection-lost error, the gateway reconnects exactly once using the
// cached credentials and retries fn exactly once. Any other error, or a
// second failure after reconnect, surfaces as a DatabaseError.
func (g *Gateway) withReconnect(ctx context.Context, fn func(*sql.DB) error) error {
	g.mu.Lock()
	db := g.db
	g.mu.Unlock()

	err := fn(db)
	if err == nil {
		return nil
	}
	if !isConnectionLost(err) {
		return pipelineerr.NewDatabaseError(mysqlErrorCode(err), "statement failed", err)
	}

	g.log.Warn("database connection lost, reconnecting", logger.Error(err))

	retryErr := retry.Do(ctx, retry.Once(), func(int) error {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.reconnect()
	})
	if retryErr != nil {
		return pipelineerr.NewDatabaseError(mysqlErrorCode(err), "reconnect failed", retryErr)
	}

	g.mu.Lock()
	db = g.db
	g.mu.Unlock()

	if err := fn(db); err != nil {
		return pipelineerr.NewDatabaseError(mysqlErrorCode(err), "statement failed after reconnect", err)
	}
	return nil
}

// SelectOptions carries the optional GROUP BY/ORDER BY/LIMIT clauses
// alongside the conjunctive equality predicate.
type SelectOptions struct {
	GroupBy string
	OrderBy string
	Limit   int
}

// Select runs a SELECT against table, filtered by a conjunctive AND
// equality predicate over where, returning every matching row as a
// column->value map.
func (g *Gateway) Select(ctx context.Context, table string, columns []string, where map[string]any, opts SelectOptions) ([]map[string]any, error) {
	if table == "" {
		return nil, pipelineerr.NewUsageError("empty table name")
	}

	selectList := "*"
	if len(columns) > 0 {
		selectList = strings.Join(columns, ", ")
	}

	whereClause, args := buildWhere(where)
	query := fmt.Sprintf("SELECT %s FROM %s%s", selectList, table, whereClause)
	if opts.GroupBy != "" {
		query += " GROUP BY " + opts.GroupBy
	}
	if opts.OrderBy != "" {
		query += " ORDER BY " + opts.OrderBy
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	var rows []map[string]any
	err := g.withReconnect(ctx, func(db *sql.DB) error {
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		result, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		defer result.Close()

		rows, err = scanRows(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert runs a prepared INSERT and returns the driver-assigned row id as
// a string.
func (g *Gateway) Insert(ctx context.Context, table string, values map[string]any) (string, error) {
	if table == "" {
		return "", pipelineerr.NewUsageError("empty table name")
	}
	if len(values) == 0 {
		return "", pipelineerr.NewUsageError("empty value map")
	}

	columns, args := sortedColumns(values)
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	var id int64
	err := g.withReconnect(ctx, func(db *sql.DB) error {
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		result, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", id), nil
}

// Update runs a prepared UPDATE against rows matching the conjunctive
// equality predicate in where.
func (g *Gateway) Update(ctx context.Context, table string, values map[string]any, where map[string]any) error {
	if table == "" {
		return pipelineerr.NewUsageError("empty table name")
	}
	if len(values) == 0 {
		return pipelineerr.NewUsageError("empty value map")
	}

	setColumns, setArgs := sortedColumns(values)
	setClauses := make([]string, len(setColumns))
	for i, col := range setColumns {
		setClauses[i] = col + " = ?"
	}

	whereClause, whereArgs := buildWhere(where)
	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(setClauses, ", "), whereClause)
	args := append(setArgs, whereArgs...)

	return g.withReconnect(ctx, func(db *sql.DB) error {
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		_, err = stmt.ExecContext(ctx, args...)
		return err
	})
}

// Delete runs a prepared DELETE against rows matching the conjunctive
// equality predicate in where.
func (g *Gateway) Delete(ctx context.Context, table string, where map[string]any) error {
	if table == "" {
		return pipelineerr.NewUsageError("empty table name")
	}
	if len(where) == 0 {
		return pipelineerr.NewUsageError("empty value map")
	}

	whereClause, args := buildWhere(where)
	query := fmt.Sprintf("DELETE FROM %s%s", table, whereClause)

	return g.withReconnect(ctx, func(db *sql.DB) error {
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		_, err = stmt.ExecContext(ctx, args...)
		return err
	})
}

// buildWhere renders a conjunctive AND equality predicate in deterministic
// column order so generated SQL (and its test assertions) are stable.
func buildWhere(where map[string]any) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	columns, args := sortedColumns(where)
	clauses := make([]string, len(columns))
	for i, col := range columns {
		clauses[i] = col + " = ?"
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func sortedColumns(values map[string]any) ([]string, []any) {
	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	args := make([]any, len(columns))
	for i, col := range columns {
		args[i] = values[col]
	}
	return columns, args
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]any
	for rows.Next() {
		scanTargets := make([]any, len(cols))
		scanValues := make([]any, len(cols))
		for i := range scanTargets {
			scanTargets[i] = &scanValues[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = scanValues[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
