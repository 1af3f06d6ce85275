package dbgateway

import (
	"errors"
	"io"

	"github.com/go-sql-driver/mysql"
)

// connectionLostCodes are the MySQL server error numbers that trigger a
// reconnect: 2006 (server has gone away) and 2013 (lost connection to
// server during query).
var connectionLostCodes = map[uint16]bool{
	2006: true,
	2013: true,
}

// isConnectionLost reports whether err indicates the connection itself is
// dead, as opposed to a query-level failure (bad SQL, constraint
// violation) that retrying a fresh connection would not fix.
func isConnectionLost(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return connectionLostCodes[mysqlErr.Number]
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	return false
}

// mysqlErrorCode extracts the driver error number for inclusion in a
// DatabaseError, or 0 if err is not a *mysql.MySQLError.
func mysqlErrorCode(err error) int {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return int(mysqlErr.Number)
	}
	return 0
}
