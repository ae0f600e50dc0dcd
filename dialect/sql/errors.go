package sql

import (
	"errors"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/strata"
)

// ConstraintKind is the kind of a violated database constraint.
type ConstraintKind uint8

// Constraint kinds.
const (
	NoConstraint ConstraintKind = iota
	UniqueConstraint
	ForeignKeyConstraint
	CheckConstraint
	NotNullConstraint
)

// String returns the constraint kind name.
func (k ConstraintKind) String() string {
	switch k {
	case UniqueConstraint:
		return "unique"
	case ForeignKeyConstraint:
		return "foreign key"
	case CheckConstraint:
		return "check"
	case NotNullConstraint:
		return "not null"
	}
	return "none"
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// SQL Server error numbers for constraint violations.
const (
	mssqlCannotInsertNull = 515
	mssqlConflict         = 547 // Foreign key or check constraint, told apart by message.
	mssqlDuplicateIndex   = 2601
	mssqlDuplicateKey     = 2627
)

// sqlStateError is implemented by drivers exposing SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// messages are the fallbacks for drivers without typed errors: Firebird,
// Oracle and wrapped errors that lost their type.
var messages = []struct {
	kind ConstraintKind
	subs []string
}{
	{UniqueConstraint, []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed", "violation of PRIMARY or UNIQUE KEY constraint", "ORA-00001"}},
	{ForeignKeyConstraint, []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed", "violation of FOREIGN KEY constraint", "ORA-02291", "ORA-02292"}},
	{CheckConstraint, []string{"Error 3819", "violates check constraint", "CHECK constraint failed", "violates CHECK constraint", "ORA-02290"}},
	{NotNullConstraint, []string{"Error 1048", "violates not-null constraint", "NOT NULL constraint failed", "value \"*** null ***\"", "ORA-01400"}},
}

// Classify returns the kind of constraint violated by err, or NoConstraint.
func Classify(err error) ConstraintKind {
	if err == nil {
		return NoConstraint
	}
	if e, ok := asError[*pq.Error](err); ok {
		if k := pgKind(string(e.Code)); k != NoConstraint {
			return k
		}
	}
	if e, ok := asError[sqlStateError](err); ok {
		if k := pgKind(e.SQLState()); k != NoConstraint {
			return k
		}
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		switch e.Number {
		case mysqlDuplicateEntry:
			return UniqueConstraint
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKeyConstraint
		case mysqlCheckConstraintViolate:
			return CheckConstraint
		case mysqlBadNull:
			return NotNullConstraint
		}
	}
	if e, ok := asError[mssql.Error](err); ok {
		switch e.SQLErrorNumber() {
		case mssqlDuplicateKey, mssqlDuplicateIndex:
			return UniqueConstraint
		case mssqlConflict:
			if strings.Contains(e.Message, "CHECK") {
				return CheckConstraint
			}
			return ForeignKeyConstraint
		case mssqlCannotInsertNull:
			return NotNullConstraint
		}
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		switch e.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return UniqueConstraint
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ForeignKeyConstraint
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return CheckConstraint
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return NotNullConstraint
		}
	}
	msg := err.Error()
	for _, m := range messages {
		if containsAny(msg, m.subs...) {
			return m.kind
		}
	}
	return NoConstraint
}

func pgKind(code string) ConstraintKind {
	switch code {
	case pgUniqueViolation:
		return UniqueConstraint
	case pgForeignKeyViolation:
		return ForeignKeyConstraint
	case pgCheckViolation:
		return CheckConstraint
	case pgNotNullViolation:
		return NotNullConstraint
	}
	return NoConstraint
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return strata.IsConstraintError(err) || Classify(err) != NoConstraint
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return Classify(err) == UniqueConstraint
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return Classify(err) == ForeignKeyConstraint
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	return Classify(err) == CheckConstraint
}

// WrapConstraint wraps err into a strata.ConstraintError when it is a
// constraint violation, and returns it unchanged otherwise.
func WrapConstraint(err error) error {
	if err == nil || strata.IsConstraintError(err) {
		return err
	}
	if k := Classify(err); k != NoConstraint {
		return strata.NewConstraintError(k.String()+" constraint violated", err)
	}
	return err
}

// asError attempts to extract an error of type T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
