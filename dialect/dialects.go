package dialect

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/syssam/strata/schema"
)

// NewPostgres returns the PostgreSQL adapter.
func NewPostgres() Adapter {
	return New(Config{
		Name:        Postgres,
		Quote:       pq.QuoteIdentifier,
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		Types: map[schema.Type][]string{
			schema.Bit: {"bool"}, schema.Boolean: {"bool", "boolean"},
			schema.TinyInt: {"smallint"}, schema.SmallInt: {"smallint", "int2"},
			schema.Integer: {"integer", "int4"}, schema.BigInt: {"bigint", "int8"},
			schema.Decimal: {"decimal", "numeric"}, schema.Numeric: {"numeric"},
			schema.Real: {"real", "float4"}, schema.Float: {"float", "float8"},
			schema.Double: {"double precision", "float8"},
			schema.Char: {"char", "bpchar"}, schema.VarChar: {"varchar"},
			schema.LongVarChar: {"text"}, schema.NChar: {"char"}, schema.NVarChar: {"varchar"},
			schema.Clob: {"text"}, schema.NClob: {"text"},
			schema.Binary: {"bytea"}, schema.VarBinary: {"bytea"}, schema.LongVarBinary: {"bytea"},
			schema.Blob: {"bytea"}, schema.Date: {"date"}, schema.Time: {"time"},
			schema.Timestamp: {"timestamp"}, schema.Other: {"bytea"},
		},
		Unbounded: map[schema.Type]string{
			schema.Char: "text", schema.VarChar: "text", schema.NChar: "text", schema.NVarChar: "text",
		},
		Capabilities: Capabilities{
			BatchUpdates:    true,
			Returning:       true,
			Sequences:       true,
			IdentityColumns: true,
			BooleanLiterals: true,
		},
		PKStrategy: schema.PKSequence,
		Sequences: sequences{
			next:   "SELECT nextval('%s')",
			create: "CREATE SEQUENCE %s START %d INCREMENT %d",
			drop:   "DROP SEQUENCE %s",
			list:   "SELECT LOWER(sequence_name) FROM information_schema.sequences",
		},
		Limit:          LimitOffset("ALL"),
		Identity:       "GENERATED BY DEFAULT AS IDENTITY",
		IdentitySelect: "SELECT lastval()",
		RowLock:        "FOR UPDATE",
	})
}

// NewMySQL returns the MySQL adapter.
func NewMySQL() Adapter {
	return New(Config{
		Name:      MySQL,
		OpenQuote: "`",
		Types: map[schema.Type][]string{
			schema.Bit: {"bit"}, schema.Boolean: {"bool", "tinyint(1)"},
			schema.TinyInt: {"tinyint"}, schema.SmallInt: {"smallint"},
			schema.Integer: {"int", "integer"}, schema.BigInt: {"bigint"},
			schema.Decimal: {"decimal"}, schema.Numeric: {"decimal", "numeric"},
			schema.Real: {"float"}, schema.Float: {"float"}, schema.Double: {"double"},
			schema.Char: {"char"}, schema.VarChar: {"varchar"}, schema.LongVarChar: {"longtext"},
			schema.NChar: {"nchar"}, schema.NVarChar: {"nvarchar"},
			schema.Clob: {"longtext"}, schema.NClob: {"longtext"},
			schema.Binary: {"binary"}, schema.VarBinary: {"varbinary"},
			schema.LongVarBinary: {"longblob"}, schema.Blob: {"longblob"},
			schema.Date: {"date"}, schema.Time: {"time"}, schema.Timestamp: {"datetime", "timestamp"},
			schema.Other: {"longblob"},
		},
		Unbounded: map[schema.Type]string{
			schema.Char: "longtext", schema.VarChar: "longtext", schema.NChar: "longtext",
			schema.NVarChar: "longtext", schema.Binary: "longblob", schema.VarBinary: "longblob",
		},
		Capabilities: Capabilities{
			BatchUpdates:    true,
			GeneratedKeys:   true,
			IdentityColumns: true,
			BooleanLiterals: true,
		},
		PKStrategy: schema.PKIdentity,
		Limit:      LimitOffset("18446744073709551615"),
		Identity:   "AUTO_INCREMENT",
		RowLock:    "FOR UPDATE",
	})
}

// NewSQLite returns the SQLite adapter. Integer primary keys alias the
// rowid, so identity keys need no column clause.
func NewSQLite() Adapter {
	return New(Config{
		Name: SQLite,
		Types: map[schema.Type][]string{
			schema.Bit: {"BOOLEAN"}, schema.Boolean: {"BOOLEAN"},
			schema.TinyInt: {"INTEGER"}, schema.SmallInt: {"INTEGER"},
			schema.Integer: {"INTEGER"}, schema.BigInt: {"INTEGER"},
			schema.Decimal: {"DECIMAL"}, schema.Numeric: {"NUMERIC"},
			schema.Real: {"REAL"}, schema.Float: {"REAL"}, schema.Double: {"DOUBLE"},
			schema.Char: {"CHAR"}, schema.VarChar: {"VARCHAR"}, schema.LongVarChar: {"TEXT"},
			schema.NChar: {"NCHAR"}, schema.NVarChar: {"NVARCHAR"},
			schema.Clob: {"TEXT"}, schema.NClob: {"TEXT"},
			schema.Binary: {"BLOB"}, schema.VarBinary: {"BLOB"}, schema.LongVarBinary: {"BLOB"},
			schema.Blob: {"BLOB"}, schema.Date: {"DATE"}, schema.Time: {"TIME"},
			schema.Timestamp: {"DATETIME"}, schema.Other: {"BLOB"},
		},
		Unbounded: map[schema.Type]string{
			schema.Char: "TEXT", schema.VarChar: "TEXT", schema.NChar: "TEXT", schema.NVarChar: "TEXT",
			schema.Binary: "BLOB", schema.VarBinary: "BLOB",
		},
		Capabilities: Capabilities{
			BatchUpdates:      true,
			GeneratedKeys:     true,
			Returning:         true,
			IdentityColumns:   true,
			BooleanLiterals:   true,
			InlineConstraints: true,
		},
		PKStrategy: schema.PKIdentity,
		Limit:      LimitOffset("-1"),
	})
}

// NewFirebird returns the Firebird adapter. Firebird rejects IN lists longer
// than 1500 elements, they are split by the qualifier rewriter.
func NewFirebird() Adapter {
	return New(Config{
		Name: Firebird,
		Types: map[schema.Type][]string{
			schema.Bit: {"SMALLINT"}, schema.Boolean: {"SMALLINT"},
			schema.TinyInt: {"SMALLINT"}, schema.SmallInt: {"SMALLINT"},
			schema.Integer: {"INTEGER"}, schema.BigInt: {"BIGINT"},
			schema.Decimal: {"DECIMAL"}, schema.Numeric: {"NUMERIC"},
			schema.Real: {"FLOAT"}, schema.Float: {"FLOAT"}, schema.Double: {"DOUBLE PRECISION"},
			schema.Char: {"CHAR"}, schema.VarChar: {"VARCHAR"},
			schema.LongVarChar: {"BLOB SUB_TYPE TEXT"}, schema.NChar: {"CHAR"}, schema.NVarChar: {"VARCHAR"},
			schema.Clob: {"BLOB SUB_TYPE TEXT"}, schema.NClob: {"BLOB SUB_TYPE TEXT"},
			schema.Binary: {"BLOB SUB_TYPE 0"}, schema.VarBinary: {"BLOB SUB_TYPE 0"},
			schema.LongVarBinary: {"BLOB SUB_TYPE 0"}, schema.Blob: {"BLOB SUB_TYPE 0"},
			schema.Date: {"DATE"}, schema.Time: {"TIME"}, schema.Timestamp: {"TIMESTAMP"},
			schema.Other: {"BLOB SUB_TYPE 0"},
		},
		Unbounded: map[schema.Type]string{
			schema.Char: "BLOB SUB_TYPE TEXT", schema.VarChar: "BLOB SUB_TYPE TEXT",
			schema.NChar: "BLOB SUB_TYPE TEXT", schema.NVarChar: "BLOB SUB_TYPE TEXT",
		},
		UnicodeCharset: "UNICODE_FSS",
		Capabilities: Capabilities{
			BatchUpdates: true,
			Sequences:    true,
			MaxInList:    1500,
		},
		PKStrategy: schema.PKSequence,
		Sequences: sequences{
			next:   "SELECT NEXT VALUE FOR %s FROM RDB$DATABASE",
			create: "CREATE SEQUENCE %s START WITH %d INCREMENT BY %d",
			drop:   "DROP SEQUENCE %s",
			list:   "SELECT LOWER(TRIM(RDB$GENERATOR_NAME)) FROM RDB$GENERATORS WHERE RDB$SYSTEM_FLAG = 0",
		},
		Limit: func(limit, offset int) string {
			from := max(offset, 0) + 1
			if limit < 0 {
				return fmt.Sprintf("ROWS %d TO %d", from, 2147483647)
			}
			return fmt.Sprintf("ROWS %d TO %d", from, from+limit-1)
		},
		RowLock: "FOR UPDATE WITH LOCK",
	})
}

// NewOracle returns the Oracle adapter. Oracle accepts at most 1000
// expressions in an IN list.
func NewOracle() Adapter {
	return New(Config{
		Name:        Oracle,
		Placeholder: func(n int) string { return ":" + strconv.Itoa(n) },
		Types: map[schema.Type][]string{
			schema.Bit: {"NUMBER(1)"}, schema.Boolean: {"NUMBER(1)"},
			schema.TinyInt: {"NUMBER(3)"}, schema.SmallInt: {"NUMBER(5)"},
			schema.Integer: {"INTEGER"}, schema.BigInt: {"NUMBER(19)"},
			schema.Decimal: {"NUMBER"}, schema.Numeric: {"NUMBER"},
			schema.Real: {"REAL"}, schema.Float: {"FLOAT"}, schema.Double: {"DOUBLE PRECISION"},
			schema.Char: {"CHAR"}, schema.VarChar: {"VARCHAR2"}, schema.LongVarChar: {"CLOB"},
			schema.NChar: {"NCHAR"}, schema.NVarChar: {"NVARCHAR2"},
			schema.Clob: {"CLOB"}, schema.NClob: {"NCLOB"},
			schema.Binary: {"RAW"}, schema.VarBinary: {"RAW"}, schema.LongVarBinary: {"BLOB"},
			schema.Blob: {"BLOB"}, schema.Date: {"DATE"}, schema.Time: {"DATE"},
			schema.Timestamp: {"TIMESTAMP"}, schema.Other: {"BLOB"},
		},
		Unbounded: map[schema.Type]string{
			schema.Char: "CLOB", schema.VarChar: "CLOB", schema.NChar: "NCLOB", schema.NVarChar: "NCLOB",
			schema.Binary: "BLOB", schema.VarBinary: "BLOB",
		},
		Capabilities: Capabilities{
			BatchUpdates: true,
			Sequences:    true,
			MaxInList:    1000,
		},
		PKStrategy: schema.PKSequence,
		Sequences: sequences{
			next:   "SELECT %s.nextval FROM dual",
			create: "CREATE SEQUENCE %s START WITH %d INCREMENT BY %d",
			drop:   "DROP SEQUENCE %s",
			list:   "SELECT LOWER(SEQUENCE_NAME) FROM ALL_SEQUENCES",
		},
		RowLock: "FOR UPDATE",
	})
}

// NewSQLServer returns the Microsoft SQL Server adapter.
func NewSQLServer() Adapter {
	return New(Config{
		Name:        SQLServer,
		OpenQuote:   "[",
		CloseQuote:  "]",
		Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
		Types: map[schema.Type][]string{
			schema.Bit: {"bit"}, schema.Boolean: {"bit"},
			schema.TinyInt: {"tinyint"}, schema.SmallInt: {"smallint"},
			schema.Integer: {"int"}, schema.BigInt: {"bigint"},
			schema.Decimal: {"decimal"}, schema.Numeric: {"numeric"},
			schema.Real: {"real"}, schema.Float: {"float"}, schema.Double: {"float"},
			schema.Char: {"char"}, schema.VarChar: {"varchar"}, schema.LongVarChar: {"varchar(max)"},
			schema.NChar: {"nchar"}, schema.NVarChar: {"nvarchar"},
			schema.Clob: {"varchar(max)"}, schema.NClob: {"nvarchar(max)"},
			schema.Binary: {"binary"}, schema.VarBinary: {"varbinary"},
			schema.LongVarBinary: {"varbinary(max)"}, schema.Blob: {"varbinary(max)"},
			schema.Date: {"date"}, schema.Time: {"time"}, schema.Timestamp: {"datetime2", "datetime"},
			schema.Other: {"varbinary(max)"},
		},
		Unbounded: map[schema.Type]string{
			schema.Char: "varchar(max)", schema.VarChar: "varchar(max)", schema.NChar: "nvarchar(max)",
			schema.NVarChar: "nvarchar(max)", schema.Binary: "varbinary(max)", schema.VarBinary: "varbinary(max)",
		},
		Capabilities: Capabilities{
			BatchUpdates:    true,
			IdentityColumns: true,
		},
		PKStrategy:     schema.PKIdentity,
		Identity:       "IDENTITY",
		IdentitySelect: "SELECT CAST(@@IDENTITY AS BIGINT)",
	})
}

// NewGeneric returns an ANSI adapter backed by the lookup-table key strategy.
func NewGeneric() Adapter {
	return New(Config{
		Name: Generic,
		Capabilities: Capabilities{
			BatchUpdates: true,
		},
		PKStrategy: schema.PKLookup,
	})
}

var (
	adapters = map[string]func() Adapter{
		Postgres:  sync.OnceValue(NewPostgres),
		MySQL:     sync.OnceValue(NewMySQL),
		SQLite:    sync.OnceValue(NewSQLite),
		Firebird:  sync.OnceValue(NewFirebird),
		Oracle:    sync.OnceValue(NewOracle),
		SQLServer: sync.OnceValue(NewSQLServer),
		Generic:   sync.OnceValue(NewGeneric),
	}
	aliases = map[string]string{
		"postgresql": Postgres, "pgx": Postgres, "sqlite3": SQLite,
		"mssql": SQLServer, "godror": Oracle, "oci8": Oracle,
	}
)

// Get returns the process-wide adapter of the named dialect. Driver names
// such as "pgx", "sqlite3" or "mssql" are accepted as well.
func Get(name string) (Adapter, error) {
	name = strings.ToLower(name)
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	fn, ok := adapters[name]
	if !ok {
		return nil, fmt.Errorf("dialect: unknown dialect %q", name)
	}
	return fn(), nil
}

// Names returns the registered dialect names, sorted.
func Names() []string {
	names := make([]string, 0, len(adapters))
	for n := range adapters {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
