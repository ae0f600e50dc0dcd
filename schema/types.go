package schema

import (
	"fmt"
	"strings"
)

// Type is a logical SQL type code. Adapters map it to native type names.
type Type string

// Logical SQL types.
const (
	Bit           Type = "BIT"
	Boolean       Type = "BOOLEAN"
	TinyInt       Type = "TINYINT"
	SmallInt      Type = "SMALLINT"
	Integer       Type = "INTEGER"
	BigInt        Type = "BIGINT"
	Decimal       Type = "DECIMAL"
	Numeric       Type = "NUMERIC"
	Real          Type = "REAL"
	Float         Type = "FLOAT"
	Double        Type = "DOUBLE"
	Char          Type = "CHAR"
	VarChar       Type = "VARCHAR"
	LongVarChar   Type = "LONGVARCHAR"
	NChar         Type = "NCHAR"
	NVarChar      Type = "NVARCHAR"
	Clob          Type = "CLOB"
	NClob         Type = "NCLOB"
	Binary        Type = "BINARY"
	VarBinary     Type = "VARBINARY"
	LongVarBinary Type = "LONGVARBINARY"
	Blob          Type = "BLOB"
	Date          Type = "DATE"
	Time          Type = "TIME"
	Timestamp     Type = "TIMESTAMP"
	Other         Type = "OTHER"
)

var knownTypes = map[Type]struct{}{
	Bit: {}, Boolean: {}, TinyInt: {}, SmallInt: {}, Integer: {}, BigInt: {},
	Decimal: {}, Numeric: {}, Real: {}, Float: {}, Double: {},
	Char: {}, VarChar: {}, LongVarChar: {}, NChar: {}, NVarChar: {}, Clob: {}, NClob: {},
	Binary: {}, VarBinary: {}, LongVarBinary: {}, Blob: {},
	Date: {}, Time: {}, Timestamp: {}, Other: {},
}

// ParseType returns the Type for a case-insensitive type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("schema: unknown type %q", s)
	}
	return t, nil
}

// Sized reports whether the type takes a maximum length in DDL.
func (t Type) Sized() bool {
	switch t {
	case Char, VarChar, NChar, NVarChar, Binary, VarBinary:
		return true
	}
	return false
}

// IsLOB reports whether the type is a large object type.
func (t Type) IsLOB() bool {
	switch t {
	case Clob, NClob, Blob, LongVarChar, LongVarBinary:
		return true
	}
	return false
}

// IsUnicode reports whether the type stores national (unicode) characters.
func (t Type) IsUnicode() bool {
	switch t {
	case NChar, NVarChar, NClob:
		return true
	}
	return false
}

// IsDecimal reports whether the type accepts precision and scale.
func (t Type) IsDecimal() bool {
	return t == Decimal || t == Numeric
}

// IsCharacter reports whether the type holds character data.
func (t Type) IsCharacter() bool {
	switch t {
	case Char, VarChar, LongVarChar, NChar, NVarChar, Clob, NClob:
		return true
	}
	return false
}

// IsNumeric reports whether the type holds numbers.
func (t Type) IsNumeric() bool {
	switch t {
	case Bit, TinyInt, SmallInt, Integer, BigInt, Decimal, Numeric, Real, Float, Double:
		return true
	}
	return false
}
