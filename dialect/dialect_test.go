package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/exp"
	"github.com/syssam/strata/schema"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		dialect string
		in      string
		want    string
	}{
		{dialect.Postgres, "ARTIST", `"ARTIST"`},
		{dialect.Postgres, "app.ARTIST", `"app"."ARTIST"`},
		{dialect.Postgres, `we"ird`, `"we""ird"`},
		{dialect.MySQL, "ARTIST", "`ARTIST`"},
		{dialect.SQLServer, "dbo.ARTIST", "[dbo].[ARTIST]"},
		{dialect.SQLite, "ARTIST", `"ARTIST"`},
		{dialect.Generic, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.in, func(t *testing.T) {
			a, err := dialect.Get(tt.dialect)
			require.NoError(t, err)
			got := a.QuoteIdentifier(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, a.QuoteIdentifier(got), "quoting is idempotent")
		})
	}
}

func TestGet(t *testing.T) {
	a, err := dialect.Get("pgx")
	require.NoError(t, err)
	b, err := dialect.Get(dialect.Postgres)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, dialect.Postgres, a.Name())

	_, err = dialect.Get("db2")
	assert.Error(t, err)

	assert.Equal(t, []string{
		dialect.Firebird, dialect.Generic, dialect.MySQL, dialect.Oracle,
		dialect.Postgres, dialect.SQLite, dialect.SQLServer,
	}, dialect.Names())
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		dialect string
		col     schema.Column
		want    string
	}{
		{dialect.Postgres, schema.Column{Type: schema.VarChar, Length: 254}, "varchar(254)"},
		{dialect.Postgres, schema.Column{Type: schema.VarChar}, "text"},
		{dialect.Postgres, schema.Column{Type: schema.Decimal, Precision: 10, Scale: 2}, "decimal(10, 2)"},
		{dialect.Postgres, schema.Column{Type: schema.Decimal, Precision: 10, Scale: schema.Unspecified}, "decimal(10)"},
		{dialect.Postgres, schema.Column{Type: schema.Decimal, Precision: schema.Unspecified, Scale: schema.Unspecified}, "decimal"},
		{dialect.Postgres, schema.Column{Type: schema.BigInt}, "bigint"},
		{dialect.MySQL, schema.Column{Type: schema.VarBinary, Length: -1}, "longblob"},
		{dialect.SQLServer, schema.Column{Type: schema.NVarChar, Length: 0}, "nvarchar(max)"},
		{dialect.Firebird, schema.Column{Type: schema.NVarChar, Length: 100}, "VARCHAR(100) CHARACTER SET UNICODE_FSS"},
		{dialect.Firebird, schema.Column{Type: schema.VarChar, Length: 100}, "VARCHAR(100)"},
		{dialect.Firebird, schema.Column{Type: schema.VarChar, Length: 10, Charset: "WIN1252"}, "VARCHAR(10) CHARACTER SET WIN1252"},
		{dialect.Oracle, schema.Column{Type: schema.VarChar, Length: 20}, "VARCHAR2(20)"},
		{dialect.Generic, schema.Column{Type: schema.Integer}, "INTEGER"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.want, func(t *testing.T) {
			a, err := dialect.Get(tt.dialect)
			require.NoError(t, err)
			got, err := a.ColumnType(&tt.col)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	a, _ := dialect.Get(dialect.Generic)
	_, err := a.ColumnType(&schema.Column{Name: "X"})
	assert.Error(t, err)
}

func TestLimitClause(t *testing.T) {
	tests := []struct {
		dialect       string
		limit, offset int
		want          string
	}{
		{dialect.Postgres, 10, 0, "LIMIT 10"},
		{dialect.Postgres, 10, 5, "LIMIT 10 OFFSET 5"},
		{dialect.Postgres, -1, 5, "LIMIT ALL OFFSET 5"},
		{dialect.Postgres, -1, 0, ""},
		{dialect.SQLite, -1, 3, "LIMIT -1 OFFSET 3"},
		{dialect.Firebird, 10, 20, "ROWS 21 TO 30"},
		{dialect.Oracle, 10, 20, "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY"},
		{dialect.Generic, 5, 0, "FETCH NEXT 5 ROWS ONLY"},
	}
	for _, tt := range tests {
		a, err := dialect.Get(tt.dialect)
		require.NoError(t, err)
		assert.Equal(t, tt.want, a.LimitClause(tt.limit, tt.offset), tt.dialect)
	}
}

func TestCapabilities(t *testing.T) {
	fb, _ := dialect.Get(dialect.Firebird)
	assert.Equal(t, 1500, fb.Capabilities().MaxInList)
	require.NotNil(t, fb.Rewriter())
	vals := make([]any, 1501)
	for i := range vals {
		vals[i] = i
	}
	rewritten := fb.Rewriter().Rewrite(exp.In(exp.Path("id"), vals...))
	assert.Equal(t, exp.KindOr, rewritten.Kind)

	pg, _ := dialect.Get(dialect.Postgres)
	assert.Nil(t, pg.Rewriter())
	assert.Equal(t, "$3", pg.Placeholder(3))
	assert.Equal(t, schema.PKSequence, pg.PKStrategy())
	require.NotNil(t, pg.Sequences())
	assert.Equal(t, "SELECT nextval('pk_artist')", pg.Sequences().NextValue("pk_artist"))
	assert.Equal(t, "CREATE SEQUENCE pk_artist START 200 INCREMENT 20", pg.Sequences().Create("pk_artist", 200, 20))

	my, _ := dialect.Get(dialect.MySQL)
	assert.Nil(t, my.Sequences())
	assert.True(t, my.Capabilities().GeneratedKeys)
	assert.Equal(t, "AUTO_INCREMENT", my.IdentityClause())
	assert.Equal(t, "?", my.Placeholder(1))

	gen, _ := dialect.Get(dialect.Generic)
	assert.Equal(t, schema.PKLookup, gen.PKStrategy())
}

func TestBindValue(t *testing.T) {
	fb, _ := dialect.Get(dialect.Firebird)
	assert.Equal(t, 1, fb.BindValue(nil, true))
	assert.Equal(t, 0, fb.BindValue(nil, false))
	assert.Nil(t, fb.BindValue(nil, nil))
	assert.Equal(t, "x", fb.BindValue(nil, "x"))

	pg, _ := dialect.Get(dialect.Postgres)
	assert.Equal(t, true, pg.BindValue(nil, true))
}

func TestNew(t *testing.T) {
	a := dialect.New(dialect.Config{
		Name:         "h2",
		Capabilities: dialect.Capabilities{MaxInList: 2},
		Types:        map[schema.Type][]string{schema.VarChar: {"VARCHAR", "CHARACTER VARYING"}},
	})
	assert.Equal(t, schema.PKLookup, a.PKStrategy())
	assert.Equal(t, []string{"VARCHAR", "CHARACTER VARYING"}, a.TypeNames(schema.VarChar))
	assert.Equal(t, []string{"BIGINT"}, a.TypeNames(schema.BigInt))
	names := a.TypeNames(schema.VarChar)
	names[0] = "changed"
	assert.Equal(t, "VARCHAR", a.TypeNames(schema.VarChar)[0])
	require.NotNil(t, a.Rewriter())
	assert.Equal(t, exp.KindOr, a.Rewriter().Rewrite(exp.In(exp.Path("x"), 1, 2, 3)).Kind)
}
