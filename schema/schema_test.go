package schema_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/internal/fixture"
	"github.com/syssam/strata/schema"
)

func TestRegistry(t *testing.T) {
	reg := fixture.Registry()

	t.Run("lookup", func(t *testing.T) {
		artist, ok := reg.Entity("Artist")
		require.True(t, ok)
		assert.Equal(t, "ARTIST", artist.Table)
		_, ok = reg.Entity("Nope")
		assert.False(t, ok)
		assert.Panics(t, func() { reg.MustEntity("Nope") })
	})

	t.Run("sorted", func(t *testing.T) {
		var names []string
		for _, e := range reg.Entities() {
			names = append(names, e.Name)
		}
		assert.Equal(t, []string{"Artist", "Gallery", "LockingTest", "Painting"}, names)
	})

	t.Run("columns", func(t *testing.T) {
		painting := reg.MustEntity("Painting")
		c, ok := painting.ColumnForProperty("paintingTitle")
		require.True(t, ok)
		assert.Equal(t, "PAINTING_TITLE", c.Name)
		c, ok = painting.ColumnForProperty("ARTIST_ID")
		require.True(t, ok)
		assert.Equal(t, schema.BigInt, c.Type)
		require.Len(t, painting.PrimaryKey(), 1)
		assert.Equal(t, "PAINTING_ID", painting.PrimaryKey()[0].Name)
	})

	t.Run("relationships", func(t *testing.T) {
		painting := reg.MustEntity("Painting")
		rel, ok := painting.Relationship("toArtist")
		require.True(t, ok)
		assert.True(t, rel.ToDependentPK(reg))
		artist := reg.MustEntity("Artist")
		rel, ok = artist.Relationship("paintings")
		require.True(t, ok)
		assert.False(t, rel.ToDependentPK(reg))
	})

	t.Run("locking", func(t *testing.T) {
		lock := reg.MustEntity("LockingTest").LockColumns()
		require.Len(t, lock, 1)
		assert.Equal(t, "NAME", lock[0].Name)
		assert.Empty(t, reg.MustEntity("Artist").LockColumns())
	})

	assert.False(t, reg.QuoteIdentifiers())
	assert.True(t, fixture.QuotedRegistry().QuoteIdentifiers())
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name    string
		entity  *schema.Entity
		message string
	}{
		{
			name:    "no primary key",
			entity:  &schema.Entity{Name: "A", Table: "A", Columns: []*schema.Column{{Name: "X", Type: schema.Integer}}},
			message: "no primary key columns",
		},
		{
			name: "unknown type",
			entity: &schema.Entity{Name: "A", Table: "A", Columns: []*schema.Column{
				{Name: "ID", Type: "MONEY", PrimaryKey: true},
			}},
			message: `unknown type "MONEY"`,
		},
		{
			name: "dangling relationship",
			entity: &schema.Entity{Name: "A", Table: "A",
				Columns:       []*schema.Column{{Name: "ID", Type: schema.Integer, PrimaryKey: true}},
				Relationships: []*schema.Relationship{{Name: "b", Target: "B", Joins: []schema.Join{{Source: "ID", Target: "ID"}}}},
			},
			message: `targets unknown entity "B"`,
		},
		{
			name: "nullable key",
			entity: &schema.Entity{Name: "A", Table: "A", Columns: []*schema.Column{
				{Name: "ID", Type: schema.Integer, PrimaryKey: true, Nullable: true},
			}},
			message: "primary key column cannot be nullable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.NewBuilder().Add(tt.entity).Build()
			require.Error(t, err)
			var res *schema.ValidationResult
			require.ErrorAs(t, err, &res)
			assert.True(t, res.HasErrors())
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	t.Run("duplicate entity", func(t *testing.T) {
		e := &schema.Entity{Name: "A", Table: "A", Columns: []*schema.Column{{Name: "ID", Type: schema.Integer, PrimaryKey: true}}}
		_, err := schema.NewBuilder().Add(e, e).Build()
		assert.EqualError(t, err, `schema: duplicate entity "A"`)
	})
}

func TestLoad(t *testing.T) {
	const doc = `
quoteIdentifiers: true
entities:
  - name: PaintingInfo
    columns:
      - {name: PAINTING_ID, type: bigint, primaryKey: true}
      - {property: textReview, type: CLOB, nullable: true}
      - {property: appraisal, type: DECIMAL, precision: 12}
    relationships:
      - name: painting
        target: PaintingInfo
        joins: [{source: PAINTING_ID, target: PAINTING_ID}]
`
	reg, err := schema.Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.True(t, reg.QuoteIdentifiers())

	e := reg.MustEntity("PaintingInfo")
	assert.Equal(t, "PAINTING_INFO", e.Table)

	review, ok := e.ColumnForProperty("textReview")
	require.True(t, ok)
	assert.Equal(t, "TEXT_REVIEW", review.Name)
	assert.Equal(t, schema.Clob, review.Type)
	assert.Equal(t, schema.Unspecified, review.Precision)

	appraisal, ok := e.Column("APPRAISAL")
	require.True(t, ok)
	assert.Equal(t, 12, appraisal.Precision)
	assert.Equal(t, schema.Unspecified, appraisal.Scale)

	t.Run("unknown field", func(t *testing.T) {
		_, err := schema.Load(strings.NewReader("entities:\n  - name: A\n    colums: []\n"))
		assert.Error(t, err)
	})
}

func TestTypes(t *testing.T) {
	typ, err := schema.ParseType(" varchar ")
	require.NoError(t, err)
	assert.Equal(t, schema.VarChar, typ)
	assert.True(t, typ.Sized())
	assert.True(t, schema.NClob.IsLOB())
	assert.True(t, schema.NVarChar.IsUnicode())
	assert.True(t, schema.Numeric.IsDecimal())
	assert.False(t, schema.Date.IsNumeric())
	_, err = schema.ParseType("money")
	assert.Error(t, err)
	assert.Equal(t, "DATE_OF_BIRTH", schema.DefaultName("dateOfBirth"))
}
