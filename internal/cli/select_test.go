package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/internal/fixture"
	"github.com/syssam/strata/translator"
)

func TestParseFilters(t *testing.T) {
	reg := fixture.Registry()
	tests := []struct {
		name    string
		entity  string
		filters []string
		want    string
		wantErr int
	}{
		{name: "none", entity: "Artist"},
		{name: "property", entity: "Artist", filters: []string{"artistName=Monet"}, want: `artistName = "Monet"`},
		{name: "integer column", entity: "Painting", filters: []string{"db:ARTIST_ID=7"}, want: "db:ARTIST_ID = 7"},
		{name: "null", entity: "Artist", filters: []string{"dateOfBirth=NULL"}, want: "dateOfBirth = null"},
		{name: "value with equals", entity: "Artist", filters: []string{"artistName=a=b"}, want: `artistName = "a=b"`},
		{name: "conjunction", entity: "Painting", filters: []string{"paintingTitle=Irises", "db:GALLERY_ID=2"}, want: `(paintingTitle = "Irises") and (db:GALLERY_ID = 2)`},
		{name: "missing value", entity: "Artist", filters: []string{"artistName"}, wantErr: ExitGeneral},
		{name: "unknown property", entity: "Artist", filters: []string{"age=3"}, wantErr: ExitSchema},
		{name: "bad integer", entity: "Painting", filters: []string{"db:ARTIST_ID=x"}, wantErr: ExitGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseFilters(reg.MustEntity(tt.entity), tt.filters)
			if tt.wantErr != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, ExitCode(err))
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, e)
				return
			}
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Dialect: "sqlite"}
	a, err := cfg.Adapter()
	require.NoError(t, err)
	tr := translator.New(a, fixture.Registry())

	stmt, err := Select(ctx, tr, "Artist", []string{"artistName=Monet"}, 5)
	require.NoError(t, err)
	assert.Equal(t, "SELECT t0.ARTIST_ID, t0.ARTIST_NAME, t0.DATE_OF_BIRTH FROM ARTIST t0 WHERE t0.ARTIST_NAME = ? LIMIT 5", stmt.SQL)

	var buf bytes.Buffer
	require.NoError(t, WriteStatement(&buf, stmt))
	assert.Equal(t, stmt.SQL+"\n-- 1: Monet (VARCHAR)\n", buf.String())

	_, err = Select(ctx, tr, "Sculpture", nil, 0)
	assert.Equal(t, ExitSchema, ExitCode(err))
}
