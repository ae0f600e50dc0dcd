package schema

import (
	"fmt"
	"io"
	"os"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// document is the YAML layout of a schema file.
type document struct {
	QuoteIdentifiers bool        `yaml:"quoteIdentifiers"`
	Entities         []entityDoc `yaml:"entities"`
}

type entityDoc struct {
	Entity  `yaml:",inline"`
	Columns []columnDoc `yaml:"columns"`
}

// columnDoc distinguishes an absent precision or scale from zero.
type columnDoc struct {
	Column    `yaml:",inline"`
	Precision *int `yaml:"precision"`
	Scale     *int `yaml:"scale"`
}

var upper = cases.Upper(language.Und)

// DefaultName derives a database name from a Go-style name:
// "paintingTitle" becomes "PAINTING_TITLE".
func DefaultName(name string) string {
	return upper.String(inflect.Underscore(name))
}

// LoadFile reads a YAML schema from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a YAML schema. Missing table and column names are derived from
// entity and property names.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	b := NewBuilder().QuoteIdentifiers(doc.QuoteIdentifiers)
	for _, ed := range doc.Entities {
		e := ed.Entity
		if e.Table == "" {
			e.Table = DefaultName(e.Name)
		}
		e.Columns = make([]*Column, 0, len(ed.Columns))
		for _, cd := range ed.Columns {
			c := cd.Column
			if c.Name == "" && c.Property != "" {
				c.Name = DefaultName(c.Property)
			}
			c.Precision, c.Scale = Unspecified, Unspecified
			if cd.Precision != nil {
				c.Precision = *cd.Precision
			}
			if cd.Scale != nil {
				c.Scale = *cd.Scale
			}
			if c.Type != "" {
				t, err := ParseType(string(c.Type))
				if err != nil {
					return nil, fmt.Errorf("schema: entity %s column %s: %w", e.Name, c.Name, err)
				}
				c.Type = t
			}
			e.Columns = append(e.Columns, &c)
		}
		b.Add(&e)
	}
	return b.Build()
}
