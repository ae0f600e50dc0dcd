// Package schema provides the entity descriptors the translator and the
// commit pipeline resolve names against.
//
// An Entity maps a logical entity name onto a table, its columns and its
// relationships to other entities. Entities are collected by a Builder into
// a Registry, which is validated once and is read-only afterwards:
//
//	reg, err := schema.NewBuilder().
//	    Add(&schema.Entity{
//	        Name:  "Artist",
//	        Table: "ARTIST",
//	        Columns: []*schema.Column{
//	            {Name: "ARTIST_ID", Type: schema.BigInt, PrimaryKey: true},
//	            {Name: "ARTIST_NAME", Property: "artistName", Type: schema.VarChar, Length: 254},
//	        },
//	    }).
//	    Build()
//
// # YAML
//
// Registries can be loaded from YAML documents:
//
//	quoteIdentifiers: false
//	entities:
//	  - name: Artist
//	    columns:
//	      - {property: artistName, type: VARCHAR, length: 254}
//
// Missing table and column names are derived from the entity and property
// names ("artistName" maps to ARTIST_NAME). Omitted precision and scale are
// Unspecified and fall back to the dialect default.
//
// # Quoting
//
// QuoteIdentifiers is a property of the whole schema, not of a statement:
// DDL and DML generated for the same entity are quoted consistently.
package schema
