// Package fixture holds the sample schema shared by package tests.
package fixture

import "github.com/syssam/strata/schema"

// Entities returns fresh descriptors of the sample schema:
// Artist 1-* Painting *-1 Gallery, and the optimistic-locking LockingTest.
func Entities() []*schema.Entity {
	return []*schema.Entity{
		{
			Name:  "Artist",
			Table: "ARTIST",
			Columns: []*schema.Column{
				{Name: "ARTIST_ID", Type: schema.BigInt, PrimaryKey: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
				{Name: "ARTIST_NAME", Property: "artistName", Type: schema.VarChar, Length: 254, Precision: schema.Unspecified, Scale: schema.Unspecified},
				{Name: "DATE_OF_BIRTH", Property: "dateOfBirth", Type: schema.Date, Nullable: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
			},
			Relationships: []*schema.Relationship{
				{Name: "paintings", Target: "Painting", ToMany: true, Joins: []schema.Join{{Source: "ARTIST_ID", Target: "ARTIST_ID"}}},
			},
		},
		{
			Name:  "Painting",
			Table: "PAINTING",
			Columns: []*schema.Column{
				{Name: "PAINTING_ID", Type: schema.BigInt, PrimaryKey: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
				{Name: "PAINTING_TITLE", Property: "paintingTitle", Type: schema.VarChar, Length: 255, Precision: schema.Unspecified, Scale: schema.Unspecified},
				{Name: "ESTIMATED_PRICE", Property: "estimatedPrice", Type: schema.Decimal, Nullable: true, Precision: 10, Scale: 2},
				{Name: "ARTIST_ID", Type: schema.BigInt, Nullable: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
				{Name: "GALLERY_ID", Type: schema.BigInt, Nullable: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
			},
			Relationships: []*schema.Relationship{
				{Name: "toArtist", Target: "Artist", Joins: []schema.Join{{Source: "ARTIST_ID", Target: "ARTIST_ID"}}, OnDelete: schema.Cascade},
				{Name: "toGallery", Target: "Gallery", Joins: []schema.Join{{Source: "GALLERY_ID", Target: "GALLERY_ID"}}},
			},
		},
		{
			Name:  "Gallery",
			Table: "GALLERY",
			Columns: []*schema.Column{
				{Name: "GALLERY_ID", Type: schema.BigInt, PrimaryKey: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
				{Name: "GALLERY_NAME", Property: "galleryName", Type: schema.NVarChar, Length: 100, Precision: schema.Unspecified, Scale: schema.Unspecified},
			},
			Relationships: []*schema.Relationship{
				{Name: "paintings", Target: "Painting", ToMany: true, Joins: []schema.Join{{Source: "GALLERY_ID", Target: "GALLERY_ID"}}},
			},
			Unique: [][]string{{"GALLERY_NAME"}},
		},
		{
			Name:     "LockingTest",
			Table:    "LOCKING_TEST",
			LockType: schema.LockOptimistic,
			Columns: []*schema.Column{
				{Name: "LOCKING_TEST_ID", Type: schema.Integer, PrimaryKey: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
				{Name: "NAME", Property: "name", Type: schema.VarChar, Length: 100, Nullable: true, UsedForLocking: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
				{Name: "DESCRIPTION", Property: "description", Type: schema.VarChar, Length: 200, Nullable: true, Precision: schema.Unspecified, Scale: schema.Unspecified},
			},
		},
	}
}

// Registry returns the sample schema with quoting disabled.
func Registry() *schema.Registry {
	return schema.NewBuilder().Add(Entities()...).MustBuild()
}

// QuotedRegistry returns the sample schema with quoting enabled.
func QuotedRegistry() *schema.Registry {
	return schema.NewBuilder().QuoteIdentifiers(true).Add(Entities()...).MustBuild()
}
