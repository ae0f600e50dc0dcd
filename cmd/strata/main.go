// Command strata renders and applies the SQL of strata schemas.
//
// The CLI supports:
//   - ddl: Render CREATE or DROP DDL for a schema, optionally applying it
//   - select: Render the SELECT of an entity with equality filters
//   - dialects: List the registered adapters and their capabilities
//   - config show: Print the effective configuration
//
// Usage:
//
//	strata [flags] <command>
//
// Configuration is read from strata.yaml, discovered upwards from the
// working directory, and STRATA_* environment variables.
package main

func main() {
	Execute()
}
