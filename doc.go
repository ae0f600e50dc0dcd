// Package strata holds the error types and the statement cache shared by the
// packages of the strata object-relational mapping core.
//
// The core is split by concern:
//
//   - schema: entity descriptors and their YAML loader
//   - exp: qualifier expressions over object paths
//   - dialect: per-database adapters
//   - sqlast and translator: qualifiers and logical queries to SQL
//   - pkgen: primary key generation
//   - graph: object ids, diff lists and change tracking
//   - commit: ordered, batched execution of diff lists
//   - privacy: commit policies
//   - dialect/sql: the database/sql bridge with logging and statistics
//
// Errors returned across package boundaries match the sentinels of this
// package with errors.Is:
//
//	if errors.Is(err, strata.ErrOptimisticLock) {
//		// refetch and retry
//	}
package strata
