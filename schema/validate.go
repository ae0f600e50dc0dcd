package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Entity  string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Entity, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Error implements the error interface so a failed result can be returned directly.
func (r *ValidationResult) Error() string {
	return "schema: invalid registry:\n" + r.String()
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) errorf(entity, column, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Entity: entity, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(entity, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Entity: entity, Column: column, Message: fmt.Sprintf(format, args...)})
}

// validate checks the entities as a whole: names, keys and relationship targets.
func validate(entities map[string]*Entity) *ValidationResult {
	r := &ValidationResult{}
	tables := make(map[string]string)
	for _, name := range sortedKeys(entities) {
		e := entities[name]
		if e.Table == "" {
			r.errorf(e.Name, "", "missing table name")
		} else if other, ok := tables[e.QualifiedTable()]; ok {
			r.warnf(e.Name, "", "table %s is also mapped by %s", e.QualifiedTable(), other)
		} else {
			tables[e.QualifiedTable()] = e.Name
		}
		seen := make(map[string]struct{}, len(e.Columns))
		for _, c := range e.Columns {
			if c.Name == "" {
				r.errorf(e.Name, "", "column without a name")
				continue
			}
			if _, ok := seen[c.Name]; ok {
				r.errorf(e.Name, c.Name, "duplicate column")
			}
			seen[c.Name] = struct{}{}
			if _, ok := knownTypes[c.Type]; !ok {
				r.errorf(e.Name, c.Name, "unknown type %q", c.Type)
			}
			if c.PrimaryKey && c.Nullable {
				r.errorf(e.Name, c.Name, "primary key column cannot be nullable")
			}
		}
		if len(e.PrimaryKey()) == 0 {
			r.errorf(e.Name, "", "no primary key columns")
		}
		if e.LockType == LockOptimistic && len(e.LockColumns()) == 0 {
			r.warnf(e.Name, "", "optimistic locking without lock columns")
		}
		for _, u := range e.Unique {
			for _, col := range u {
				if _, ok := e.Column(col); !ok {
					r.errorf(e.Name, col, "unique constraint references unknown column")
				}
			}
		}
		for _, rel := range e.Relationships {
			target, ok := entities[rel.Target]
			if !ok {
				r.errorf(e.Name, "", "relationship %s targets unknown entity %q", rel.Name, rel.Target)
				continue
			}
			if len(rel.Joins) == 0 {
				r.errorf(e.Name, "", "relationship %s has no joins", rel.Name)
			}
			for _, j := range rel.Joins {
				if _, ok := e.Column(j.Source); !ok {
					r.errorf(e.Name, j.Source, "relationship %s joins unknown source column", rel.Name)
				}
				if _, ok := target.Column(j.Target); !ok {
					r.errorf(target.Name, j.Target, "relationship %s.%s joins unknown target column", e.Name, rel.Name)
				}
			}
		}
	}
	return r
}
