package strata

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for the translation and commit paths.
var (
	// ErrTranslation is matched by every TranslationError.
	ErrTranslation = errors.New("strata: translation failed")

	// ErrKeyGeneration is matched by every KeyGenerationError.
	ErrKeyGeneration = errors.New("strata: primary key generation failed")

	// ErrOptimisticLock is matched by every OptimisticLockError.
	ErrOptimisticLock = errors.New("strata: optimistic lock failure")

	// ErrNotFound is returned when an entity, column or relationship does not exist.
	ErrNotFound = errors.New("strata: not found")
)

// TranslationError is returned when a query, batch or expression cannot be
// translated into SQL. Translation errors are never retried.
type TranslationError struct {
	Entity  string // Root entity of the translated query, if known.
	Segment string // Offending path segment, if any.
	Msg     string
	Err     error
}

// Error returns the error string.
func (e *TranslationError) Error() string {
	var sb strings.Builder
	sb.WriteString("strata: translate")
	if e.Entity != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Entity)
	}
	if e.Segment != "" {
		fmt.Fprintf(&sb, " (segment %q)", e.Segment)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *TranslationError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrTranslation.
func (e *TranslationError) Is(err error) bool {
	return err == ErrTranslation
}

// NewTranslationError returns a new TranslationError.
func NewTranslationError(msg string, args ...any) *TranslationError {
	return &TranslationError{Msg: fmt.Sprintf(msg, args...)}
}

// NewPathError returns a TranslationError identifying the unresolvable segment.
func NewPathError(entity, segment, msg string) *TranslationError {
	return &TranslationError{Entity: entity, Segment: segment, Msg: msg}
}

// IsTranslationError returns true if the error is a TranslationError.
func IsTranslationError(err error) bool {
	if err == nil {
		return false
	}
	var e *TranslationError
	return errors.As(err, &e)
}

// KeyGenerationError is returned when no new primary key value could be
// obtained. The pending commit must be aborted.
type KeyGenerationError struct {
	Entity string
	Err    error
}

// Error returns the error string.
func (e *KeyGenerationError) Error() string {
	return fmt.Sprintf("strata: generate primary key for %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyGenerationError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrKeyGeneration.
func (e *KeyGenerationError) Is(err error) bool {
	return err == ErrKeyGeneration
}

// NewKeyGenerationError returns a new KeyGenerationError.
func NewKeyGenerationError(entity string, err error) *KeyGenerationError {
	return &KeyGenerationError{Entity: entity, Err: err}
}

// IsKeyGenerationError returns true if the error is a KeyGenerationError.
func IsKeyGenerationError(err error) bool {
	if err == nil {
		return false
	}
	var e *KeyGenerationError
	return errors.As(err, &e)
}

// ExecutionError wraps a driver failure with the statement and the bindings
// that were sent with it.
type ExecutionError struct {
	SQL  string
	Args []any
	Err  error
}

// Error returns the error string.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("strata: execute %q %v: %v", e.SQL, e.Args, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError returns a new ExecutionError.
func NewExecutionError(sql string, args []any, err error) *ExecutionError {
	return &ExecutionError{SQL: sql, Args: args, Err: err}
}

// IsExecutionError returns true if the error is an ExecutionError.
func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecutionError
	return errors.As(err, &e)
}

// OptimisticLockError is returned when an UPDATE or DELETE qualified by lock
// columns did not match exactly one row.
type OptimisticLockError struct {
	Entity   string
	ID       string
	SQL      string
	Affected int64
}

// Error returns the error string.
func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("strata: optimistic lock failure for %s %s (%d rows affected): %s", e.Entity, e.ID, e.Affected, e.SQL)
}

// Is reports whether the target error matches ErrOptimisticLock.
func (e *OptimisticLockError) Is(err error) bool {
	return err == ErrOptimisticLock
}

// IsOptimisticLockError returns true if the error is an OptimisticLockError.
func IsOptimisticLockError(err error) bool {
	if err == nil {
		return false
	}
	var e *OptimisticLockError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("strata: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "strata: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("strata: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
