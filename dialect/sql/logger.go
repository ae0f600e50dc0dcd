package sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/strata/sqlast"
)

// QueryLogger logs rendered statements and their ordered bindings through
// slog. OUT parameters are never logged. A nil *QueryLogger logs nothing.
type QueryLogger struct {
	log   *slog.Logger
	level slog.Level
	// maxValue truncates long string values; 0 keeps them whole.
	maxValue int
}

// LoggerOption configures a QueryLogger.
type LoggerOption func(*QueryLogger)

// WithLevel sets the level statements are logged at. Default is debug.
func WithLevel(l slog.Level) LoggerOption {
	return func(q *QueryLogger) {
		q.level = l
	}
}

// WithMaxValueLength truncates logged string values longer than n bytes.
func WithMaxValueLength(n int) LoggerOption {
	return func(q *QueryLogger) {
		q.maxValue = n
	}
}

// NewQueryLogger returns a statement logger writing to l, or to the default
// logger when l is nil.
func NewQueryLogger(l *slog.Logger, opts ...LoggerOption) *QueryLogger {
	if l == nil {
		l = slog.Default()
	}
	q := &QueryLogger{log: l, level: slog.LevelDebug}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// LogStatement logs one statement with its bindings.
func (q *QueryLogger) LogStatement(ctx context.Context, sql string, bindings []sqlast.Binding) {
	if !q.enabled(ctx) {
		return
	}
	q.log.Log(ctx, q.level, "statement", "sql", sql, "bindings", q.format(bindings))
}

// LogBatch logs a batch template with the bindings of its first row and the
// total row count.
func (q *QueryLogger) LogBatch(ctx context.Context, sql string, first []sqlast.Binding, rows int) {
	if !q.enabled(ctx) {
		return
	}
	q.log.Log(ctx, q.level, "batch", "sql", sql, "bindings", q.format(first), "rows", rows)
}

// LogUpdateCount logs the rows affected by a statement.
func (q *QueryLogger) LogUpdateCount(ctx context.Context, count int64) {
	if !q.enabled(ctx) {
		return
	}
	q.log.Log(ctx, q.level, "updated", "count", count)
}

// LogGeneratedKey logs a key produced by the database or the key generator.
func (q *QueryLogger) LogGeneratedKey(ctx context.Context, entity string, key any) {
	if !q.enabled(ctx) {
		return
	}
	q.log.Log(ctx, q.level, "generated key", "entity", entity, "key", key)
}

func (q *QueryLogger) enabled(ctx context.Context) bool {
	return q != nil && q.log.Enabled(ctx, q.level)
}

// format renders bindings as "[1->ARTIST_NAME:'Picasso', 2->33]".
func (q *QueryLogger) format(bindings []sqlast.Binding) string {
	var sb strings.Builder
	sb.WriteByte('[')
	n := 0
	for _, b := range bindings {
		if b.Direction == sqlast.Out {
			continue
		}
		if n > 0 {
			sb.WriteString(", ")
		}
		n++
		fmt.Fprintf(&sb, "%d->", n)
		if b.Key != "" {
			name := b.Key
			if _, col, ok := strings.Cut(b.Key, ":"); ok {
				name = col
			}
			sb.WriteString(name)
			sb.WriteByte(':')
		}
		switch v := b.Value.(type) {
		case nil:
			sb.WriteString("NULL")
		case string:
			if q.maxValue > 0 && len(v) > q.maxValue {
				v = v[:q.maxValue] + "..."
			}
			sb.WriteString("'" + v + "'")
		case []byte:
			fmt.Fprintf(&sb, "<%d bytes>", len(v))
		default:
			fmt.Fprint(&sb, v)
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
