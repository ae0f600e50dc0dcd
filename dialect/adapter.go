package dialect

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/strata/exp"
	"github.com/syssam/strata/schema"
)

// Capabilities is the set of optional features an adapter supports.
type Capabilities struct {
	// BatchUpdates reports that one prepared statement may be executed for
	// many rows of a homogeneous batch.
	BatchUpdates bool
	// GeneratedKeys reports that the driver returns identity values through
	// sql.Result.LastInsertId.
	GeneratedKeys bool
	// Returning reports support for INSERT ... RETURNING.
	Returning bool
	// Sequences reports native sequence (generator) support.
	Sequences bool
	// IdentityColumns reports auto-increment column support.
	IdentityColumns bool
	// BooleanLiterals reports a native boolean type. Without it booleans are
	// bound as 1 and 0.
	BooleanLiterals bool
	// InlineConstraints reports that unique and foreign key constraints must
	// be declared inside CREATE TABLE.
	InlineConstraints bool
	// MaxInList is the largest accepted IN list, 0 when unlimited.
	MaxInList int
}

// SequenceSyntax renders the statements of sequence-backed key generation.
type SequenceSyntax interface {
	// NextValue returns a query selecting the next value of the sequence.
	NextValue(name string) string
	// Create returns the DDL creating the sequence.
	Create(name string, start, increment int) string
	// Drop returns the DDL dropping the sequence.
	Drop(name string) string
	// List returns a query selecting the names of existing sequences.
	List() string
}

// Adapter is the per-database strategy hiding dialect differences from the
// translators and the commit pipeline. Adapters hold no per-query state and
// are safe for concurrent use.
type Adapter interface {
	// Name returns the dialect name.
	Name() string
	// QuoteIdentifier quotes a possibly schema-qualified identifier. Quoting
	// an already quoted identifier returns it unchanged.
	QuoteIdentifier(string) string
	// TypeNames returns the native type names of a logical type, preferred
	// name first.
	TypeNames(schema.Type) []string
	// ColumnType returns the DDL type of a column including size, precision
	// and character set.
	ColumnType(*schema.Column) (string, error)
	// Placeholder returns the placeholder of the n-th (1-based) parameter.
	Placeholder(n int) string
	// Capabilities returns the feature set of the dialect.
	Capabilities() Capabilities
	// PKStrategy returns the default key generation strategy.
	PKStrategy() schema.PKGeneration
	// Sequences returns the sequence syntax, or nil.
	Sequences() SequenceSyntax
	// LimitClause returns the paging clause appended to a SELECT. A negative
	// limit or offset is absent.
	LimitClause(limit, offset int) string
	// Rewriter returns the qualifier rewrite applied before translation, or nil.
	Rewriter() exp.Rewriter
	// BindValue converts a value before it is bound to a column placeholder.
	BindValue(*schema.Column, any) any
	// IdentityClause returns the column DDL suffix of identity columns.
	IdentityClause() string
	// IdentitySelect returns the query reading the last generated identity
	// when the driver does not report it through LastInsertId.
	IdentitySelect() string
	// RowLock returns the clause appended to a SELECT to lock the selected
	// rows until the end of the transaction, or "".
	RowLock() string
}

// Config composes an adapter. Zero fields fall back to ANSI defaults.
type Config struct {
	Name string
	// OpenQuote and CloseQuote delimit quoted identifiers.
	OpenQuote, CloseQuote string
	// Quote overrides identifier quoting of a single name part.
	Quote func(string) string
	// Placeholder overrides the "?" placeholder.
	Placeholder func(n int) string
	// Types maps logical types to native type names. Missing types fall
	// back to the logical type name.
	Types map[schema.Type][]string
	// Unbounded maps sized types to the type used when no length is given.
	Unbounded map[schema.Type]string
	// UnicodeCharset is appended as CHARACTER SET to unicode columns.
	UnicodeCharset string
	Capabilities   Capabilities
	PKStrategy     schema.PKGeneration
	Sequences      SequenceSyntax
	Limit          func(limit, offset int) string
	Identity       string
	IdentitySelect string
	RowLock        string
	Rewriter       exp.Rewriter
}

// New returns an adapter built from the given configuration.
func New(c Config) Adapter {
	if c.OpenQuote == "" {
		c.OpenQuote, c.CloseQuote = `"`, `"`
	}
	if c.CloseQuote == "" {
		c.CloseQuote = c.OpenQuote
	}
	if c.Limit == nil {
		c.Limit = FetchFirst
	}
	if c.PKStrategy == schema.PKDefault {
		c.PKStrategy = schema.PKLookup
	}
	if c.Rewriter == nil && c.Capabilities.MaxInList > 0 {
		c.Rewriter = exp.SplitIn(c.Capabilities.MaxInList)
	}
	return &adapter{c: c}
}

type adapter struct {
	c Config
}

var _ Adapter = (*adapter)(nil)

func (a *adapter) Name() string { return a.c.Name }

func (a *adapter) QuoteIdentifier(name string) string {
	if name == "" {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = a.quotePart(p)
	}
	return strings.Join(parts, ".")
}

func (a *adapter) quotePart(p string) string {
	if len(p) >= len(a.c.OpenQuote)+len(a.c.CloseQuote) &&
		strings.HasPrefix(p, a.c.OpenQuote) && strings.HasSuffix(p, a.c.CloseQuote) {
		return p
	}
	if a.c.Quote != nil {
		return a.c.Quote(p)
	}
	return a.c.OpenQuote + strings.ReplaceAll(p, a.c.CloseQuote, a.c.CloseQuote+a.c.CloseQuote) + a.c.CloseQuote
}

func (a *adapter) TypeNames(t schema.Type) []string {
	if names, ok := a.c.Types[t]; ok {
		return slices.Clone(names)
	}
	return []string{string(t)}
}

func (a *adapter) ColumnType(c *schema.Column) (string, error) {
	names := a.TypeNames(c.Type)
	if len(names) == 0 || c.Type == "" {
		return "", fmt.Errorf("dialect/%s: no native type for column %s (%q)", a.c.Name, c.Name, c.Type)
	}
	var sb strings.Builder
	switch {
	case c.Type.Sized() && c.Length <= 0:
		if u, ok := a.c.Unbounded[c.Type]; ok {
			sb.WriteString(u)
		} else {
			sb.WriteString(names[0])
		}
	case c.Type.Sized():
		sb.WriteString(names[0])
		sb.WriteString("(")
		sb.WriteString(strconv.Itoa(c.Length))
		sb.WriteString(")")
	case c.Type.IsDecimal() && c.Precision > 0:
		sb.WriteString(names[0])
		sb.WriteString("(")
		sb.WriteString(strconv.Itoa(c.Precision))
		if c.Scale >= 0 && c.Scale <= c.Precision {
			sb.WriteString(", ")
			sb.WriteString(strconv.Itoa(c.Scale))
		}
		sb.WriteString(")")
	default:
		sb.WriteString(names[0])
	}
	switch {
	case c.Charset != "":
		sb.WriteString(" CHARACTER SET ")
		sb.WriteString(c.Charset)
	case c.Type.IsUnicode() && a.c.UnicodeCharset != "":
		sb.WriteString(" CHARACTER SET ")
		sb.WriteString(a.c.UnicodeCharset)
	}
	return sb.String(), nil
}

func (a *adapter) Placeholder(n int) string {
	if a.c.Placeholder != nil {
		return a.c.Placeholder(n)
	}
	return "?"
}

func (a *adapter) Capabilities() Capabilities { return a.c.Capabilities }

func (a *adapter) PKStrategy() schema.PKGeneration { return a.c.PKStrategy }

func (a *adapter) Sequences() SequenceSyntax { return a.c.Sequences }

func (a *adapter) LimitClause(limit, offset int) string {
	if limit < 0 && offset <= 0 {
		return ""
	}
	return a.c.Limit(limit, offset)
}

func (a *adapter) Rewriter() exp.Rewriter { return a.c.Rewriter }

func (a *adapter) BindValue(_ *schema.Column, v any) any {
	if b, ok := v.(bool); ok && !a.c.Capabilities.BooleanLiterals {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func (a *adapter) IdentityClause() string { return a.c.Identity }

func (a *adapter) IdentitySelect() string { return a.c.IdentitySelect }

func (a *adapter) RowLock() string { return a.c.RowLock }

// LimitOffset renders "LIMIT n OFFSET m". noLimit is the value used when
// only an offset is given.
func LimitOffset(noLimit string) func(limit, offset int) string {
	return func(limit, offset int) string {
		l := noLimit
		if limit >= 0 {
			l = strconv.Itoa(limit)
		}
		if offset > 0 {
			return "LIMIT " + l + " OFFSET " + strconv.Itoa(offset)
		}
		return "LIMIT " + l
	}
}

// FetchFirst renders the SQL:2008 "OFFSET m ROWS FETCH NEXT n ROWS ONLY".
func FetchFirst(limit, offset int) string {
	var parts []string
	if offset > 0 {
		parts = append(parts, "OFFSET "+strconv.Itoa(offset)+" ROWS")
	}
	if limit >= 0 {
		parts = append(parts, "FETCH NEXT "+strconv.Itoa(limit)+" ROWS ONLY")
	}
	return strings.Join(parts, " ")
}

// sequences renders sequence statements from format strings. The next and
// drop formats take the sequence name, the create format takes the name, the
// start value and the increment.
type sequences struct {
	next, create, drop, list string
}

func (s sequences) NextValue(name string) string { return fmt.Sprintf(s.next, name) }

func (s sequences) Create(name string, start, increment int) string {
	return fmt.Sprintf(s.create, name, start, increment)
}

func (s sequences) Drop(name string) string { return fmt.Sprintf(s.drop, name) }

func (s sequences) List() string { return s.list }

// KeyStrategy returns the key generation strategy of an entity: its own
// override, else the adapter default.
func KeyStrategy(a Adapter, e *schema.Entity) schema.PKGeneration {
	if e.PKGeneration != schema.PKDefault {
		return e.PKGeneration
	}
	return a.PKStrategy()
}
