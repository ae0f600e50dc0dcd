package translator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/schema"
)

// CreateTable returns the CREATE TABLE statement of an entity. On adapters
// with inline constraints, unique and foreign key constraints are part of it.
func (t *Translator) CreateTable(e *schema.Entity) (string, error) {
	if len(e.Columns) == 0 {
		return "", strata.NewPathError(e.Name, "", "entity has no columns")
	}
	identity := dialect.KeyStrategy(t.adapter, e) == schema.PKIdentity && len(e.PrimaryKey()) == 1
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(t.quote(e.QualifiedTable()))
	sb.WriteString(" (")
	for i, c := range e.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		typ, err := t.adapter.ColumnType(c)
		if err != nil {
			return "", strata.NewPathError(e.Name, c.Name, err.Error())
		}
		sb.WriteString(t.quote(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if c.Nullable {
			sb.WriteString(" NULL")
		} else {
			sb.WriteString(" NOT NULL")
		}
		if clause := t.adapter.IdentityClause(); clause != "" && c.PrimaryKey && (identity || c.Generated) && c.Type.IsNumeric() {
			sb.WriteByte(' ')
			sb.WriteString(clause)
		}
	}
	if pk := e.PrimaryKey(); len(pk) > 0 {
		sb.WriteString(", PRIMARY KEY (")
		sb.WriteString(t.columnList(pk))
		sb.WriteString(")")
	}
	if t.adapter.Capabilities().InlineConstraints {
		for _, u := range e.Unique {
			sb.WriteString(", UNIQUE (")
			sb.WriteString(t.nameList(u))
			sb.WriteString(")")
		}
		for _, r := range t.foreignKeys(e) {
			sb.WriteString(", ")
			sb.WriteString(t.references(r))
		}
	}
	sb.WriteString(")")
	return sb.String(), nil
}

// DropTable returns the DROP TABLE statement of an entity.
func (t *Translator) DropTable(e *schema.Entity) string {
	return "DROP TABLE " + t.quote(e.QualifiedTable())
}

// UniqueConstraints returns the ALTER TABLE statements adding the unique
// constraints of an entity.
func (t *Translator) UniqueConstraints(e *schema.Entity) []string {
	if t.adapter.Capabilities().InlineConstraints {
		return nil
	}
	stmts := make([]string, 0, len(e.Unique))
	for _, u := range e.Unique {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD UNIQUE (%s)", t.quote(e.QualifiedTable()), t.nameList(u)))
	}
	return stmts
}

// ForeignKeys returns the ALTER TABLE statements adding the foreign keys
// owned by an entity: one per to-one relationship targeting a primary key.
func (t *Translator) ForeignKeys(e *schema.Entity) []string {
	if t.adapter.Capabilities().InlineConstraints {
		return nil
	}
	var stmts []string
	for _, r := range t.foreignKeys(e) {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s", t.quote(e.QualifiedTable()), t.references(r)))
	}
	return stmts
}

// SchemaStatements returns the DDL creating every entity of the registry:
// tables first, then unique constraints, then foreign keys.
func (t *Translator) SchemaStatements() ([]string, error) {
	var tables, uniques, fks []string
	for _, e := range t.registry.Entities() {
		stmt, err := t.CreateTable(e)
		if err != nil {
			return nil, err
		}
		tables = append(tables, stmt)
		uniques = append(uniques, t.UniqueConstraints(e)...)
		fks = append(fks, t.ForeignKeys(e)...)
	}
	return slices.Concat(tables, uniques, fks), nil
}

// DropStatements returns the DDL dropping every table, in reverse name order.
func (t *Translator) DropStatements() []string {
	entities := t.registry.Entities()
	stmts := make([]string, 0, len(entities))
	for i := len(entities) - 1; i >= 0; i-- {
		stmts = append(stmts, t.DropTable(entities[i]))
	}
	return stmts
}

func (t *Translator) foreignKeys(e *schema.Entity) []*schema.Relationship {
	var rels []*schema.Relationship
	for _, r := range e.Relationships {
		if r.ToDependentPK(t.registry) {
			rels = append(rels, r)
		}
	}
	return rels
}

func (t *Translator) references(r *schema.Relationship) string {
	target := t.registry.MustEntity(r.Target)
	src := make([]string, len(r.Joins))
	dst := make([]string, len(r.Joins))
	for i, j := range r.Joins {
		src[i], dst[i] = t.quote(j.Source), t.quote(j.Target)
	}
	s := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		strings.Join(src, ", "), t.quote(target.QualifiedTable()), strings.Join(dst, ", "))
	if r.OnDelete != "" {
		s += " ON DELETE " + string(r.OnDelete)
	}
	return s
}

func (t *Translator) columnList(cols []*schema.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return t.nameList(names)
}

func (t *Translator) nameList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = t.quote(n)
	}
	return strings.Join(quoted, ", ")
}
