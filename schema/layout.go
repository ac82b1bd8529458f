package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// ColumnType enumerates the relational column types spec §3.1 allows.
type ColumnType int

const (
	ColBoolean ColumnType = iota
	ColInt
	ColBigDecimal
	ColBigInt
	ColBytes
	ColString
	ColEnum
	ColBytesID
)

func (t ColumnType) String() string {
	switch t {
	case ColBoolean:
		return "boolean"
	case ColInt:
		return "integer"
	case ColBigDecimal:
		return "numeric"
	case ColBigInt:
		return "numeric"
	case ColBytes:
		return "bytea"
	case ColString:
		return "text"
	case ColEnum:
		return "enum"
	case ColBytesID:
		return "bytea"
	default:
		return "unknown"
	}
}

// Column is one relational column (spec §3.1).
type Column struct {
	Name     string
	Type     ColumnType
	EnumName string // set iff Type == ColEnum
	List     bool
	Nullable bool
}

// identifierRE guards snake-case table/column identifiers against SQL
// injection by construction (spec §3.1: "identifiers are validated to
// defend against injection").
var identifierRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ToSnakeCase converts a PascalCase/camelCase GraphQL name into the
// snake_case identifier the relational layer uses.
func ToSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Table is the storage image of one @entity object type.
type Table struct {
	ObjectName string // original GraphQL type name
	Name       string // snake_case SQL table name
	IDKind     ColumnType // ColString or ColBytesID
	Columns    []Column   // non-derived fields, block_range is implicit
}

// ColumnByName looks up a column, returning (col, true) if found.
func (t Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Layout is the compiled storage image of a Schema (spec §3.1).
type Layout struct {
	Tables []Table
	Enums  map[string][]string
}

// TableByObjectName finds the table compiled from the given GraphQL
// type name.
func (l Layout) TableByObjectName(name string) (Table, bool) {
	for _, t := range l.Tables {
		if t.ObjectName == name {
			return t, true
		}
	}
	return Table{}, false
}

// CountQuery returns the parameter-free SQL summing current (upper =
// MAX) rows across every table (spec §4.2), a UNION ALL of per-table
// counts per original_source/indexer-manager/src/store/postgres/
// relational_queries.rs.
func (l Layout) CountQuery() string {
	parts := make([]string, 0, len(l.Tables))
	for _, t := range l.Tables {
		parts = append(parts, fmt.Sprintf("select count(*) as c from %q where upper_inf(block_range)", t.Name))
	}
	if len(parts) == 0 {
		return "select 0 as c"
	}
	return "select coalesce(sum(c), 0) from (" + strings.Join(parts, " union all ") + ") counts"
}

// sqlType is the Postgres column type CreateTableStatements emits,
// matching how relational.valueArg/columnValue actually marshal each
// ColumnType (BigInt/BigDecimal round-trip as canonical decimal text,
// not a native numeric column, since no Postgres numeric type carries
// arbitrary-precision math/big values without lossy conversion).
func (t ColumnType) sqlType() string {
	switch t {
	case ColBoolean:
		return "boolean"
	case ColInt:
		return "integer"
	case ColBigDecimal, ColBigInt, ColString, ColEnum:
		return "text"
	case ColBytes, ColBytesID:
		return "bytea"
	default:
		return "text"
	}
}

// CreateTableStatements renders the DDL for every table in the layout:
// one column per Column plus the implicit block_range int4range, and a
// GiST index over (id, block_range) supporting the `block_range @>
// $n::integer` containment queries relational.Builder issues (spec
// §3.1/§4.2).
func (l Layout) CreateTableStatements() []string {
	var stmts []string
	for _, t := range l.Tables {
		cols := make([]string, 0, len(t.Columns)+1)
		for _, c := range t.Columns {
			def := fmt.Sprintf("%s %s", c.Name, c.Type.sqlType())
			if !c.Nullable {
				def += " not null"
			}
			cols = append(cols, def)
		}
		cols = append(cols, "block_range int4range not null")
		stmts = append(stmts, fmt.Sprintf("create table if not exists %s (%s)", t.Name, strings.Join(cols, ", ")))
		stmts = append(stmts, fmt.Sprintf("create index if not exists %s_id_block_range_idx on %s using gist (id, block_range)", t.Name, t.Name))
	}
	return stmts
}

func scalarColumnType(name string) (ColumnType, bool) {
	switch name {
	case "Boolean":
		return ColBoolean, true
	case "Int":
		return ColInt, true
	case "BigDecimal":
		return ColBigDecimal, true
	case "BigInt":
		return ColBigInt, true
	case "Bytes":
		return ColBytes, true
	case "String", "ID":
		return ColString, true
	default:
		return 0, false
	}
}

// idKindOf inspects an object's `id` field and returns its storage kind.
func idKindOf(o ObjectType) (ColumnType, error) {
	for _, f := range o.Fields {
		if f.Name != "id" {
			continue
		}
		switch f.Type.Name {
		case "String", "ID":
			return ColString, nil
		case "Bytes":
			return ColBytesID, nil
		default:
			return 0, fmt.Errorf("schema: %s.id must be String or Bytes, got %s", o.Name, f.Type.Name)
		}
	}
	return 0, fmt.Errorf("schema: %s has no id field", o.Name)
}

// Compile turns a validated Document into a Layout (spec §4.2). Compile
// does not re-run Validate; call ParseAndValidate or Validate first.
func Compile(doc *Document) (Layout, error) {
	layout := Layout{Enums: map[string][]string{}}
	for _, e := range doc.Enums {
		layout.Enums[e.Name] = e.Values
	}

	interfaceImplementors := map[string][]ObjectType{}
	for _, o := range doc.Objects {
		for _, impl := range o.Implements {
			interfaceImplementors[impl] = append(interfaceImplementors[impl], o)
		}
	}
	// I5: within an interface, all implementors agree on id kind.
	for ifaceName, impls := range interfaceImplementors {
		var want ColumnType
		for i, o := range impls {
			kind, err := idKindOf(o)
			if err != nil {
				return Layout{}, err
			}
			if i == 0 {
				want = kind
				continue
			}
			if kind != want {
				return Layout{}, fmt.Errorf("schema: interface %s implementors disagree on id storage kind", ifaceName)
			}
		}
	}

	// A field typed as another entity stores the referenced entity's id.
	refIDKinds := map[string]ColumnType{}
	for _, o := range doc.Objects {
		if !o.IsEntity {
			continue
		}
		if k, err := idKindOf(o); err == nil {
			if k == ColBytesID {
				k = ColBytes
			}
			refIDKinds[o.Name] = k
		}
	}

	for _, o := range doc.Objects {
		if !o.IsEntity {
			continue
		}
		idKind, err := idKindOf(o)
		if err != nil {
			return Layout{}, err
		}
		table := Table{
			ObjectName: o.Name,
			Name:       ToSnakeCase(o.Name),
			IDKind:     idKind,
		}
		if !identifierRE.MatchString(table.Name) {
			return Layout{}, fmt.Errorf("schema: table name %q is not a valid identifier", table.Name)
		}
		for _, f := range o.Fields {
			if f.IsDerived {
				continue // derived fields are read-only back-references, never columns
			}
			col := Column{Name: ToSnakeCase(f.Name), Nullable: !f.Type.NonNull, List: f.Type.List}
			if !identifierRE.MatchString(col.Name) {
				return Layout{}, fmt.Errorf("schema: column name %q is not a valid identifier", col.Name)
			}
			if f.Name == "id" {
				col.Type = idKind
				col.Nullable = false
			} else if ct, ok := scalarColumnType(f.Type.Name); ok {
				col.Type = ct
			} else if _, ok := layout.Enums[f.Type.Name]; ok {
				col.Type = ColEnum
				col.EnumName = f.Type.Name
			} else if k, ok := refIDKinds[f.Type.Name]; ok {
				col.Type = k
			} else {
				return Layout{}, fmt.Errorf("schema: %s.%s references unknown type %q", o.Name, f.Name, f.Type.Name)
			}
			table.Columns = append(table.Columns, col)
		}
		layout.Tables = append(layout.Tables, table)
	}
	return layout, nil
}
