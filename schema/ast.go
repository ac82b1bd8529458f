// Package schema parses the GraphQL-like entity DSL (spec §3.1, §4.2,
// component C2) into a validated, relational Layout. Parsing is
// hand-rolled over text/scanner (see SPEC_FULL.md for why
// graph-gophers/graphql-go's own lexer couldn't be reused directly);
// graph-gophers/graphql-go is still used for a syntax check in
// ParseAndValidate, after the DSL has been parsed and validated.
package schema

// FieldType names a GraphQL-ish type reference: either a scalar/named
// type, optionally wrapped in List and/or marked NonNull.
type FieldType struct {
	Name     string
	List     bool
	NonNull  bool
	ListElemNonNull bool
}

// Field is one field of an object or interface type.
type Field struct {
	Name         string
	Type         FieldType
	DerivedFrom  string // non-empty if @derivedFrom(field: "...") is present
	IsDerived    bool
}

// ObjectType is a `type Foo @entity { ... }` or plain (non-entity)
// object definition.
type ObjectType struct {
	Name       string
	IsEntity   bool
	Implements []string
	Fields     []Field
}

// InterfaceType is an `interface Foo { ... }` definition.
type InterfaceType struct {
	Name   string
	Fields []Field
}

// EnumType is an `enum Foo { A B C }` definition.
type EnumType struct {
	Name   string
	Values []string
}

// Document is the parsed, unvalidated schema DSL.
type Document struct {
	Objects    []ObjectType
	Interfaces []InterfaceType
	Enums      []EnumType
}

// builtinScalars are the scalar type names that never require a
// definition of their own (spec §3.1 column type list, plus GraphQL's
// ID).
var builtinScalars = map[string]bool{
	"Boolean":    true,
	"Int":        true,
	"BigDecimal": true,
	"BigInt":     true,
	"Bytes":      true,
	"String":     true,
	"ID":         true,
}

// reservedTypeNames may never be used as a user type name (spec §4.2).
func isReservedTypeName(name string) bool {
	if builtinScalars[name] {
		return true
	}
	switch name {
	case "Query", "Subscription":
		return true
	}
	if len(name) > len("_filter") && name[len(name)-len("_filter"):] == "_filter" {
		return true
	}
	if len(name) > len("_orderBy") && name[len(name)-len("_orderBy"):] == "_orderBy" {
		return true
	}
	return false
}
