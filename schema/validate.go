package schema

import (
	"fmt"

	graphql "github.com/graph-gophers/graphql-go"
)

// ValidationErrorCode names the specific check a ValidationError
// failed, matching the enumeration in spec §4.2.
type ValidationErrorCode int

const (
	EntityDirectivesMissing ValidationErrorCode = iota
	FieldTypeUnknown
	InvalidDerivedFrom
	InterfaceUndefined
	InterfaceFieldsMissing
	ReservedTypeName
)

func (c ValidationErrorCode) String() string {
	switch c {
	case EntityDirectivesMissing:
		return "EntityDirectivesMissing"
	case FieldTypeUnknown:
		return "FieldTypeUnknown"
	case InvalidDerivedFrom:
		return "InvalidDerivedFrom"
	case InterfaceUndefined:
		return "InterfaceUndefined"
	case InterfaceFieldsMissing:
		return "InterfaceFieldsMissing"
	case ReservedTypeName:
		return "ReservedTypeName"
	default:
		return "Unknown"
	}
}

type ValidationError struct {
	Code    ValidationErrorCode
	Type    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s.%s: %s", e.Code, e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Type, e.Message)
}

// ValidationErrors collects every error found in one pass, rather than
// failing fast on the first (spec §4.2: "missing or duplicate
// validations are surfaced together, not one at a time").
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	s := fmt.Sprintf("schema: %d validation error(s)", len(v))
	for _, e := range v {
		s += "\n  - " + e.Error()
	}
	return s
}

type syntaxCheckResolver struct{}

func (syntaxCheckResolver) Ping() bool { return true }

// syntaxPrecheck gates the DSL through graph-gophers/graphql-go's own
// schema parser once the hand-written parser and Validate have accepted
// it. graphql-go doesn't know the @entity/@derivedFrom directives or
// the BigInt/BigDecimal/Bytes scalars this DSL adds, so they're
// declared up front; the entity-specific semantic rules
// (EntityDirectivesMissing and friends) are this package's own concern
// and are checked in Validate, which has no equivalent in graphql-go.
func syntaxPrecheck(src string) error {
	wrapped := "scalar BigInt\nscalar BigDecimal\nscalar Bytes\n" +
		"directive @entity on OBJECT\n" +
		"directive @derivedFrom(field: String) on FIELD_DEFINITION\n" +
		"type Query { ping: Boolean }\n" + src
	if _, err := graphql.ParseSchema(wrapped, syntaxCheckResolver{}); err != nil {
		return fmt.Errorf("schema: syntax error: %w", err)
	}
	return nil
}

// Validate runs the full single-pass validation of spec §4.2 over a
// parsed Document and returns every violation found.
func Validate(doc *Document) ValidationErrors {
	var errs ValidationErrors

	named := map[string]bool{}
	for _, o := range doc.Objects {
		named[o.Name] = true
	}
	for _, i := range doc.Interfaces {
		named[i.Name] = true
	}
	enums := map[string][]string{}
	for _, e := range doc.Enums {
		named[e.Name] = true
		enums[e.Name] = e.Values
	}
	interfaces := map[string]InterfaceType{}
	for _, i := range doc.Interfaces {
		interfaces[i.Name] = i
	}

	isKnownType := func(name string) bool {
		return builtinScalars[name] || named[name]
	}

	for _, o := range doc.Objects {
		if isReservedTypeName(o.Name) {
			errs = append(errs, ValidationError{Code: ReservedTypeName, Type: o.Name, Message: "reserved type name"})
		}

		hasDataFields := false
		for _, f := range o.Fields {
			if !f.IsDerived {
				hasDataFields = true
			}
		}
		if hasDataFields && !o.IsEntity {
			errs = append(errs, ValidationError{Code: EntityDirectivesMissing, Type: o.Name, Message: "type bears data fields but no @entity directive"})
		}

		for _, f := range o.Fields {
			if !isKnownType(f.Type.Name) {
				errs = append(errs, ValidationError{Code: FieldTypeUnknown, Type: o.Name, Field: f.Name, Message: fmt.Sprintf("unknown type %q", f.Type.Name)})
			}
			if f.IsDerived {
				target, ok := interfaces[f.Type.Name]
				_ = target
				var fields []Field
				if ok {
					fields = target.Fields
				} else {
					for _, other := range doc.Objects {
						if other.Name == f.Type.Name {
							fields = other.Fields
						}
					}
				}
				found := false
				for _, tf := range fields {
					if tf.Name == f.DerivedFrom {
						found = true
						break
					}
				}
				if f.DerivedFrom == "" || !found {
					errs = append(errs, ValidationError{Code: InvalidDerivedFrom, Type: o.Name, Field: f.Name, Message: fmt.Sprintf("@derivedFrom(field: %q) does not reference an existing field on %s", f.DerivedFrom, f.Type.Name)})
				}
			}
		}

		for _, implName := range o.Implements {
			iface, ok := interfaces[implName]
			if !ok {
				errs = append(errs, ValidationError{Code: InterfaceUndefined, Type: o.Name, Message: fmt.Sprintf("implements undefined interface %q", implName)})
				continue
			}
			objFields := map[string]bool{}
			for _, f := range o.Fields {
				objFields[f.Name] = true
			}
			for _, ifField := range iface.Fields {
				if !objFields[ifField.Name] {
					errs = append(errs, ValidationError{Code: InterfaceFieldsMissing, Type: o.Name, Field: ifField.Name, Message: fmt.Sprintf("missing field required by interface %q", implName)})
				}
			}
		}
	}

	return errs
}

// ParseAndValidate runs the DSL parser, Validate, and then the
// graphql-go syntax check in sequence, the "parse -> validate ->
// compile" pipeline of spec §4.2. Validation errors are returned as
// ValidationErrors before the syntax check runs.
func ParseAndValidate(src string) (*Document, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if errs := Validate(doc); len(errs) > 0 {
		return nil, errs
	}
	if err := syntaxPrecheck(src); err != nil {
		return nil, err
	}
	return doc, nil
}
