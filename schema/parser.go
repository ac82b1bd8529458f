package schema

import (
	"fmt"
	"strings"
	"text/scanner"
)

// parser is a small hand-rolled recursive-descent parser over
// text/scanner, in the spirit of turbo-geth's own small hand-written
// lexers rather than a generated parser.
type parser struct {
	s    scanner.Scanner
	tok  rune
	text string
}

// Parse parses the entity DSL source into an unvalidated Document.
func Parse(src string) (*Document, error) {
	p := &parser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	p.next()

	doc := &Document{}
	for p.tok != scanner.EOF {
		switch p.text {
		case "type":
			obj, err := p.parseObject()
			if err != nil {
				return nil, err
			}
			doc.Objects = append(doc.Objects, obj)
		case "interface":
			iface, err := p.parseInterface()
			if err != nil {
				return nil, err
			}
			doc.Interfaces = append(doc.Interfaces, iface)
		case "enum":
			enum, err := p.parseEnum()
			if err != nil {
				return nil, err
			}
			doc.Enums = append(doc.Enums, enum)
		case "schema":
			if err := p.skipBlock(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("schema: unexpected token %q at line %d", p.text, p.s.Line)
		}
	}
	return doc, nil
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
}

func (p *parser) expect(text string) error {
	if p.text != text {
		return fmt.Errorf("schema: expected %q, got %q at line %d", text, p.text, p.s.Line)
	}
	p.next()
	return nil
}

func (p *parser) skipBlock() error {
	p.next()
	for p.text != "{" && p.tok != scanner.EOF {
		p.next()
	}
	depth := 0
	for p.tok != scanner.EOF {
		if p.text == "{" {
			depth++
		}
		if p.text == "}" {
			depth--
			p.next()
			if depth == 0 {
				return nil
			}
			continue
		}
		p.next()
	}
	return fmt.Errorf("schema: unterminated block")
}

func (p *parser) parseObject() (ObjectType, error) {
	p.next() // consume 'type'
	name := p.text
	p.next()
	obj := ObjectType{Name: name}

	if p.text == "implements" {
		p.next()
		for {
			obj.Implements = append(obj.Implements, p.text)
			p.next()
			if p.text == "&" {
				p.next()
				continue
			}
			break
		}
	}

	for p.text == "@" {
		name, _, err := p.parseDirective()
		if err != nil {
			return obj, err
		}
		if name == "entity" {
			obj.IsEntity = true
		}
	}

	if err := p.expect("{"); err != nil {
		return obj, err
	}
	for p.text != "}" {
		f, err := p.parseField()
		if err != nil {
			return obj, err
		}
		obj.Fields = append(obj.Fields, f)
	}
	p.next() // consume '}'
	return obj, nil
}

func (p *parser) parseInterface() (InterfaceType, error) {
	p.next() // consume 'interface'
	name := p.text
	p.next()
	iface := InterfaceType{Name: name}
	if err := p.expect("{"); err != nil {
		return iface, err
	}
	for p.text != "}" {
		f, err := p.parseField()
		if err != nil {
			return iface, err
		}
		iface.Fields = append(iface.Fields, f)
	}
	p.next()
	return iface, nil
}

func (p *parser) parseEnum() (EnumType, error) {
	p.next() // consume 'enum'
	name := p.text
	p.next()
	enum := EnumType{Name: name}
	if err := p.expect("{"); err != nil {
		return enum, err
	}
	for p.text != "}" && p.tok != scanner.EOF {
		enum.Values = append(enum.Values, p.text)
		p.next()
	}
	p.next()
	return enum, nil
}

func (p *parser) parseField() (Field, error) {
	name := p.text
	p.next()
	if err := p.expect(":"); err != nil {
		return Field{}, err
	}
	ft, err := p.parseFieldType()
	if err != nil {
		return Field{}, err
	}
	f := Field{Name: name, Type: ft}
	for p.text == "@" {
		dname, args, err := p.parseDirective()
		if err != nil {
			return f, err
		}
		if dname == "derivedFrom" {
			f.IsDerived = true
			f.DerivedFrom = args["field"]
		}
	}
	return f, nil
}

func (p *parser) parseFieldType() (FieldType, error) {
	var ft FieldType
	if p.text == "[" {
		ft.List = true
		p.next()
		ft.Name = p.text
		p.next()
		if p.text == "!" {
			ft.ListElemNonNull = true
			p.next()
		}
		if err := p.expect("]"); err != nil {
			return ft, err
		}
	} else {
		ft.Name = p.text
		p.next()
	}
	if p.text == "!" {
		ft.NonNull = true
		p.next()
	}
	return ft, nil
}

// parseDirective parses `@name(arg: "value", ...)` and returns the
// directive name and its string-valued arguments.
func (p *parser) parseDirective() (string, map[string]string, error) {
	p.next() // consume '@'
	name := p.text
	p.next()
	args := map[string]string{}
	if p.text == "(" {
		p.next()
		for p.text != ")" {
			argName := p.text
			p.next()
			if err := p.expect(":"); err != nil {
				return name, args, err
			}
			val := p.text
			val = strings.Trim(val, `"`)
			args[argName] = val
			p.next()
			if p.text == "," {
				p.next()
			}
		}
		p.next() // consume ')'
	}
	return name, args, nil
}
