// Package code holds the decoded contract code model: classes, fields,
// methods and their instruction streams. It is pure data plus lookup.
package code

import (
	"fmt"
	"strings"
)

// Well known names used by the engine when loading contract code
const (
	ContractInterface = "io/contract/sdk/Contract"
	EventInterface    = "io/contract/sdk/Event"
	ObjectClass       = "java/lang/Object"

	ConstructorName = "<init>"
	StaticInitName  = "<clinit>"

	PayableAnnotation = "Payable"
	ViewAnnotation    = "View"
)

// AccessFlags mirror the class file access flags
type AccessFlags uint16

const (
	AccPublic    AccessFlags = 0x0001
	AccPrivate   AccessFlags = 0x0002
	AccProtected AccessFlags = 0x0004
	AccStatic    AccessFlags = 0x0008
	AccFinal     AccessFlags = 0x0010
	AccNative    AccessFlags = 0x0100
	AccInterface AccessFlags = 0x0200
	AccAbstract  AccessFlags = 0x0400
)

func (f AccessFlags) Has(flag AccessFlags) bool {
	return f&flag != 0
}

// ConstKind is the type of a constant pool entry loaded by ldc
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstLong
	ConstFloat
	ConstDouble
	ConstString
)

// Constant is an ldc operand
type Constant struct {
	Kind  ConstKind `cbor:"k"`
	Int   int64     `cbor:"i,omitempty"`
	Float float64   `cbor:"f,omitempty"`
	Str   string    `cbor:"s,omitempty"`
}

// Value returns the constant as a VM value
func (c *Constant) Value() any {
	switch c.Kind {
	case ConstInt:
		return int32(c.Int)
	case ConstLong:
		return c.Int
	case ConstFloat:
		return float32(c.Float)
	case ConstDouble:
		return c.Float
	default:
		return c.Str
	}
}

func (c *Constant) IsNumeric() bool {
	return c.Kind != ConstString
}

// SwitchCase is one key/target pair of a switch instruction
type SwitchCase struct {
	Key    int32 `cbor:"k"`
	Target int   `cbor:"t"`
}

// Instruction is one decoded instruction. Branch targets are instruction
// indexes within the owning method, not byte offsets.
type Instruction struct {
	Op      OpCode       `cbor:"op"`
	Operand int          `cbor:"a,omitempty"` // local index, immediate, newarray type, dimensions
	Delta   int          `cbor:"d,omitempty"` // iinc increment
	Const   *Constant    `cbor:"c,omitempty"`
	Owner   string       `cbor:"o,omitempty"`
	Name    string       `cbor:"n,omitempty"`
	Desc    string       `cbor:"ds,omitempty"`
	Type    string       `cbor:"ty,omitempty"` // new, anewarray, checkcast, instanceof, multianewarray
	Target  int          `cbor:"j,omitempty"`
	Cases   []SwitchCase `cbor:"cs,omitempty"`
	Default int          `cbor:"df,omitempty"`
	Line    int          `cbor:"ln,omitempty"`
}

func (i *Instruction) String() string {
	switch {
	case i.Op.IsInvoke() || i.Op.IsFieldAccess():
		return fmt.Sprintf("%s %s.%s%s", i.Op, i.Owner, i.Name, i.Desc)
	case i.Type != "":
		return fmt.Sprintf("%s %s", i.Op, i.Type)
	case i.Op.IsBranch():
		return fmt.Sprintf("%s -> %d", i.Op, i.Target)
	}
	return i.Op.String()
}

// LocalIndex returns the local variable slot touched by a load, store or iinc
func (i *Instruction) LocalIndex() (int, bool) {
	switch op := i.Op; {
	case op >= ILOAD && op <= ALOAD, op >= ISTORE && op <= ASTORE, op == IINC, op == RET:
		return i.Operand, true
	case op >= ILOAD_0 && op <= ALOAD_3:
		return int(op-ILOAD_0) % 4, true
	case op >= ISTORE_0 && op <= ASTORE_3:
		return int(op-ISTORE_0) % 4, true
	}
	return 0, false
}

// newarray element type codes
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

var arrayTypeDescs = map[int]string{
	TBoolean: "[Z",
	TChar:    "[C",
	TFloat:   "[F",
	TDouble:  "[D",
	TByte:    "[B",
	TShort:   "[S",
	TInt:     "[I",
	TLong:    "[J",
}

// ArrayTypeDesc returns the array descriptor for a newarray type code
func ArrayTypeDesc(atype int) (string, bool) {
	d, ok := arrayTypeDescs[atype]
	return d, ok
}

// ArrayTypeCode is the inverse of ArrayTypeDesc
func ArrayTypeCode(desc string) (int, bool) {
	for code, d := range arrayTypeDescs {
		if d == desc {
			return code, true
		}
	}
	return 0, false
}

// ExceptionHandler covers instructions [Start, End). An empty Type catches everything.
type ExceptionHandler struct {
	Start   int    `cbor:"s"`
	End     int    `cbor:"e"`
	Handler int    `cbor:"h"`
	Type    string `cbor:"t,omitempty"`
}

// Field is a declared field
type Field struct {
	Name  string      `cbor:"n"`
	Desc  string      `cbor:"d"`
	Flags AccessFlags `cbor:"f,omitempty"`
}

func (f *Field) IsStatic() bool {
	return f.Flags.Has(AccStatic)
}

// Method is a declared method with its instruction stream
type Method struct {
	Name        string             `cbor:"n"`
	Desc        string             `cbor:"d"`
	Flags       AccessFlags        `cbor:"f,omitempty"`
	MaxLocals   int                `cbor:"ml,omitempty"`
	Code        []Instruction      `cbor:"c,omitempty"`
	Handlers    []ExceptionHandler `cbor:"h,omitempty"`
	Annotations []string           `cbor:"an,omitempty"`

	Class *Class `cbor:"-"`
}

func (m *Method) Key() string {
	return m.Name + m.Desc
}

func (m *Method) IsStatic() bool {
	return m.Flags.Has(AccStatic)
}

func (m *Method) IsPublic() bool {
	return m.Flags.Has(AccPublic)
}

// HasCode reports whether the method carries an interpretable body
func (m *Method) HasCode() bool {
	return len(m.Code) > 0
}

func (m *Method) IsConstructor() bool {
	return m.Name == ConstructorName
}

func (m *Method) hasAnnotation(name string) bool {
	for _, a := range m.Annotations {
		if a == name {
			return true
		}
	}
	return false
}

// Payable methods accept attached value
func (m *Method) Payable() bool {
	return m.hasAnnotation(PayableAnnotation)
}

// View methods do not modify state
func (m *Method) View() bool {
	return m.hasAnnotation(ViewAnnotation)
}

func (m *Method) String() string {
	if m.Class != nil {
		return m.Class.Name + "." + m.Name + m.Desc
	}
	return m.Name + m.Desc
}

// Class is a loaded class or interface
type Class struct {
	Name       string      `cbor:"n"`
	Super      string      `cbor:"s,omitempty"`
	Interfaces []string    `cbor:"i,omitempty"`
	Flags      AccessFlags `cbor:"f,omitempty"`
	Fields     []*Field    `cbor:"fd,omitempty"`
	Methods    []*Method   `cbor:"m,omitempty"`

	methods map[string]*Method
	fields  map[string]*Field
}

func (c *Class) IsInterface() bool {
	return c.Flags.Has(AccInterface)
}

// Method looks up a method declared directly on this class
func (c *Class) Method(name, desc string) *Method {
	return c.methods[name+desc]
}

// Field looks up a field declared directly on this class
func (c *Class) Field(name string) *Field {
	return c.fields[name]
}

// MethodsNamed returns the declared methods with the given name in declaration order
func (c *Class) MethodsNamed(name string) []*Method {
	var out []*Method
	for _, m := range c.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Package is the full decoded code of one contract
type Package struct {
	Classes []*Class

	classes map[string]*Class
}

// NewPackage links the classes into a package
func NewPackage(classes []*Class) (*Package, error) {
	p := &Package{Classes: classes}
	if err := p.link(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Package) link() error {
	p.classes = make(map[string]*Class, len(p.Classes))
	for _, c := range p.Classes {
		if c == nil || c.Name == "" {
			return fmt.Errorf("class without a name")
		}
		if _, dup := p.classes[c.Name]; dup {
			return fmt.Errorf("duplicate class %s", c.Name)
		}
		if c.Super == "" && c.Name != ObjectClass {
			c.Super = ObjectClass
		}
		c.methods = make(map[string]*Method, len(c.Methods))
		for _, m := range c.Methods {
			if _, dup := c.methods[m.Key()]; dup {
				return fmt.Errorf("duplicate method %s.%s", c.Name, m.Key())
			}
			m.Class = c
			c.methods[m.Key()] = m
		}
		c.fields = make(map[string]*Field, len(c.Fields))
		for _, f := range c.Fields {
			if _, dup := c.fields[f.Name]; dup {
				return fmt.Errorf("duplicate field %s.%s", c.Name, f.Name)
			}
			c.fields[f.Name] = f
		}
		p.classes[c.Name] = c
	}
	return nil
}

// Class returns the named class or nil if it is not part of the package
func (p *Package) Class(name string) *Class {
	return p.classes[name]
}

// Contains reports whether the class is defined by the package
func (p *Package) Contains(name string) bool {
	_, ok := p.classes[name]
	return ok
}

// FindMethod resolves a method starting at class and walking up the
// superclass chain while it stays inside the package.
func (p *Package) FindMethod(class, name, desc string) *Method {
	for c := p.classes[class]; c != nil; c = p.classes[c.Super] {
		if m := c.Method(name, desc); m != nil {
			return m
		}
	}
	return nil
}

// FindField resolves the class declaring the named field, walking supers.
func (p *Package) FindField(class, name string) (*Class, *Field) {
	for c := p.classes[class]; c != nil; c = p.classes[c.Super] {
		if f := c.Field(name); f != nil {
			return c, f
		}
	}
	return nil, nil
}

// PlatformAncestor returns the first class on the superclass chain of
// class that the package does not define.
func (p *Package) PlatformAncestor(class string) string {
	name := class
	for i := 0; i <= len(p.classes); i++ {
		c := p.classes[name]
		if c == nil {
			return name
		}
		name = c.Super
	}
	return ObjectClass
}

// Supers lists class and its in-package ancestors, nearest first,
// followed by the first platform ancestor.
func (p *Package) Supers(class string) []string {
	var out []string
	name := class
	for i := 0; i <= len(p.classes) && name != ""; i++ {
		out = append(out, name)
		c := p.classes[name]
		if c == nil {
			break
		}
		name = c.Super
	}
	return out
}

// Implements reports whether class (or one of its supers) implements iface,
// following interface inheritance inside the package.
func (p *Package) Implements(class, iface string) bool {
	seen := make(map[string]bool)
	var walk func(name string) bool
	walk = func(name string) bool {
		if name == iface {
			return true
		}
		if seen[name] {
			return false
		}
		seen[name] = true
		c := p.classes[name]
		if c == nil {
			return false
		}
		for _, i := range c.Interfaces {
			if walk(i) {
				return true
			}
		}
		return c.Super != "" && walk(c.Super)
	}
	return walk(class)
}

// ContractClasses returns every non-interface class implementing the
// contract marker interface.
func (p *Package) ContractClasses() []*Class {
	var out []*Class
	for _, c := range p.Classes {
		if c.IsInterface() || c.Flags.Has(AccAbstract) {
			continue
		}
		if p.Implements(c.Name, ContractInterface) {
			out = append(out, c)
		}
	}
	return out
}

// JavaName converts an internal class name to its dotted form
func JavaName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}
