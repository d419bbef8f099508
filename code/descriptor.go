package code

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind classifies a VariableType
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
	KindArray
)

var primitiveKinds = map[byte]Kind{
	'V': KindVoid,
	'Z': KindBoolean,
	'B': KindByte,
	'C': KindChar,
	'S': KindShort,
	'I': KindInt,
	'J': KindLong,
	'F': KindFloat,
	'D': KindDouble,
}

var javaNames = map[Kind]string{
	KindVoid:    "void",
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindChar:    "char",
	KindShort:   "short",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindDouble:  "double",
}

// VariableType is the canonical form of a type descriptor
type VariableType struct {
	Desc       string
	Kind       Kind
	ClassName  string        // for objects, internal name
	Dimensions int           // for arrays
	Elem       *VariableType // for arrays, the component type
}

func (t *VariableType) IsPrimitive() bool {
	return t.Kind != KindObject && t.Kind != KindArray && t.Kind != KindVoid
}

func (t *VariableType) IsReference() bool {
	return t.Kind == KindObject || t.Kind == KindArray
}

func (t *VariableType) IsArray() bool {
	return t.Kind == KindArray
}

func (t *VariableType) IsVoid() bool {
	return t.Kind == KindVoid
}

// IsWide reports long and double, which take two local slots
func (t *VariableType) IsWide() bool {
	return t.Kind == KindLong || t.Kind == KindDouble
}

// IsIntLike reports the types stored as a 32 bit int on the operand stack
func (t *VariableType) IsIntLike() bool {
	switch t.Kind {
	case KindBoolean, KindByte, KindChar, KindShort, KindInt:
		return true
	}
	return false
}

// Slots is the number of local variable slots the type occupies
func (t *VariableType) Slots() int {
	switch {
	case t.Kind == KindVoid:
		return 0
	case t.IsWide():
		return 2
	}
	return 1
}

// Default is the value of a never written field or array slot
func (t *VariableType) Default() any {
	switch t.Kind {
	case KindBoolean, KindByte, KindChar, KindShort, KindInt:
		return int32(0)
	case KindLong:
		return int64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	}
	return nil
}

// IsString reports java/lang/String
func (t *VariableType) IsString() bool {
	return t.Kind == KindObject && t.ClassName == "java/lang/String"
}

// JavaName renders the type the way source code spells it
func (t *VariableType) JavaName() string {
	switch t.Kind {
	case KindObject:
		return JavaName(t.ClassName)
	case KindArray:
		return t.Elem.JavaName() + "[]"
	}
	return javaNames[t.Kind]
}

func (t *VariableType) String() string {
	return t.Desc
}

// MethodType is a parsed method descriptor
type MethodType struct {
	Desc     string
	Args     []*VariableType
	Return   *VariableType
	ArgSlots int
}

// ParseType parses a field descriptor such as "I", "[J" or "Ljava/lang/String;"
func ParseType(desc string) (*VariableType, error) {
	t, rest, err := parseType(desc)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("invalid descriptor %q: trailing %q", desc, rest)
	}
	return t, nil
}

func parseType(desc string) (*VariableType, string, error) {
	if desc == "" {
		return nil, "", fmt.Errorf("empty descriptor")
	}
	switch c := desc[0]; c {
	case 'L':
		end := strings.IndexByte(desc, ';')
		if end < 2 {
			return nil, "", fmt.Errorf("invalid descriptor %q", desc)
		}
		return &VariableType{Desc: desc[:end+1], Kind: KindObject, ClassName: desc[1:end]}, desc[end+1:], nil
	case '[':
		elem, rest, err := parseType(desc[1:])
		if err != nil {
			return nil, "", err
		}
		if elem.Kind == KindVoid {
			return nil, "", fmt.Errorf("invalid descriptor %q: void array", desc)
		}
		dims := 1
		if elem.Kind == KindArray {
			dims += elem.Dimensions
		}
		d := desc[:len(desc)-len(rest)]
		return &VariableType{Desc: d, Kind: KindArray, Dimensions: dims, Elem: elem}, rest, nil
	default:
		k, ok := primitiveKinds[c]
		if !ok {
			return nil, "", fmt.Errorf("invalid descriptor %q", desc)
		}
		return &VariableType{Desc: desc[:1], Kind: k}, desc[1:], nil
	}
}

// ParseMethodType parses a method descriptor such as "(ILjava/lang/String;)V"
func ParseMethodType(desc string) (*MethodType, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, fmt.Errorf("invalid method descriptor %q", desc)
	}
	mt := &MethodType{Desc: desc}
	rest := desc[1:]
	for {
		if rest == "" {
			return nil, fmt.Errorf("invalid method descriptor %q", desc)
		}
		if rest[0] == ')' {
			rest = rest[1:]
			break
		}
		t, r, err := parseType(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
		if t.Kind == KindVoid {
			return nil, fmt.Errorf("invalid method descriptor %q: void argument", desc)
		}
		mt.Args = append(mt.Args, t)
		mt.ArgSlots += t.Slots()
		rest = r
	}
	ret, err := ParseType(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid method descriptor %q: %w", desc, err)
	}
	mt.Return = ret
	return mt, nil
}

// ClassDesc converts an internal class name (or array descriptor) to a field descriptor
func ClassDesc(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return "L" + name + ";"
}

// TypeRegistry caches parsed descriptors. Safe for concurrent use; one
// registry is shared read-mostly by every invocation in the process.
type TypeRegistry struct {
	types   *lru.Cache[string, *VariableType]
	methods *lru.Cache[string, *MethodType]
}

// NewTypeRegistry creates a registry holding up to size entries per kind
func NewTypeRegistry(size int) (*TypeRegistry, error) {
	types, err := lru.New[string, *VariableType](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create type cache: %w", err)
	}
	methods, err := lru.New[string, *MethodType](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create method type cache: %w", err)
	}
	return &TypeRegistry{types: types, methods: methods}, nil
}

// Type resolves a field descriptor
func (r *TypeRegistry) Type(desc string) (*VariableType, error) {
	if t, ok := r.types.Get(desc); ok {
		return t, nil
	}
	t, err := ParseType(desc)
	if err != nil {
		return nil, err
	}
	r.types.Add(desc, t)
	return t, nil
}

// Method resolves a method descriptor
func (r *TypeRegistry) Method(desc string) (*MethodType, error) {
	if mt, ok := r.methods.Get(desc); ok {
		return mt, nil
	}
	mt, err := ParseMethodType(desc)
	if err != nil {
		return nil, err
	}
	r.methods.Add(desc, mt)
	return mt, nil
}

// MustType is Type for descriptors known to be valid
func (r *TypeRegistry) MustType(desc string) *VariableType {
	t, err := r.Type(desc)
	if err != nil {
		panic(err)
	}
	return t
}
