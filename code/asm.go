package code

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Assemble builds a package from its textual form. The format is line based:
//
//	class Counter implements io/contract/sdk/Contract
//	field private count I
//	method public @View get ()I
//	    aload_0
//	    getfield Counter count I
//	    ireturn
//	end
//
// Labels are written as "name:" on their own line; ".catch Type start end handler"
// declares an exception handler ("any" catches everything) and ".line N" tags
// the following instructions with a source line.
func Assemble(src string) (*Package, error) {
	a := &assembler{}
	sc := bufio.NewScanner(strings.NewReader(src))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		a.lineNo++
		if err := a.line(sc.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", a.lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if a.method != nil {
		return nil, fmt.Errorf("method %s not terminated with end", a.method.Name)
	}
	p, err := NewPackage(a.classes)
	if err != nil {
		return nil, err
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// AssembleCode assembles and encodes in one step
func AssembleCode(src string) ([]byte, error) {
	p, err := Assemble(src)
	if err != nil {
		return nil, err
	}
	return Encode(p)
}

type pendingJump struct {
	pc     int
	label  string
	caseNo int // -1 for Target, -2 for Default
}

type pendingHandler struct {
	typ                 string
	start, end, handler string
}

type assembler struct {
	lineNo   int
	classes  []*Class
	class    *Class
	method   *Method
	labels   map[string]int
	jumps    []pendingJump
	handlers []pendingHandler
	srcLine  int
}

var modifierFlags = map[string]AccessFlags{
	"public":    AccPublic,
	"private":   AccPrivate,
	"protected": AccProtected,
	"static":    AccStatic,
	"final":     AccFinal,
	"native":    AccNative,
	"interface": AccInterface,
	"abstract":  AccAbstract,
}

func (a *assembler) line(raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" || strings.HasPrefix(text, ";") || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "//") {
		return nil
	}
	if a.method != nil {
		return a.body(text)
	}
	fields := strings.Fields(text)
	switch fields[0] {
	case "class", "interface":
		return a.startClass(fields)
	case "field":
		if a.class == nil {
			return fmt.Errorf("field outside class")
		}
		flags, rest := parseModifiers(fields[1:])
		if len(rest) != 2 {
			return fmt.Errorf("field wants a name and a descriptor")
		}
		a.class.Fields = append(a.class.Fields, &Field{Name: rest[0], Desc: rest[1], Flags: flags})
		return nil
	case "method":
		if a.class == nil {
			return fmt.Errorf("method outside class")
		}
		flags, rest := parseModifiers(fields[1:])
		var annotations []string
		for len(rest) > 0 && strings.HasPrefix(rest[0], "@") {
			annotations = append(annotations, rest[0][1:])
			rest = rest[1:]
		}
		if len(rest) != 2 {
			return fmt.Errorf("method wants a name and a descriptor")
		}
		a.method = &Method{Name: rest[0], Desc: rest[1], Flags: flags, Annotations: annotations}
		a.labels = make(map[string]int)
		a.jumps = nil
		a.handlers = nil
		a.srcLine = 0
		if flags.Has(AccAbstract) || flags.Has(AccNative) {
			a.class.Methods = append(a.class.Methods, a.method)
			a.method = nil
		}
		return nil
	}
	return fmt.Errorf("unexpected %q", fields[0])
}

func parseModifiers(fields []string) (AccessFlags, []string) {
	var flags AccessFlags
	for len(fields) > 0 {
		f, ok := modifierFlags[fields[0]]
		if !ok {
			break
		}
		flags |= f
		fields = fields[1:]
	}
	return flags, fields
}

func (a *assembler) startClass(fields []string) error {
	flags, rest := parseModifiers(fields[1:])
	if fields[0] == "interface" {
		flags |= AccInterface | AccAbstract
	}
	if len(rest) == 0 {
		return fmt.Errorf("class without a name")
	}
	c := &Class{Name: rest[0], Flags: flags}
	rest = rest[1:]
	for len(rest) > 0 {
		switch rest[0] {
		case "extends":
			if len(rest) < 2 {
				return fmt.Errorf("extends without a class")
			}
			c.Super = rest[1]
			rest = rest[2:]
		case "implements":
			rest = rest[1:]
			for len(rest) > 0 && rest[0] != "extends" {
				c.Interfaces = append(c.Interfaces, rest[0])
				rest = rest[1:]
			}
		default:
			return fmt.Errorf("unexpected %q in class header", rest[0])
		}
	}
	a.classes = append(a.classes, c)
	a.class = c
	return nil
}

func (a *assembler) body(text string) error {
	m := a.method
	if text == "end" {
		return a.finishMethod()
	}
	if strings.HasSuffix(text, ":") && !strings.ContainsAny(text, " \t") {
		name := strings.TrimSuffix(text, ":")
		if _, dup := a.labels[name]; dup {
			return fmt.Errorf("duplicate label %s", name)
		}
		a.labels[name] = len(m.Code)
		return nil
	}
	fields := strings.Fields(text)
	switch fields[0] {
	case ".catch":
		if len(fields) != 5 {
			return fmt.Errorf(".catch wants type start end handler")
		}
		typ := fields[1]
		if typ == "any" {
			typ = ""
		}
		a.handlers = append(a.handlers, pendingHandler{typ: typ, start: fields[2], end: fields[3], handler: fields[4]})
		return nil
	case ".line":
		if len(fields) != 2 {
			return fmt.Errorf(".line wants a number")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return err
		}
		a.srcLine = n
		return nil
	}
	op, ok := OpCodeByName(fields[0])
	if !ok {
		return fmt.Errorf("unknown instruction %q", fields[0])
	}
	inst := Instruction{Op: op, Line: a.srcLine}
	args := fields[1:]
	pc := len(m.Code)
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s wants %d operands, got %d", op, n, len(args))
		}
		return nil
	}
	switch {
	case op == BIPUSH || op == SIPUSH || (op >= ILOAD && op <= ALOAD) || (op >= ISTORE && op <= ASTORE) || op == RET:
		if err := need(1); err != nil {
			return err
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		inst.Operand = v
	case op == IINC:
		if err := need(2); err != nil {
			return err
		}
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		inst.Operand, inst.Delta = idx, delta
	case op == NEWARRAY:
		if err := need(1); err != nil {
			return err
		}
		atype, err := parseArrayType(args[0])
		if err != nil {
			return err
		}
		inst.Operand = atype
	case op == LDC || op == LDC_W || op == LDC2_W:
		c, err := parseConstant(strings.TrimSpace(strings.TrimPrefix(text, fields[0])))
		if err != nil {
			return err
		}
		inst.Const = c
	case op.IsBranch():
		if err := need(1); err != nil {
			return err
		}
		a.jumps = append(a.jumps, pendingJump{pc: pc, label: args[0], caseNo: -1})
	case op.IsSwitch():
		for _, arg := range args {
			key, label, found := strings.Cut(arg, ":")
			if !found {
				return fmt.Errorf("switch case %q wants key:label", arg)
			}
			if key == "default" {
				a.jumps = append(a.jumps, pendingJump{pc: pc, label: label, caseNo: -2})
				continue
			}
			k, err := strconv.ParseInt(key, 10, 32)
			if err != nil {
				return err
			}
			a.jumps = append(a.jumps, pendingJump{pc: pc, label: label, caseNo: len(inst.Cases)})
			inst.Cases = append(inst.Cases, SwitchCase{Key: int32(k)})
		}
	case op == NEW || op == ANEWARRAY || op == CHECKCAST || op == INSTANCEOF:
		if err := need(1); err != nil {
			return err
		}
		inst.Type = args[0]
	case op == MULTIANEWARRAY:
		if err := need(2); err != nil {
			return err
		}
		dims, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		inst.Type, inst.Operand = args[0], dims
	case op.IsFieldAccess() || (op.IsInvoke() && op != INVOKEDYNAMIC):
		if err := need(3); err != nil {
			return err
		}
		inst.Owner, inst.Name, inst.Desc = args[0], args[1], args[2]
	case op == INVOKEDYNAMIC:
		if err := need(2); err != nil {
			return err
		}
		inst.Name, inst.Desc = args[0], args[1]
	default:
		if err := need(0); err != nil {
			return err
		}
	}
	m.Code = append(m.Code, inst)
	return nil
}

func (a *assembler) finishMethod() error {
	m := a.method
	resolve := func(label string) (int, error) {
		pc, ok := a.labels[label]
		if !ok {
			return 0, fmt.Errorf("%s: undefined label %s", m.Name, label)
		}
		return pc, nil
	}
	for _, j := range a.jumps {
		target, err := resolve(j.label)
		if err != nil {
			return err
		}
		inst := &m.Code[j.pc]
		switch j.caseNo {
		case -1:
			inst.Target = target
		case -2:
			inst.Default = target
		default:
			inst.Cases[j.caseNo].Target = target
		}
	}
	for _, h := range a.handlers {
		start, err := resolve(h.start)
		if err != nil {
			return err
		}
		end, err := resolve(h.end)
		if err != nil {
			return err
		}
		handler, err := resolve(h.handler)
		if err != nil {
			return err
		}
		m.Handlers = append(m.Handlers, ExceptionHandler{Start: start, End: end, Handler: handler, Type: h.typ})
	}
	a.class.Methods = append(a.class.Methods, m)
	a.method = nil
	return nil
}

var arrayTypeNames = map[string]int{
	"boolean": TBoolean,
	"char":    TChar,
	"float":   TFloat,
	"double":  TDouble,
	"byte":    TByte,
	"short":   TShort,
	"int":     TInt,
	"long":    TLong,
}

func parseArrayType(s string) (int, error) {
	if t, ok := arrayTypeNames[s]; ok {
		return t, nil
	}
	return strconv.Atoi(s)
}

func parseConstant(s string) (*Constant, error) {
	if s == "" {
		return nil, fmt.Errorf("missing constant")
	}
	if strings.HasPrefix(s, "\"") {
		str, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("invalid string constant %s: %w", s, err)
		}
		return &Constant{Kind: ConstString, Str: str}, nil
	}
	last := s[len(s)-1]
	switch {
	case last == 'L' || last == 'l':
		v, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
		if err != nil {
			return nil, err
		}
		return &Constant{Kind: ConstLong, Int: v}, nil
	case last == 'F' || last == 'f':
		v, err := strconv.ParseFloat(s[:len(s)-1], 32)
		if err != nil {
			return nil, err
		}
		return &Constant{Kind: ConstFloat, Float: v}, nil
	case last == 'D' || last == 'd':
		v, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return nil, err
		}
		return &Constant{Kind: ConstDouble, Float: v}, nil
	case strings.ContainsAny(s, ".eE"):
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return &Constant{Kind: ConstDouble, Float: v}, nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil, err
	}
	return &Constant{Kind: ConstInt, Int: v}, nil
}
