package code

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the version tag written in front of encoded packages
const FormatVersion = 1

// ErrMalformed is returned for code that cannot be decoded or fails structural checks
var ErrMalformed = errors.New("malformed contract code")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("code: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 16,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("code: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

type encodedPackage struct {
	Version uint8    `cbor:"v"`
	Classes []*Class `cbor:"c"`
}

// Encode serializes the package deterministically
func Encode(p *Package) ([]byte, error) {
	data, err := encMode.Marshal(&encodedPackage{Version: FormatVersion, Classes: p.Classes})
	if err != nil {
		return nil, fmt.Errorf("failed to encode package: %w", err)
	}
	return data, nil
}

// Decode parses and structurally checks encoded contract code
func Decode(data []byte) (*Package, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty code", ErrMalformed)
	}
	var ep encodedPackage
	if err := decMode.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ep.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrMalformed, ep.Version)
	}
	p, err := NewPackage(ep.Classes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// Verify runs the structural checks every decoded package must pass:
// known opcodes, well formed descriptors and in range jump targets.
func (p *Package) Verify() error {
	for _, c := range p.Classes {
		for _, f := range c.Fields {
			if _, err := ParseType(f.Desc); err != nil {
				return fmt.Errorf("%w: field %s.%s: %v", ErrMalformed, c.Name, f.Name, err)
			}
		}
		for _, m := range c.Methods {
			if err := verifyMethod(m); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrMalformed, m, err)
			}
		}
	}
	return nil
}

func verifyMethod(m *Method) error {
	mt, err := ParseMethodType(m.Desc)
	if err != nil {
		return err
	}
	if !m.HasCode() {
		if !m.Flags.Has(AccAbstract) && !m.Flags.Has(AccNative) {
			return fmt.Errorf("method has no code")
		}
		return nil
	}
	minLocals := mt.ArgSlots
	if !m.IsStatic() {
		minLocals++
	}
	if m.MaxLocals < minLocals {
		m.MaxLocals = minLocals
	}
	n := len(m.Code)
	inRange := func(t int) bool { return t >= 0 && t < n }
	for pc := range m.Code {
		inst := &m.Code[pc]
		if !inst.Op.Defined() || inst.Op == WIDE {
			return fmt.Errorf("pc %d: invalid opcode 0x%02x", pc, byte(inst.Op))
		}
		switch {
		case inst.Op.IsBranch():
			if !inRange(inst.Target) {
				return fmt.Errorf("pc %d: jump target %d out of range", pc, inst.Target)
			}
		case inst.Op.IsSwitch():
			if !inRange(inst.Default) {
				return fmt.Errorf("pc %d: default target %d out of range", pc, inst.Default)
			}
			for _, cs := range inst.Cases {
				if !inRange(cs.Target) {
					return fmt.Errorf("pc %d: case target %d out of range", pc, cs.Target)
				}
			}
		case inst.Op == LDC || inst.Op == LDC_W || inst.Op == LDC2_W:
			if inst.Const == nil {
				return fmt.Errorf("pc %d: %s without constant", pc, inst.Op)
			}
		case inst.Op.IsInvoke():
			if _, err := ParseMethodType(inst.Desc); err != nil {
				return fmt.Errorf("pc %d: %v", pc, err)
			}
		case inst.Op.IsFieldAccess():
			if _, err := ParseType(inst.Desc); err != nil {
				return fmt.Errorf("pc %d: %v", pc, err)
			}
		case inst.Op == NEWARRAY:
			if _, ok := ArrayTypeDesc(inst.Operand); !ok {
				return fmt.Errorf("pc %d: invalid array type %d", pc, inst.Operand)
			}
		case inst.Op == MULTIANEWARRAY:
			t, err := ParseType(inst.Type)
			if err != nil {
				return fmt.Errorf("pc %d: %v", pc, err)
			}
			if inst.Operand < 1 || inst.Operand > t.Dimensions {
				return fmt.Errorf("pc %d: invalid dimensions %d for %s", pc, inst.Operand, inst.Type)
			}
		case inst.Op == NEW || inst.Op == ANEWARRAY || inst.Op == CHECKCAST || inst.Op == INSTANCEOF:
			if inst.Type == "" {
				return fmt.Errorf("pc %d: %s without type", pc, inst.Op)
			}
		}
		if inst.Operand < 0 && !(inst.Op == BIPUSH || inst.Op == SIPUSH) {
			return fmt.Errorf("pc %d: negative operand", pc)
		}
		if idx, ok := inst.LocalIndex(); ok && idx+2 > m.MaxLocals {
			m.MaxLocals = idx + 2
		}
	}
	for _, h := range m.Handlers {
		if h.Start < 0 || h.End > n || h.Start >= h.End || !inRange(h.Handler) {
			return fmt.Errorf("invalid exception handler [%d,%d)->%d", h.Start, h.End, h.Handler)
		}
	}
	return nil
}
