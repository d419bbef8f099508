package code

import "fmt"

// OpCode is a single instruction opcode. Numbering follows the class file format.
type OpCode byte

const (
	NOP             OpCode = 0x00
	ACONST_NULL     OpCode = 0x01
	ICONST_M1       OpCode = 0x02
	ICONST_0        OpCode = 0x03
	ICONST_1        OpCode = 0x04
	ICONST_2        OpCode = 0x05
	ICONST_3        OpCode = 0x06
	ICONST_4        OpCode = 0x07
	ICONST_5        OpCode = 0x08
	LCONST_0        OpCode = 0x09
	LCONST_1        OpCode = 0x0a
	FCONST_0        OpCode = 0x0b
	FCONST_1        OpCode = 0x0c
	FCONST_2        OpCode = 0x0d
	DCONST_0        OpCode = 0x0e
	DCONST_1        OpCode = 0x0f
	BIPUSH          OpCode = 0x10
	SIPUSH          OpCode = 0x11
	LDC             OpCode = 0x12
	LDC_W           OpCode = 0x13
	LDC2_W          OpCode = 0x14
	ILOAD           OpCode = 0x15
	LLOAD           OpCode = 0x16
	FLOAD           OpCode = 0x17
	DLOAD           OpCode = 0x18
	ALOAD           OpCode = 0x19
	ILOAD_0         OpCode = 0x1a
	ILOAD_1         OpCode = 0x1b
	ILOAD_2         OpCode = 0x1c
	ILOAD_3         OpCode = 0x1d
	LLOAD_0         OpCode = 0x1e
	LLOAD_1         OpCode = 0x1f
	LLOAD_2         OpCode = 0x20
	LLOAD_3         OpCode = 0x21
	FLOAD_0         OpCode = 0x22
	FLOAD_1         OpCode = 0x23
	FLOAD_2         OpCode = 0x24
	FLOAD_3         OpCode = 0x25
	DLOAD_0         OpCode = 0x26
	DLOAD_1         OpCode = 0x27
	DLOAD_2         OpCode = 0x28
	DLOAD_3         OpCode = 0x29
	ALOAD_0         OpCode = 0x2a
	ALOAD_1         OpCode = 0x2b
	ALOAD_2         OpCode = 0x2c
	ALOAD_3         OpCode = 0x2d
	IALOAD          OpCode = 0x2e
	LALOAD          OpCode = 0x2f
	FALOAD          OpCode = 0x30
	DALOAD          OpCode = 0x31
	AALOAD          OpCode = 0x32
	BALOAD          OpCode = 0x33
	CALOAD          OpCode = 0x34
	SALOAD          OpCode = 0x35
	ISTORE          OpCode = 0x36
	LSTORE          OpCode = 0x37
	FSTORE          OpCode = 0x38
	DSTORE          OpCode = 0x39
	ASTORE          OpCode = 0x3a
	ISTORE_0        OpCode = 0x3b
	ISTORE_1        OpCode = 0x3c
	ISTORE_2        OpCode = 0x3d
	ISTORE_3        OpCode = 0x3e
	LSTORE_0        OpCode = 0x3f
	LSTORE_1        OpCode = 0x40
	LSTORE_2        OpCode = 0x41
	LSTORE_3        OpCode = 0x42
	FSTORE_0        OpCode = 0x43
	FSTORE_1        OpCode = 0x44
	FSTORE_2        OpCode = 0x45
	FSTORE_3        OpCode = 0x46
	DSTORE_0        OpCode = 0x47
	DSTORE_1        OpCode = 0x48
	DSTORE_2        OpCode = 0x49
	DSTORE_3        OpCode = 0x4a
	ASTORE_0        OpCode = 0x4b
	ASTORE_1        OpCode = 0x4c
	ASTORE_2        OpCode = 0x4d
	ASTORE_3        OpCode = 0x4e
	IASTORE         OpCode = 0x4f
	LASTORE         OpCode = 0x50
	FASTORE         OpCode = 0x51
	DASTORE         OpCode = 0x52
	AASTORE         OpCode = 0x53
	BASTORE         OpCode = 0x54
	CASTORE         OpCode = 0x55
	SASTORE         OpCode = 0x56
	POP             OpCode = 0x57
	POP2            OpCode = 0x58
	DUP             OpCode = 0x59
	DUP_X1          OpCode = 0x5a
	DUP_X2          OpCode = 0x5b
	DUP2            OpCode = 0x5c
	DUP2_X1         OpCode = 0x5d
	DUP2_X2         OpCode = 0x5e
	SWAP            OpCode = 0x5f
	IADD            OpCode = 0x60
	LADD            OpCode = 0x61
	FADD            OpCode = 0x62
	DADD            OpCode = 0x63
	ISUB            OpCode = 0x64
	LSUB            OpCode = 0x65
	FSUB            OpCode = 0x66
	DSUB            OpCode = 0x67
	IMUL            OpCode = 0x68
	LMUL            OpCode = 0x69
	FMUL            OpCode = 0x6a
	DMUL            OpCode = 0x6b
	IDIV            OpCode = 0x6c
	LDIV            OpCode = 0x6d
	FDIV            OpCode = 0x6e
	DDIV            OpCode = 0x6f
	IREM            OpCode = 0x70
	LREM            OpCode = 0x71
	FREM            OpCode = 0x72
	DREM            OpCode = 0x73
	INEG            OpCode = 0x74
	LNEG            OpCode = 0x75
	FNEG            OpCode = 0x76
	DNEG            OpCode = 0x77
	ISHL            OpCode = 0x78
	LSHL            OpCode = 0x79
	ISHR            OpCode = 0x7a
	LSHR            OpCode = 0x7b
	IUSHR           OpCode = 0x7c
	LUSHR           OpCode = 0x7d
	IAND            OpCode = 0x7e
	LAND            OpCode = 0x7f
	IOR             OpCode = 0x80
	LOR             OpCode = 0x81
	IXOR            OpCode = 0x82
	LXOR            OpCode = 0x83
	IINC            OpCode = 0x84
	I2L             OpCode = 0x85
	I2F             OpCode = 0x86
	I2D             OpCode = 0x87
	L2I             OpCode = 0x88
	L2F             OpCode = 0x89
	L2D             OpCode = 0x8a
	F2I             OpCode = 0x8b
	F2L             OpCode = 0x8c
	F2D             OpCode = 0x8d
	D2I             OpCode = 0x8e
	D2L             OpCode = 0x8f
	D2F             OpCode = 0x90
	I2B             OpCode = 0x91
	I2C             OpCode = 0x92
	I2S             OpCode = 0x93
	LCMP            OpCode = 0x94
	FCMPL           OpCode = 0x95
	FCMPG           OpCode = 0x96
	DCMPL           OpCode = 0x97
	DCMPG           OpCode = 0x98
	IFEQ            OpCode = 0x99
	IFNE            OpCode = 0x9a
	IFLT            OpCode = 0x9b
	IFGE            OpCode = 0x9c
	IFGT            OpCode = 0x9d
	IFLE            OpCode = 0x9e
	IF_ICMPEQ       OpCode = 0x9f
	IF_ICMPNE       OpCode = 0xa0
	IF_ICMPLT       OpCode = 0xa1
	IF_ICMPGE       OpCode = 0xa2
	IF_ICMPGT       OpCode = 0xa3
	IF_ICMPLE       OpCode = 0xa4
	IF_ACMPEQ       OpCode = 0xa5
	IF_ACMPNE       OpCode = 0xa6
	GOTO            OpCode = 0xa7
	JSR             OpCode = 0xa8
	RET             OpCode = 0xa9
	TABLESWITCH     OpCode = 0xaa
	LOOKUPSWITCH    OpCode = 0xab
	IRETURN         OpCode = 0xac
	LRETURN         OpCode = 0xad
	FRETURN         OpCode = 0xae
	DRETURN         OpCode = 0xaf
	ARETURN         OpCode = 0xb0
	RETURN          OpCode = 0xb1
	GETSTATIC       OpCode = 0xb2
	PUTSTATIC       OpCode = 0xb3
	GETFIELD        OpCode = 0xb4
	PUTFIELD        OpCode = 0xb5
	INVOKEVIRTUAL   OpCode = 0xb6
	INVOKESPECIAL   OpCode = 0xb7
	INVOKESTATIC    OpCode = 0xb8
	INVOKEINTERFACE OpCode = 0xb9
	INVOKEDYNAMIC   OpCode = 0xba
	NEW             OpCode = 0xbb
	NEWARRAY        OpCode = 0xbc
	ANEWARRAY       OpCode = 0xbd
	ARRAYLENGTH     OpCode = 0xbe
	ATHROW          OpCode = 0xbf
	CHECKCAST       OpCode = 0xc0
	INSTANCEOF      OpCode = 0xc1
	MONITORENTER    OpCode = 0xc2
	MONITOREXIT     OpCode = 0xc3
	WIDE            OpCode = 0xc4
	MULTIANEWARRAY  OpCode = 0xc5
	IFNULL          OpCode = 0xc6
	IFNONNULL       OpCode = 0xc7
	GOTO_W          OpCode = 0xc8
	JSR_W           OpCode = 0xc9
)

var opCodeNames = [256]string{
	NOP:             "nop",
	ACONST_NULL:     "aconst_null",
	ICONST_M1:       "iconst_m1",
	ICONST_0:        "iconst_0",
	ICONST_1:        "iconst_1",
	ICONST_2:        "iconst_2",
	ICONST_3:        "iconst_3",
	ICONST_4:        "iconst_4",
	ICONST_5:        "iconst_5",
	LCONST_0:        "lconst_0",
	LCONST_1:        "lconst_1",
	FCONST_0:        "fconst_0",
	FCONST_1:        "fconst_1",
	FCONST_2:        "fconst_2",
	DCONST_0:        "dconst_0",
	DCONST_1:        "dconst_1",
	BIPUSH:          "bipush",
	SIPUSH:          "sipush",
	LDC:             "ldc",
	LDC_W:           "ldc_w",
	LDC2_W:          "ldc2_w",
	ILOAD:           "iload",
	LLOAD:           "lload",
	FLOAD:           "fload",
	DLOAD:           "dload",
	ALOAD:           "aload",
	ILOAD_0:         "iload_0",
	ILOAD_1:         "iload_1",
	ILOAD_2:         "iload_2",
	ILOAD_3:         "iload_3",
	LLOAD_0:         "lload_0",
	LLOAD_1:         "lload_1",
	LLOAD_2:         "lload_2",
	LLOAD_3:         "lload_3",
	FLOAD_0:         "fload_0",
	FLOAD_1:         "fload_1",
	FLOAD_2:         "fload_2",
	FLOAD_3:         "fload_3",
	DLOAD_0:         "dload_0",
	DLOAD_1:         "dload_1",
	DLOAD_2:         "dload_2",
	DLOAD_3:         "dload_3",
	ALOAD_0:         "aload_0",
	ALOAD_1:         "aload_1",
	ALOAD_2:         "aload_2",
	ALOAD_3:         "aload_3",
	IALOAD:          "iaload",
	LALOAD:          "laload",
	FALOAD:          "faload",
	DALOAD:          "daload",
	AALOAD:          "aaload",
	BALOAD:          "baload",
	CALOAD:          "caload",
	SALOAD:          "saload",
	ISTORE:          "istore",
	LSTORE:          "lstore",
	FSTORE:          "fstore",
	DSTORE:          "dstore",
	ASTORE:          "astore",
	ISTORE_0:        "istore_0",
	ISTORE_1:        "istore_1",
	ISTORE_2:        "istore_2",
	ISTORE_3:        "istore_3",
	LSTORE_0:        "lstore_0",
	LSTORE_1:        "lstore_1",
	LSTORE_2:        "lstore_2",
	LSTORE_3:        "lstore_3",
	FSTORE_0:        "fstore_0",
	FSTORE_1:        "fstore_1",
	FSTORE_2:        "fstore_2",
	FSTORE_3:        "fstore_3",
	DSTORE_0:        "dstore_0",
	DSTORE_1:        "dstore_1",
	DSTORE_2:        "dstore_2",
	DSTORE_3:        "dstore_3",
	ASTORE_0:        "astore_0",
	ASTORE_1:        "astore_1",
	ASTORE_2:        "astore_2",
	ASTORE_3:        "astore_3",
	IASTORE:         "iastore",
	LASTORE:         "lastore",
	FASTORE:         "fastore",
	DASTORE:         "dastore",
	AASTORE:         "aastore",
	BASTORE:         "bastore",
	CASTORE:         "castore",
	SASTORE:         "sastore",
	POP:             "pop",
	POP2:            "pop2",
	DUP:             "dup",
	DUP_X1:          "dup_x1",
	DUP_X2:          "dup_x2",
	DUP2:            "dup2",
	DUP2_X1:         "dup2_x1",
	DUP2_X2:         "dup2_x2",
	SWAP:            "swap",
	IADD:            "iadd",
	LADD:            "ladd",
	FADD:            "fadd",
	DADD:            "dadd",
	ISUB:            "isub",
	LSUB:            "lsub",
	FSUB:            "fsub",
	DSUB:            "dsub",
	IMUL:            "imul",
	LMUL:            "lmul",
	FMUL:            "fmul",
	DMUL:            "dmul",
	IDIV:            "idiv",
	LDIV:            "ldiv",
	FDIV:            "fdiv",
	DDIV:            "ddiv",
	IREM:            "irem",
	LREM:            "lrem",
	FREM:            "frem",
	DREM:            "drem",
	INEG:            "ineg",
	LNEG:            "lneg",
	FNEG:            "fneg",
	DNEG:            "dneg",
	ISHL:            "ishl",
	LSHL:            "lshl",
	ISHR:            "ishr",
	LSHR:            "lshr",
	IUSHR:           "iushr",
	LUSHR:           "lushr",
	IAND:            "iand",
	LAND:            "land",
	IOR:             "ior",
	LOR:             "lor",
	IXOR:            "ixor",
	LXOR:            "lxor",
	IINC:            "iinc",
	I2L:             "i2l",
	I2F:             "i2f",
	I2D:             "i2d",
	L2I:             "l2i",
	L2F:             "l2f",
	L2D:             "l2d",
	F2I:             "f2i",
	F2L:             "f2l",
	F2D:             "f2d",
	D2I:             "d2i",
	D2L:             "d2l",
	D2F:             "d2f",
	I2B:             "i2b",
	I2C:             "i2c",
	I2S:             "i2s",
	LCMP:            "lcmp",
	FCMPL:           "fcmpl",
	FCMPG:           "fcmpg",
	DCMPL:           "dcmpl",
	DCMPG:           "dcmpg",
	IFEQ:            "ifeq",
	IFNE:            "ifne",
	IFLT:            "iflt",
	IFGE:            "ifge",
	IFGT:            "ifgt",
	IFLE:            "ifle",
	IF_ICMPEQ:       "if_icmpeq",
	IF_ICMPNE:       "if_icmpne",
	IF_ICMPLT:       "if_icmplt",
	IF_ICMPGE:       "if_icmpge",
	IF_ICMPGT:       "if_icmpgt",
	IF_ICMPLE:       "if_icmple",
	IF_ACMPEQ:       "if_acmpeq",
	IF_ACMPNE:       "if_acmpne",
	GOTO:            "goto",
	JSR:             "jsr",
	RET:             "ret",
	TABLESWITCH:     "tableswitch",
	LOOKUPSWITCH:    "lookupswitch",
	IRETURN:         "ireturn",
	LRETURN:         "lreturn",
	FRETURN:         "freturn",
	DRETURN:         "dreturn",
	ARETURN:         "areturn",
	RETURN:          "return",
	GETSTATIC:       "getstatic",
	PUTSTATIC:       "putstatic",
	GETFIELD:        "getfield",
	PUTFIELD:        "putfield",
	INVOKEVIRTUAL:   "invokevirtual",
	INVOKESPECIAL:   "invokespecial",
	INVOKESTATIC:    "invokestatic",
	INVOKEINTERFACE: "invokeinterface",
	INVOKEDYNAMIC:   "invokedynamic",
	NEW:             "new",
	NEWARRAY:        "newarray",
	ANEWARRAY:       "anewarray",
	ARRAYLENGTH:     "arraylength",
	ATHROW:          "athrow",
	CHECKCAST:       "checkcast",
	INSTANCEOF:      "instanceof",
	MONITORENTER:    "monitorenter",
	MONITOREXIT:     "monitorexit",
	WIDE:            "wide",
	MULTIANEWARRAY:  "multianewarray",
	IFNULL:          "ifnull",
	IFNONNULL:       "ifnonnull",
	GOTO_W:          "goto_w",
	JSR_W:           "jsr_w",
}

var opCodeByName = func() map[string]OpCode {
	m := make(map[string]OpCode, len(opCodeNames))
	for i, name := range opCodeNames {
		if name != "" {
			m[name] = OpCode(i)
		}
	}
	return m
}()

func (op OpCode) String() string {
	if name := opCodeNames[op]; name != "" {
		return name
	}
	return fmt.Sprintf("opcode 0x%02x", byte(op))
}

// Defined reports whether op is a known opcode
func (op OpCode) Defined() bool {
	return opCodeNames[op] != ""
}

// OpCodeByName looks up an opcode by its mnemonic
func OpCodeByName(name string) (OpCode, bool) {
	op, ok := opCodeByName[name]
	return op, ok
}

// IsBranch reports whether the instruction carries a jump target
func (op OpCode) IsBranch() bool {
	return (op >= IFEQ && op <= JSR) || op == IFNULL || op == IFNONNULL || op == GOTO_W || op == JSR_W
}

// IsSwitch reports whether the instruction is a table or lookup switch
func (op OpCode) IsSwitch() bool {
	return op == TABLESWITCH || op == LOOKUPSWITCH
}

// IsInvoke reports whether the instruction invokes a method
func (op OpCode) IsInvoke() bool {
	return op >= INVOKEVIRTUAL && op <= INVOKEDYNAMIC
}

// IsFieldAccess reports whether the instruction reads or writes a field
func (op OpCode) IsFieldAccess() bool {
	return op >= GETSTATIC && op <= PUTFIELD
}

// IsReturn reports whether the instruction returns from the current method
func (op OpCode) IsReturn() bool {
	return op >= IRETURN && op <= RETURN
}

// DeniedOpCodes are rejected wherever they appear in contract code
var DeniedOpCodes = map[OpCode]string{
	JSR:           "subroutine jump",
	JSR_W:         "subroutine jump",
	RET:           "subroutine return",
	INVOKEDYNAMIC: "dynamic invocation",
	MONITORENTER:  "monitor enter",
	MONITOREXIT:   "monitor exit",
}
