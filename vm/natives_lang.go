package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/heap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	objectClass        = code.ObjectClass
	stringClass        = heap.StringClass
	stringBuilderClass = "java/lang/StringBuilder"
	throwableClass     = "java/lang/Throwable"
	integerClass       = "java/lang/Integer"
	longClass          = "java/lang/Long"
	booleanClass       = "java/lang/Boolean"
	mathClass          = "java/lang/Math"

	numberFormatException = "java/lang/NumberFormatException"
	stringIndexException  = "java/lang/StringIndexOutOfBoundsException"

	throwableMessage = "detailMessage"
	boxValue         = "value"
	builderValue     = "value"
)

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

func str(v Value) string {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			raise(fmt.Errorf("%w: string argument", ErrNullReference))
		}
		raisef(ErrTypeMismatch, "want string, got %T", v)
	}
	return s
}

func i32(v Value) int32 {
	i, ok := v.(int32)
	if !ok {
		raisef(ErrTypeMismatch, "want int, got %T", v)
	}
	return i
}

func i64(v Value) int64 {
	i, ok := v.(int64)
	if !ok {
		raisef(ErrTypeMismatch, "want long, got %T", v)
	}
	return i
}

func object(v Value) *heap.ObjectHandle {
	hd, ok := v.(*heap.ObjectHandle)
	if !ok {
		if v == nil {
			raise(fmt.Errorf("%w: object argument", ErrNullReference))
		}
		raisef(ErrTypeMismatch, "want object, got %T", v)
	}
	return hd
}

func identityHash(v Value) int32 {
	switch x := v.(type) {
	case string:
		return stringHash(x)
	case *heap.ObjectHandle:
		return stringHash(x.Key())
	}
	return 0
}

// stringOf is String.valueOf(Object): it dispatches to toString, running
// contract code when the class overrides it
func (vm *VM) stringOf(v Value) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	case *heap.ObjectHandle:
		class := x.ClassName()
		if vm.pkg.Contains(class) {
			if m := vm.pkg.FindMethod(class, "toString", "()Ljava/lang/String;"); m != nil && m.HasCode() {
				r, err := vm.CallMethod(m, x)
				if err != nil {
					return "", err
				}
				if r == nil {
					return "null", nil
				}
				return str(r), nil
			}
			class = vm.pkg.PlatformAncestor(class)
		}
		if strings.HasPrefix(class, "[") {
			class = objectClass
		}
		fn, ok := vm.cfg.Natives.Resolve(class, "toString", "()Ljava/lang/String;")
		if !ok {
			return "", fmt.Errorf("%w: %s.toString", ErrUnsupportedMethod, class)
		}
		r, err := fn(vm, []Value{x})
		if err != nil {
			return "", err
		}
		return str(r), nil
	}
	return fmt.Sprint(v), nil
}

// newString applies the string limit and charges per character
func (vm *VM) newString(s string) (Value, error) {
	if err := vm.checkString(s); err != nil {
		return nil, err
	}
	if err := vm.charge(uint64(len(s)) * vm.cfg.Schedule.PerChar); err != nil {
		return nil, err
	}
	return s, nil
}

func registerLang(r *NativeRegistry) {
	r.DefineClass(stringClass, objectClass, false, "java/lang/CharSequence", "java/lang/Comparable")
	r.DefineClass("java/lang/CharSequence", "", false)
	r.DefineClass("java/lang/Comparable", "", false)
	r.DefineClass("java/lang/Cloneable", "", false)
	r.DefineClass("java/io/Serializable", "", false)
	r.DefineClass(stringBuilderClass, objectClass, true, "java/lang/CharSequence")
	r.DefineClass("java/lang/Number", objectClass, false)
	r.DefineClass(integerClass, "java/lang/Number", false, "java/lang/Comparable")
	r.DefineClass(longClass, "java/lang/Number", false, "java/lang/Comparable")
	r.DefineClass(booleanClass, objectClass, false)
	r.DefineClass(mathClass, objectClass, false)

	for _, c := range [][2]string{
		{throwableClass, objectClass},
		{"java/lang/Exception", throwableClass},
		{"java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
		{numberFormatException, "java/lang/IllegalArgumentException"},
		{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
		{arithmeticException, "java/lang/RuntimeException"},
		{"java/lang/NullPointerException", "java/lang/RuntimeException"},
		{classCastException, "java/lang/RuntimeException"},
		{negativeArraySizeException, "java/lang/RuntimeException"},
		{"java/lang/UnsupportedOperationException", "java/lang/RuntimeException"},
		{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
		{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
		{stringIndexException, "java/lang/IndexOutOfBoundsException"},
	} {
		r.DefineClass(c[0], c[1], true, "java/io/Serializable")
	}

	registerObject(r)
	registerThrowable(r)
	registerString(r)
	registerStringBuilder(r)
	registerBoxes(r)
	registerMath(r)
}

func registerObject(r *NativeRegistry) {
	r.Register(objectClass, code.ConstructorName, "()V", func(*VM, []Value) (Value, error) {
		return nil, nil
	})
	r.Register(objectClass, "equals", "(Ljava/lang/Object;)Z", func(_ *VM, args []Value) (Value, error) {
		return boolValue(args[0] == args[1]), nil
	})
	r.Register(objectClass, "hashCode", "()I", func(_ *VM, args []Value) (Value, error) {
		return identityHash(args[0]), nil
	})
	r.Register(objectClass, "toString", "()Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return fmt.Sprintf("%s@%x", code.JavaName(classOf(args[0])), uint32(identityHash(args[0]))), nil
	})
}

func registerThrowable(r *NativeRegistry) {
	r.Register(throwableClass, code.ConstructorName, "()V", func(*VM, []Value) (Value, error) {
		return nil, nil
	})
	r.Register(throwableClass, code.ConstructorName, "(Ljava/lang/String;)V", func(vm *VM, args []Value) (Value, error) {
		return nil, vm.heap.PutField(object(args[0]), throwableMessage, args[1])
	})
	r.Register(throwableClass, "getMessage", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		return vm.heap.GetField(object(args[0]), throwableMessage, "Ljava/lang/String;")
	})
	r.Register(throwableClass, "toString", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		obj := object(args[0])
		name := code.JavaName(obj.ClassName())
		if msg := vm.exceptionMessage(obj); msg != "" {
			return name + ": " + msg, nil
		}
		return name, nil
	})
}

func stringIndexError(vm *VM, format string, args ...any) error {
	return vm.throwNew(stringIndexException, fmt.Sprintf(format, args...))
}

func registerString(r *NativeRegistry) {
	const owner = stringClass
	r.Register(owner, "length", "()I", func(_ *VM, args []Value) (Value, error) {
		return int32(utf16Len(str(args[0]))), nil
	})
	r.Register(owner, "isEmpty", "()Z", func(_ *VM, args []Value) (Value, error) {
		return boolValue(str(args[0]) == ""), nil
	})
	r.Register(owner, "charAt", "(I)C", func(vm *VM, args []Value) (Value, error) {
		u := toUTF16(str(args[0]))
		i := i32(args[1])
		if i < 0 || int(i) >= len(u) {
			return nil, stringIndexError(vm, "index %d, length %d", i, len(u))
		}
		return int32(u[i]), nil
	})
	r.Register(owner, "equals", "(Ljava/lang/Object;)Z", func(_ *VM, args []Value) (Value, error) {
		s, ok := args[1].(string)
		return boolValue(ok && s == str(args[0])), nil
	})
	r.Register(owner, "equalsIgnoreCase", "(Ljava/lang/String;)Z", func(_ *VM, args []Value) (Value, error) {
		s, ok := args[1].(string)
		return boolValue(ok && strings.EqualFold(s, str(args[0]))), nil
	})
	r.Register(owner, "hashCode", "()I", func(_ *VM, args []Value) (Value, error) {
		return stringHash(str(args[0])), nil
	})
	r.Register(owner, "toString", "()Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return str(args[0]), nil
	})
	r.Register(owner, "concat", "(Ljava/lang/String;)Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		return vm.newString(str(args[0]) + str(args[1]))
	})
	substring := func(vm *VM, s string, begin, end int32) (Value, error) {
		u := toUTF16(s)
		if begin < 0 || end > int32(len(u)) || begin > end {
			return nil, stringIndexError(vm, "begin %d, end %d, length %d", begin, end, len(u))
		}
		return vm.newString(fromUTF16(u[begin:end]))
	}
	r.Register(owner, "substring", "(I)Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		s := str(args[0])
		return substring(vm, s, i32(args[1]), int32(utf16Len(s)))
	})
	r.Register(owner, "substring", "(II)Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		return substring(vm, str(args[0]), i32(args[1]), i32(args[2]))
	})
	r.Register(owner, "indexOf", "(Ljava/lang/String;)I", func(_ *VM, args []Value) (Value, error) {
		s, sub := str(args[0]), str(args[1])
		i := strings.Index(s, sub)
		if i < 0 {
			return int32(-1), nil
		}
		return int32(utf16Len(s[:i])), nil
	})
	r.Register(owner, "contains", "(Ljava/lang/CharSequence;)Z", func(vm *VM, args []Value) (Value, error) {
		sub, err := vm.stringOf(args[1])
		if err != nil {
			return nil, err
		}
		return boolValue(strings.Contains(str(args[0]), sub)), nil
	})
	r.Register(owner, "startsWith", "(Ljava/lang/String;)Z", func(_ *VM, args []Value) (Value, error) {
		return boolValue(strings.HasPrefix(str(args[0]), str(args[1]))), nil
	})
	r.Register(owner, "endsWith", "(Ljava/lang/String;)Z", func(_ *VM, args []Value) (Value, error) {
		return boolValue(strings.HasSuffix(str(args[0]), str(args[1]))), nil
	})
	r.Register(owner, "trim", "()Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		// String.trim strips code units <= ' '
		return strings.TrimFunc(str(args[0]), func(r rune) bool { return r <= ' ' }), nil
	})
	r.Register(owner, "toUpperCase", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		return vm.newString(upperCaser.String(str(args[0])))
	})
	r.Register(owner, "toLowerCase", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		return vm.newString(lowerCaser.String(str(args[0])))
	})
	r.Register(owner, "compareTo", "(Ljava/lang/String;)I", func(_ *VM, args []Value) (Value, error) {
		a, b := toUTF16(str(args[0])), toUTF16(str(args[1]))
		for i := 0; i < len(a) && i < len(b); i++ {
			if a[i] != b[i] {
				return int32(a[i]) - int32(b[i]), nil
			}
		}
		return int32(len(a) - len(b)), nil
	})

	r.Register(owner, "valueOf", "(I)Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return strconv.Itoa(int(i32(args[0]))), nil
	})
	r.Register(owner, "valueOf", "(J)Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return strconv.FormatInt(i64(args[0]), 10), nil
	})
	r.Register(owner, "valueOf", "(Z)Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return strconv.FormatBool(i32(args[0]) != 0), nil
	})
	r.Register(owner, "valueOf", "(C)Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return fromUTF16([]uint16{uint16(i32(args[0]))}), nil
	})
	r.Register(owner, "valueOf", "(Ljava/lang/Object;)Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		return vm.stringOf(args[0])
	})
}

func registerStringBuilder(r *NativeRegistry) {
	const owner = stringBuilderClass
	r.Register(owner, code.ConstructorName, "()V", func(vm *VM, args []Value) (Value, error) {
		return nil, vm.heap.PutField(object(args[0]), builderValue, "")
	})
	r.Register(owner, code.ConstructorName, "(Ljava/lang/String;)V", func(vm *VM, args []Value) (Value, error) {
		return nil, vm.heap.PutField(object(args[0]), builderValue, str(args[1]))
	})
	current := func(vm *VM, sb *heap.ObjectHandle) (string, error) {
		v, err := vm.heap.GetField(sb, builderValue, "Ljava/lang/String;")
		if err != nil {
			return "", err
		}
		s, _ := v.(string)
		return s, nil
	}
	appendString := func(vm *VM, sb *heap.ObjectHandle, tail string) (Value, error) {
		s, err := current(vm, sb)
		if err != nil {
			return nil, err
		}
		if err := vm.checkString(s + tail); err != nil {
			return nil, err
		}
		if err := vm.charge(uint64(len(tail)) * vm.cfg.Schedule.PerChar); err != nil {
			return nil, err
		}
		return sb, vm.heap.PutField(sb, builderValue, s+tail)
	}
	const ret = ")Ljava/lang/StringBuilder;"
	r.Register(owner, "append", "(Ljava/lang/String;"+ret, func(vm *VM, args []Value) (Value, error) {
		tail := "null"
		if args[1] != nil {
			tail = str(args[1])
		}
		return appendString(vm, object(args[0]), tail)
	})
	r.Register(owner, "append", "(Ljava/lang/Object;"+ret, func(vm *VM, args []Value) (Value, error) {
		tail, err := vm.stringOf(args[1])
		if err != nil {
			return nil, err
		}
		return appendString(vm, object(args[0]), tail)
	})
	r.Register(owner, "append", "(I"+ret, func(vm *VM, args []Value) (Value, error) {
		return appendString(vm, object(args[0]), strconv.Itoa(int(i32(args[1]))))
	})
	r.Register(owner, "append", "(J"+ret, func(vm *VM, args []Value) (Value, error) {
		return appendString(vm, object(args[0]), strconv.FormatInt(i64(args[1]), 10))
	})
	r.Register(owner, "append", "(Z"+ret, func(vm *VM, args []Value) (Value, error) {
		return appendString(vm, object(args[0]), strconv.FormatBool(i32(args[1]) != 0))
	})
	r.Register(owner, "append", "(C"+ret, func(vm *VM, args []Value) (Value, error) {
		return appendString(vm, object(args[0]), fromUTF16([]uint16{uint16(i32(args[1]))}))
	})
	r.Register(owner, "append", "(D"+ret, func(vm *VM, args []Value) (Value, error) {
		d, ok := args[1].(float64)
		if !ok {
			raisef(ErrTypeMismatch, "want double, got %T", args[1])
		}
		return appendString(vm, object(args[0]), formatDouble(d, 64))
	})
	r.Register(owner, "length", "()I", func(vm *VM, args []Value) (Value, error) {
		s, err := current(vm, object(args[0]))
		return int32(utf16Len(s)), err
	})
	r.Register(owner, "toString", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		return current(vm, object(args[0]))
	})
}

func registerBoxes(r *NativeRegistry) {
	box := func(class string) NativeFunc {
		return func(vm *VM, args []Value) (Value, error) {
			obj, err := vm.heap.NewObject(class)
			if err != nil {
				return nil, err
			}
			return obj, vm.heap.PutField(obj, boxValue, args[0])
		}
	}
	unbox := func(desc string) NativeFunc {
		return func(vm *VM, args []Value) (Value, error) {
			return vm.heap.GetField(object(args[0]), boxValue, desc)
		}
	}
	boxEquals := func(desc string) NativeFunc {
		return func(vm *VM, args []Value) (Value, error) {
			other, ok := args[1].(*heap.ObjectHandle)
			this := object(args[0])
			if !ok || other.ClassName() != this.ClassName() {
				return int32(0), nil
			}
			a, err := vm.heap.GetField(this, boxValue, desc)
			if err != nil {
				return nil, err
			}
			b, err := vm.heap.GetField(other, boxValue, desc)
			if err != nil {
				return nil, err
			}
			return boolValue(a == b), nil
		}
	}
	numberFormat := func(vm *VM, s string) error {
		return vm.throwNew(numberFormatException, fmt.Sprintf("For input string: %q", s))
	}

	// Integer
	r.Register(integerClass, "valueOf", "(I)Ljava/lang/Integer;", box(integerClass))
	r.Register(integerClass, "intValue", "()I", unbox("I"))
	r.Register(integerClass, "equals", "(Ljava/lang/Object;)Z", boxEquals("I"))
	r.Register(integerClass, "hashCode", "()I", unbox("I"))
	r.Register(integerClass, "parseInt", "(Ljava/lang/String;)I", func(vm *VM, args []Value) (Value, error) {
		s := str(args[0])
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, numberFormat(vm, s)
		}
		return int32(n), nil
	})
	r.Register(integerClass, "toString", "(I)Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return strconv.Itoa(int(i32(args[0]))), nil
	})
	r.Register(integerClass, "toString", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		v, err := vm.heap.GetField(object(args[0]), boxValue, "I")
		if err != nil {
			return nil, err
		}
		return strconv.Itoa(int(i32(v))), nil
	})

	// Long
	r.Register(longClass, "valueOf", "(J)Ljava/lang/Long;", box(longClass))
	r.Register(longClass, "longValue", "()J", unbox("J"))
	r.Register(longClass, "equals", "(Ljava/lang/Object;)Z", boxEquals("J"))
	r.Register(longClass, "hashCode", "()I", func(vm *VM, args []Value) (Value, error) {
		v, err := vm.heap.GetField(object(args[0]), boxValue, "J")
		if err != nil {
			return nil, err
		}
		l := i64(v)
		return int32(l ^ int64(uint64(l)>>32)), nil
	})
	r.Register(longClass, "parseLong", "(Ljava/lang/String;)J", func(vm *VM, args []Value) (Value, error) {
		s := str(args[0])
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, numberFormat(vm, s)
		}
		return n, nil
	})
	r.Register(longClass, "toString", "(J)Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return strconv.FormatInt(i64(args[0]), 10), nil
	})
	r.Register(longClass, "toString", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		v, err := vm.heap.GetField(object(args[0]), boxValue, "J")
		if err != nil {
			return nil, err
		}
		return strconv.FormatInt(i64(v), 10), nil
	})

	// Boolean
	r.Register(booleanClass, "valueOf", "(Z)Ljava/lang/Boolean;", box(booleanClass))
	r.Register(booleanClass, "booleanValue", "()Z", unbox("Z"))
	r.Register(booleanClass, "equals", "(Ljava/lang/Object;)Z", boxEquals("Z"))
	r.Register(booleanClass, "parseBoolean", "(Ljava/lang/String;)Z", func(_ *VM, args []Value) (Value, error) {
		s, _ := args[0].(string)
		return boolValue(strings.EqualFold(s, "true")), nil
	})
	r.Register(booleanClass, "toString", "(Z)Ljava/lang/String;", func(_ *VM, args []Value) (Value, error) {
		return strconv.FormatBool(i32(args[0]) != 0), nil
	})
	r.Register(booleanClass, "toString", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		v, err := vm.heap.GetField(object(args[0]), boxValue, "Z")
		if err != nil {
			return nil, err
		}
		return strconv.FormatBool(i32(v) != 0), nil
	})
}

func registerMath(r *NativeRegistry) {
	r.Register(mathClass, "max", "(II)I", func(_ *VM, args []Value) (Value, error) {
		return max(i32(args[0]), i32(args[1])), nil
	})
	r.Register(mathClass, "min", "(II)I", func(_ *VM, args []Value) (Value, error) {
		return min(i32(args[0]), i32(args[1])), nil
	})
	r.Register(mathClass, "abs", "(I)I", func(_ *VM, args []Value) (Value, error) {
		// abs(MinInt32) overflows to itself
		if v := i32(args[0]); v < 0 {
			return -v, nil
		}
		return args[0], nil
	})
	r.Register(mathClass, "max", "(JJ)J", func(_ *VM, args []Value) (Value, error) {
		return max(i64(args[0]), i64(args[1])), nil
	})
	r.Register(mathClass, "min", "(JJ)J", func(_ *VM, args []Value) (Value, error) {
		return min(i64(args[0]), i64(args[1])), nil
	})
	r.Register(mathClass, "abs", "(J)J", func(_ *VM, args []Value) (Value, error) {
		if v := i64(args[0]); v < 0 {
			return -v, nil
		}
		return args[0], nil
	})
}
