package vm

import (
	"strings"

	"github.com/govm-net/contractvm/code"
	"github.com/govm-net/contractvm/heap"
)

// classOf is the runtime class of a reference; arrays report their descriptor
func classOf(v Value) string {
	switch x := v.(type) {
	case string:
		return heap.StringClass
	case *heap.ObjectHandle:
		return x.ClassName()
	}
	return code.ObjectClass
}

func (vm *VM) isInstance(obj *heap.ObjectHandle, target string) bool {
	return vm.isSubclass(obj.ClassName(), target)
}

func (vm *VM) isInstanceValue(v Value, target string) bool {
	return vm.isSubclass(classOf(v), target)
}

// isSubclass reports whether class is assignable to target. Array types
// are written as descriptors.
func (vm *VM) isSubclass(class, target string) bool {
	if class == target || target == code.ObjectClass {
		return true
	}
	if strings.HasPrefix(class, "[") {
		if !strings.HasPrefix(target, "[") {
			return target == "java/lang/Cloneable" || target == "java/io/Serializable"
		}
		se, te := class[1:], target[1:]
		sn, sok := refName(se)
		tn, tok := refName(te)
		if sok && tok {
			return vm.isSubclass(sn, tn)
		}
		return se == te
	}
	if vm.pkg.Contains(class) {
		if vm.pkg.Implements(class, target) {
			return true
		}
		class = vm.pkg.PlatformAncestor(class)
	}
	return vm.cfg.Natives.IsSubclass(class, target)
}

// refName maps a reference component descriptor to a class name or array descriptor
func refName(desc string) (string, bool) {
	switch {
	case strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";"):
		return desc[1 : len(desc)-1], true
	case strings.HasPrefix(desc, "["):
		return desc, true
	}
	return "", false
}
