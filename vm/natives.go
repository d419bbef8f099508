package vm

import (
	"sort"
	"sync"
)

// NativeFunc implements a platform method. Instance methods receive the
// receiver as args[0].
type NativeFunc func(vm *VM, args []Value) (Value, error)

// StaticFieldFunc produces the value of a platform static field
type StaticFieldFunc func(vm *VM) (Value, error)

type platformClass struct {
	super        string
	interfaces   []string
	instantiable bool
}

// NativeRegistry maps platform classes and methods to their Go
// implementations. It is built once and shared read only.
type NativeRegistry struct {
	classes map[string]*platformClass
	methods map[string]NativeFunc
	fields  map[string]StaticFieldFunc
}

// NewNativeRegistry returns an empty registry knowing only java/lang/Object
func NewNativeRegistry() *NativeRegistry {
	r := &NativeRegistry{
		classes: make(map[string]*platformClass),
		methods: make(map[string]NativeFunc),
		fields:  make(map[string]StaticFieldFunc),
	}
	r.DefineClass(objectClass, "", true)
	return r
}

var (
	defaultNatives     *NativeRegistry
	defaultNativesOnce sync.Once
)

// DefaultNatives returns the registry with the full platform library
func DefaultNatives() *NativeRegistry {
	defaultNativesOnce.Do(func() {
		r := NewNativeRegistry()
		registerLang(r)
		registerBigInteger(r)
		registerSDK(r)
		defaultNatives = r
	})
	return defaultNatives
}

func methodKey(owner, name, desc string) string {
	return owner + "." + name + desc
}

// DefineClass declares a platform class and its place in the hierarchy
func (r *NativeRegistry) DefineClass(name, super string, instantiable bool, interfaces ...string) {
	r.classes[name] = &platformClass{super: super, interfaces: interfaces, instantiable: instantiable}
}

// Register binds a platform method
func (r *NativeRegistry) Register(owner, name, desc string, fn NativeFunc) {
	r.methods[methodKey(owner, name, desc)] = fn
}

// RegisterStaticField binds a platform static field
func (r *NativeRegistry) RegisterStaticField(owner, name string, fn StaticFieldFunc) {
	r.fields[owner+"."+name] = fn
}

// Resolve finds name+desc on class or its platform superclasses
func (r *NativeRegistry) Resolve(class, name, desc string) (NativeFunc, bool) {
	for i := 0; class != "" && i < len(r.classes)+1; i++ {
		if fn, ok := r.methods[methodKey(class, name, desc)]; ok {
			return fn, true
		}
		c, ok := r.classes[class]
		if !ok {
			return nil, false
		}
		class = c.super
	}
	return nil, false
}

// StaticField looks up a platform static field
func (r *NativeRegistry) StaticField(owner, name string) (StaticFieldFunc, bool) {
	fn, ok := r.fields[owner+"."+name]
	return fn, ok
}

// IsPlatformClass reports classes and interfaces the platform defines
func (r *NativeRegistry) IsPlatformClass(name string) bool {
	_, ok := r.classes[name]
	return ok
}

// Instantiable reports platform classes contract code may allocate with new
func (r *NativeRegistry) Instantiable(name string) bool {
	c, ok := r.classes[name]
	return ok && c.instantiable
}

// IsSubclass walks the platform hierarchy from class looking for target
func (r *NativeRegistry) IsSubclass(class, target string) bool {
	seen := make(map[string]bool)
	var walk func(name string) bool
	walk = func(name string) bool {
		if name == target {
			return true
		}
		if name == "" || seen[name] {
			return false
		}
		seen[name] = true
		c, ok := r.classes[name]
		if !ok {
			return false
		}
		for _, i := range c.interfaces {
			if walk(i) {
				return true
			}
		}
		return walk(c.super)
	}
	return walk(class)
}

// Methods lists every registered method key, sorted
func (r *NativeRegistry) Methods() []string {
	out := make([]string, 0, len(r.methods))
	for k := range r.methods {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
