package garm

import (
	"bytes"
	"reflect"
	"sort"
	"sync"
	"time"
)

// TypeDefinition describes a named data type. Either Check tests values
// directly, or Included/Excluded compose the definition from other registered
// type names: a value matches when any included type matches and no excluded
// type does.
type TypeDefinition struct {
	Name     string
	Check    func(value any) bool
	Included []string
	Excluded []string
}

type typeRegistry struct {
	mu    sync.RWMutex
	types map[string]TypeDefinition
}

var defaultTypes = newTypeRegistry()

func newTypeRegistry() *typeRegistry {
	r := &typeRegistry{types: map[string]TypeDefinition{}}
	for _, def := range builtinTypes() {
		r.types[def.Name] = def
	}
	return r
}

// RegisterTypes adds or replaces type definitions in the shared registry.
// Composed definitions resolve their Included/Excluded names lazily, when a
// value is checked, so a definition may name types registered after it.
// Cycles among composed definitions are not detected.
func RegisterTypes(defs ...TypeDefinition) error {
	defaultTypes.mu.Lock()
	defer defaultTypes.mu.Unlock()
	for _, def := range defs {
		if def.Name == "" {
			return schemaErrorf("type definition without a name")
		}
		if def.Check == nil && len(def.Included) == 0 {
			return schemaErrorf("type definition %q has neither a check nor included types", def.Name)
		}
		defaultTypes.types[def.Name] = def
	}
	return nil
}

// TypeNames returns the sorted names of all registered types.
func TypeNames() []string {
	defaultTypes.mu.RLock()
	defer defaultTypes.mu.RUnlock()
	names := make([]string, 0, len(defaultTypes.types))
	for name := range defaultTypes.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *typeRegistry) lookup(name string) (TypeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[name]
	return def, ok
}

// matches reports whether value satisfies the named type. Unknown names never
// match; meta-validation rejects them before documents are processed.
func (r *typeRegistry) matches(name string, value any) bool {
	def, ok := r.lookup(name)
	if !ok {
		return false
	}
	return r.matchesDef(def, value)
}

func (r *typeRegistry) matchesDef(def TypeDefinition, value any) bool {
	if def.Check != nil {
		return def.Check(value)
	}
	for _, ex := range def.Excluded {
		if r.matches(ex, value) {
			return false
		}
	}
	for _, in := range def.Included {
		if r.matches(in, value) {
			return true
		}
	}
	return false
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

func isInteger(v any) bool {
	_, ok := toInt64(v)
	return ok && !isBool(v)
}

func isFloat(v any) bool {
	if _, ok := toFloat64(v); ok {
		return true
	}
	// Integral values satisfy the float type, as in dynamically typed hosts.
	return isInteger(v)
}

func isNumber(v any) bool {
	if _, ok := toFloat64(v); ok {
		return true
	}
	return isInteger(v)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isBytes(v any) bool {
	_, ok := v.([]byte)
	return ok
}

func isBytesBuffer(v any) bool {
	_, ok := v.(*bytes.Buffer)
	return ok
}

func isMapping(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func isTuple(v any) bool {
	_, ok := v.(Tuple)
	return ok
}

func isSet(v any) bool {
	_, ok := v.(Set)
	return ok
}

func isFrozenSet(v any) bool {
	_, ok := v.(FrozenSet)
	return ok
}

func isComplex(v any) bool {
	switch v.(type) {
	case complex64, complex128:
		return true
	}
	return false
}

func isDate(v any) bool {
	_, ok := v.(Date)
	return ok
}

func isDateTime(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

func isType(v any) bool {
	_, ok := v.(reflect.Type)
	return ok
}

func builtinTypes() []TypeDefinition {
	return []TypeDefinition{
		{Name: "boolean", Check: isBool},
		{Name: "integer", Check: isInteger},
		{Name: "float", Check: isFloat},
		{Name: "number", Check: isNumber},
		{Name: "string", Check: isString},
		{Name: "bytes", Check: isBytes},
		{Name: "bytesarray", Check: isBytesBuffer},
		{Name: "date", Check: isDate},
		{Name: "datetime", Check: isDateTime},
		{Name: "dict", Check: isMapping},
		{Name: "list", Check: isList},
		{Name: "tuple", Check: isTuple},
		{Name: "set", Check: isSet},
		{Name: "frozenset", Check: isFrozenSet},
		{Name: "complex", Check: isComplex},
		{Name: "type", Check: isType},

		// Abstract container algebra.
		{Name: "Mapping", Included: []string{"dict"}},
		{Name: "Sequence", Check: func(v any) bool { return isList(v) || isTuple(v) }},
		{Name: "Set", Check: func(v any) bool { return isSet(v) || isFrozenSet(v) }},
		{Name: "Sized", Check: func(v any) bool { _, ok := lengthOf(v); return ok }},
		{Name: "Iterable", Check: func(v any) bool {
			return isList(v) || isTuple(v) || isSet(v) || isFrozenSet(v) || isMapping(v) || isString(v) || isBytes(v)
		}},
		{Name: "Container", Check: func(v any) bool {
			return isList(v) || isTuple(v) || isSet(v) || isFrozenSet(v) || isMapping(v) || isString(v)
		}},
	}
}

// lengthOf returns the size of a sized value.
func lengthOf(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return len(t), true
	case []byte:
		return len(t), true
	case *bytes.Buffer:
		return t.Len(), true
	case []any:
		return len(t), true
	case Tuple:
		return len(t), true
	case Set:
		return len(t), true
	case FrozenSet:
		return len(t), true
	case map[string]any:
		return len(t), true
	}
	return 0, false
}
