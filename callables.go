package garm

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Coercer transforms a value during normalization. Returning an error emits a
// coercion-failed error and leaves the original value in place.
type Coercer func(value any) (any, error)

// CheckFunc is a check_with handler. Implementations report failures through
// emit; each call produces one custom error for the field under validation.
type CheckFunc func(field string, value any, emit func(message string))

// DefaultSetter computes a default from the partially normalized sibling
// mapping. Setters may read siblings that were themselves defaulted.
type DefaultSetter func(siblings map[string]any) (any, error)

type callableRegistry[T any] struct {
	mu   sync.RWMutex
	defs map[string]T
}

func (r *callableRegistry[T]) add(name string, fn T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defs == nil {
		r.defs = map[string]T{}
	}
	r.defs[name] = fn
}

func (r *callableRegistry[T]) get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.defs[name]
	return fn, ok
}

var (
	coercers       callableRegistry[Coercer]
	checks         callableRegistry[CheckFunc]
	defaultSetters callableRegistry[DefaultSetter]
)

// RegisterCoercer makes fn addressable as `coerce: name` (and as a
// `rename_handler`). Built-in names: int, float, number, bool, str, upper,
// lower, strip. The codec package registers datetime and date on import.
func RegisterCoercer(name string, fn Coercer) { coercers.add(name, fn) }

// RegisterCheck makes fn addressable as `check_with: name`.
func RegisterCheck(name string, fn CheckFunc) { checks.add(name, fn) }

// RegisterDefaultSetter makes fn addressable as `default_setter: name`.
func RegisterDefaultSetter(name string, fn DefaultSetter) { defaultSetters.add(name, fn) }

// resolveCoercerChain turns a coerce/rename_handler constraint into a chain.
// The constraint may be a name, a Coercer, or a sequence of either.
func resolveCoercerChain(constraint any) ([]Coercer, error) {
	switch t := constraint.(type) {
	case Coercer:
		return []Coercer{t}, nil
	case func(any) (any, error):
		return []Coercer{t}, nil
	case string:
		fn, ok := coercers.get(t)
		if !ok {
			return nil, schemaErrorf("unknown coercer %q", t)
		}
		return []Coercer{fn}, nil
	default:
		seq := anySlice(constraint)
		if seq == nil {
			return nil, schemaErrorf("coerce constraint must be a name, a callable or a sequence thereof")
		}
		var chain []Coercer
		for _, e := range seq {
			sub, err := resolveCoercerChain(e)
			if err != nil {
				return nil, err
			}
			chain = append(chain, sub...)
		}
		return chain, nil
	}
}

func resolveCheckChain(constraint any) ([]CheckFunc, error) {
	switch t := constraint.(type) {
	case CheckFunc:
		return []CheckFunc{t}, nil
	case func(string, any, func(string)):
		return []CheckFunc{t}, nil
	case string:
		fn, ok := checks.get(t)
		if !ok {
			return nil, schemaErrorf("unknown check_with handler %q", t)
		}
		return []CheckFunc{fn}, nil
	default:
		seq := anySlice(constraint)
		if seq == nil {
			return nil, schemaErrorf("check_with constraint must be a name, a callable or a sequence thereof")
		}
		var chain []CheckFunc
		for _, e := range seq {
			sub, err := resolveCheckChain(e)
			if err != nil {
				return nil, err
			}
			chain = append(chain, sub...)
		}
		return chain, nil
	}
}

func resolveDefaultSetter(constraint any) (DefaultSetter, error) {
	switch t := constraint.(type) {
	case DefaultSetter:
		return t, nil
	case func(map[string]any) (any, error):
		return t, nil
	case string:
		fn, ok := defaultSetters.get(t)
		if !ok {
			return nil, schemaErrorf("unknown default_setter %q", t)
		}
		return fn, nil
	}
	return nil, schemaErrorf("default_setter constraint must be a name or a callable")
}

func init() {
	RegisterCoercer("int", coerceInt)
	RegisterCoercer("float", coerceFloat)
	RegisterCoercer("number", coerceNumber)
	RegisterCoercer("bool", coerceBool)
	RegisterCoercer("str", coerceString)
	RegisterCoercer("upper", func(v any) (any, error) { return stringOp(v, strings.ToUpper) })
	RegisterCoercer("lower", func(v any) (any, error) { return stringOp(v, strings.ToLower) })
	RegisterCoercer("strip", func(v any) (any, error) { return stringOp(v, strings.TrimSpace) })
}

func coerceInt(v any) (any, error) {
	if i, ok := toInt64(v); ok && !isBool(v) {
		return i, nil
	}
	if f, ok := toFloat64(v); ok {
		return int64(f), nil
	}
	if s, ok := v.(string); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to int", s)
		}
		return i, nil
	}
	return nil, fmt.Errorf("cannot coerce %T to int", v)
}

func coerceFloat(v any) (any, error) {
	if f, ok := toFloat64(v); ok {
		return f, nil
	}
	if i, ok := toInt64(v); ok && !isBool(v) {
		return float64(i), nil
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to float", s)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot coerce %T to float", v)
}

// coerceNumber yields an integer when the input has no fractional part.
func coerceNumber(v any) (any, error) {
	out, err := coerceFloat(v)
	if err != nil {
		return nil, err
	}
	f := out.(float64)
	if f == float64(int64(f)) {
		return int64(f), nil
	}
	return f, nil
}

func coerceBool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(t)))
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to bool", t)
		}
		return b, nil
	}
	if i, ok := toInt64(v); ok {
		return i != 0, nil
	}
	return nil, fmt.Errorf("cannot coerce %T to bool", v)
}

func coerceString(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case nil:
		return nil, fmt.Errorf("cannot coerce nil to string")
	}
	return fmt.Sprint(v), nil
}

func stringOp(v any, op func(string) string) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("cannot apply string coercion to %T", v)
	}
	return op(s), nil
}
