package garm

import (
	"bytes"
	"fmt"
	"sort"
	"time"
)

// deepCopy clones a document value tree. Containers are rebuilt, scalars are
// shared (all supported scalars are immutable from the engine's perspective).
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case Set:
		out := make(Set, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case FrozenSet:
		out := make(FrozenSet, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case Tuple:
		out := make(Tuple, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	case *bytes.Buffer:
		out := bytes.NewBuffer(nil)
		out.Write(t.Bytes())
		return out
	default:
		return v
	}
}

// deepEqual compares two document values structurally. Sequences compare
// element-wise in order; Set and FrozenSet compare order-insensitively.
// Numeric values compare across integer and float kinds.
func deepEqual(a, b any) bool {
	switch ta := a.(type) {
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !deepEqual(va, vb) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		return ok && sequenceEqual(ta, tb)
	case Tuple:
		tb, ok := b.(Tuple)
		return ok && sequenceEqual(ta, tb)
	case Set:
		tb, ok := b.(Set)
		return ok && setEqual(ta, tb)
	case FrozenSet:
		tb, ok := b.(FrozenSet)
		return ok && setEqual(ta, tb)
	case []byte:
		tb, ok := b.([]byte)
		return ok && bytes.Equal(ta, tb)
	case *bytes.Buffer:
		tb, ok := b.(*bytes.Buffer)
		return ok && bytes.Equal(ta.Bytes(), tb.Bytes())
	case time.Time:
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	case nil:
		return b == nil
	default:
		if ia, aInt := toInt64(a); aInt {
			if ib, bInt := toInt64(b); bInt {
				return ia == ib
			}
			if fb, bFloat := toFloat64(b); bFloat {
				return float64(ia) == fb
			}
			return false
		}
		if fa, aFloat := toFloat64(a); aFloat {
			if ib, bInt := toInt64(b); bInt {
				return fa == float64(ib)
			}
			if fb, bFloat := toFloat64(b); bFloat {
				return fa == fb
			}
			return false
		}
		return a == b
	}
}

func sequenceEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !deepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func setEqual(a, b []any) bool {
	for _, va := range a {
		if !containsValue(b, va) {
			return false
		}
	}
	for _, vb := range b {
		if !containsValue(a, vb) {
			return false
		}
	}
	return true
}

// fingerprint renders a canonical, order-independent textual form of a value
// tree. It backs the meta-validation cache.
func fingerprint(v any) string {
	var b bytes.Buffer
	writeFingerprint(&b, v)
	return b.String()
}

func writeFingerprint(b *bytes.Buffer, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("m{")
		for _, k := range keys {
			fmt.Fprintf(b, "%q:", k)
			writeFingerprint(b, t[k])
			b.WriteByte(',')
		}
		b.WriteByte('}')
	case []any:
		b.WriteString("s[")
		for _, e := range t {
			writeFingerprint(b, e)
			b.WriteByte(',')
		}
		b.WriteByte(']')
	case Tuple:
		b.WriteString("t[")
		for _, e := range t {
			writeFingerprint(b, e)
			b.WriteByte(',')
		}
		b.WriteByte(']')
	case Set, FrozenSet:
		elems := anySlice(t)
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = fingerprint(e)
		}
		sort.Strings(parts)
		b.WriteString("S{")
		for _, p := range parts {
			b.WriteString(p)
			b.WriteByte(',')
		}
		b.WriteByte('}')
	case string:
		fmt.Fprintf(b, "%q", t)
	case []byte:
		fmt.Fprintf(b, "b%q", t)
	case nil:
		b.WriteString("nil")
	default:
		fmt.Fprintf(b, "%T:%v", v, v)
	}
}

// anySlice widens the set-like named slice kinds to []any.
func anySlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case Set:
		return t
	case FrozenSet:
		return t
	case Tuple:
		return t
	}
	return nil
}
