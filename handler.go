package garm

import (
	"fmt"
	"strings"

	"github.com/reoring/garm/i18n"
)

// ErrorHandler converts the flat error list of one invocation into an output
// representation. Handlers must not retain the list between invocations.
type ErrorHandler interface {
	Handle(errors ErrorList) map[string]any
}

// BasicErrorHandler renders errors as a nested mapping of
// field -> [message, ..., {nested_field -> [...]}] with template messages
// looked up by error code. Messages may be overridden per code; unset codes
// fall back to the i18n catalog.
type BasicErrorHandler struct {
	Messages map[int]string
}

// NewBasicErrorHandler returns a handler using the i18n message catalog.
func NewBasicErrorHandler() *BasicErrorHandler {
	return &BasicErrorHandler{}
}

func (h *BasicErrorHandler) template(code int) string {
	if h.Messages != nil {
		if tpl, ok := h.Messages[code]; ok {
			return tpl
		}
	}
	return i18n.T(code, nil)
}

// Handle builds the nested output mapping. Non-string path segments (such as
// sequence indices) become their printed form.
func (h *BasicErrorHandler) Handle(errors ErrorList) map[string]any {
	root := map[string]any{}
	h.insertAll(root, errors)
	return root
}

func (h *BasicErrorHandler) insertAll(root map[string]any, errors ErrorList) {
	for _, err := range errors.sorted() {
		switch {
		case err.IsLogic():
			h.insertLogic(root, err)
		case err.IsGroup():
			h.insertAll(root, err.ChildErrors())
		default:
			h.insertMessage(root, err.DocumentPath, h.format(err))
		}
	}
}

func (h *BasicErrorHandler) insertLogic(root map[string]any, err *ValidationError) {
	h.insertMessage(root, err.DocumentPath, h.format(err))
	for i := 0; i < err.Definitions(); i++ {
		defErrors := err.DefinitionErrors(i)
		if len(defErrors) == 0 {
			continue
		}
		branch := map[string]any{}
		for _, child := range defErrors {
			rel := relativePath(child.DocumentPath, err.DocumentPath)
			if len(rel) == 0 {
				h.insertMessage(branch, []any{fmt.Sprintf("%s definition %d", err.Rule, i)}, h.format(child))
			} else {
				h.insertMessage(branch, append([]any{fmt.Sprintf("%s definition %d", err.Rule, i)}, rel...), h.format(child))
			}
		}
		h.insertNested(root, err.DocumentPath, branch)
	}
}

// insertMessage appends message to the bucket at path, creating intermediate
// nested mappings as needed.
func (h *BasicErrorHandler) insertMessage(root map[string]any, path []any, message string) {
	if len(path) == 0 {
		// Top-level document errors land under an empty field name.
		path = []any{""}
	}
	node := root
	for i, seg := range path {
		key := fmt.Sprint(seg)
		bucket, _ := node[key].([]any)
		if i == len(path)-1 {
			node[key] = appendMessage(bucket, message)
			return
		}
		nested, tail := nestedMap(bucket)
		if nested == nil {
			nested = map[string]any{}
			node[key] = append(tail, nested)
		}
		node = nested
	}
}

// insertNested merges branch into the nested mapping at path.
func (h *BasicErrorHandler) insertNested(root map[string]any, path []any, branch map[string]any) {
	if len(path) == 0 {
		path = []any{""}
	}
	node := root
	for _, seg := range path {
		key := fmt.Sprint(seg)
		bucket, _ := node[key].([]any)
		nested, tail := nestedMap(bucket)
		if nested == nil {
			nested = map[string]any{}
			node[key] = append(tail, nested)
		}
		node = nested
	}
	for k, v := range branch {
		if existing, ok := node[k].([]any); ok {
			if add, ok := v.([]any); ok {
				node[k] = append(existing, add...)
				continue
			}
		}
		node[k] = v
	}
}

// appendMessage keeps the optional nested mapping as the bucket's last element.
func appendMessage(bucket []any, message string) []any {
	if nested, tail := nestedMap(bucket); nested != nil {
		return append(append(tail, message), nested)
	}
	return append(bucket, message)
}

// nestedMap splits a bucket into its nested mapping (if any) and the rest.
func nestedMap(bucket []any) (map[string]any, []any) {
	if len(bucket) == 0 {
		return nil, bucket
	}
	if m, ok := bucket[len(bucket)-1].(map[string]any); ok {
		return m, bucket[:len(bucket)-1]
	}
	return nil, bucket
}

// format renders one error through its message template. Substitutions:
// {constraint}, {value}, {field}, and {0}..{n} for the error's info entries.
func (h *BasicErrorHandler) format(err *ValidationError) string {
	tpl := h.template(err.Code)
	out := tpl
	out = strings.ReplaceAll(out, "{constraint}", printValue(err.Constraint))
	out = strings.ReplaceAll(out, "{value}", printValue(err.Value))
	if len(err.DocumentPath) > 0 {
		out = strings.ReplaceAll(out, "{field}", fmt.Sprint(err.DocumentPath[len(err.DocumentPath)-1]))
	}
	for i, info := range err.Info {
		out = strings.ReplaceAll(out, fmt.Sprintf("{%d}", i), printValue(info))
	}
	return out
}

func printValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = printValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case nil:
		return "None"
	default:
		return fmt.Sprint(v)
	}
}

// relativePath strips the prefix base from path when path descends below it.
func relativePath(path, base []any) []any {
	if len(path) < len(base) {
		return path
	}
	for i := range base {
		if !deepEqual(path[i], base[i]) {
			return path
		}
	}
	return path[len(base):]
}
