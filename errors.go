package garm

import (
	"fmt"
	"sort"
	"strings"
)

// Error code bit layout. The low bits identify the condition; the high bits
// classify it: CodeGroup marks errors that carry child errors, CodeNormalization
// marks errors emitted by the normalization phase, and CodeLogic marks errors
// emitted by a combinator rule. User-defined rules must emit codes at
// CodeUserStart or above.
const (
	CodeNormalization = 0x60
	CodeGroup         = 0x80
	CodeLogic         = 0x90
	CodeUserStart     = 0x100
)

// ErrorDefinition ties a numeric error code to the rule that emits it.
// Definitions are the vocabulary shared by the engine, the error handlers,
// and the message catalog.
type ErrorDefinition struct {
	Code int
	Rule string
}

var (
	ErrCustom                = ErrorDefinition{0x00, ""}
	ErrDocumentMissing       = ErrorDefinition{0x01, ""}
	ErrRequiredField         = ErrorDefinition{0x02, "required"}
	ErrUnknownField          = ErrorDefinition{0x03, ""}
	ErrDependenciesField     = ErrorDefinition{0x04, "dependencies"}
	ErrDependenciesFieldValue = ErrorDefinition{0x05, "dependencies"}
	ErrExcludesField         = ErrorDefinition{0x06, "excludes"}

	ErrDocumentFormat  = ErrorDefinition{0x21, ""}
	ErrEmptyNotAllowed = ErrorDefinition{0x22, "empty"}
	ErrNotNullable     = ErrorDefinition{0x23, "nullable"}
	ErrBadType         = ErrorDefinition{0x24, "type"}
	ErrBadTypeForSchema = ErrorDefinition{0x25, "schema"}
	ErrItemsLength     = ErrorDefinition{0x26, "items"}
	ErrMinLength       = ErrorDefinition{0x27, "minlength"}
	ErrMaxLength       = ErrorDefinition{0x28, "maxlength"}

	ErrRegexMismatch   = ErrorDefinition{0x41, "regex"}
	ErrMinValue        = ErrorDefinition{0x42, "min"}
	ErrMaxValue        = ErrorDefinition{0x43, "max"}
	ErrUnallowedValue  = ErrorDefinition{0x44, "allowed"}
	ErrUnallowedValues = ErrorDefinition{0x45, "allowed"}
	ErrForbiddenValue  = ErrorDefinition{0x46, "forbidden"}
	ErrForbiddenValues = ErrorDefinition{0x47, "forbidden"}
	ErrMissingMembers  = ErrorDefinition{0x48, "contains"}

	ErrCoercionFailed       = ErrorDefinition{0x61, "coerce"}
	ErrRenamingFailed       = ErrorDefinition{0x62, "rename_handler"}
	ErrReadonlyField        = ErrorDefinition{0x63, "readonly"}
	ErrSettingDefaultFailed = ErrorDefinition{0x64, "default_setter"}
	ErrRenameCollision      = ErrorDefinition{0x65, "rename"}

	ErrGroup          = ErrorDefinition{0x80, ""}
	ErrMappingSchema  = ErrorDefinition{0x81, "schema"}
	ErrSequenceSchema = ErrorDefinition{0x82, "schema"}
	ErrKeysrules      = ErrorDefinition{0x83, "keysrules"}
	ErrValuesrules    = ErrorDefinition{0x84, "valuesrules"}
	ErrBadItems       = ErrorDefinition{0x8F, "items"}

	ErrNoneOf = ErrorDefinition{0x91, "noneof"}
	ErrOneOf  = ErrorDefinition{0x92, "oneof"}
	ErrAnyOf  = ErrorDefinition{0x93, "anyof"}
	ErrAllOf  = ErrorDefinition{0x94, "allof"}
)

// ValidationError is one validation failure. DocumentPath addresses the
// offending value from the document root, SchemaPath the violated rule from
// the schema root. Info carries auxiliary data; for group errors it holds the
// child errors. For combinator errors it holds one list with the child errors
// of all definitions, followed by the number of definitions that validated;
// DefinitionErrors selects one definition's share by schema path.
type ValidationError struct {
	DocumentPath []any
	SchemaPath   []any
	Code         int
	Rule         string
	Constraint   any
	Value        any
	Info         []any
}

// IsGroup reports whether the error carries child errors.
func (e *ValidationError) IsGroup() bool { return e.Code&CodeGroup == CodeGroup }

// IsLogic reports whether the error was emitted by a combinator rule.
func (e *ValidationError) IsLogic() bool { return e.Code&CodeLogic == CodeLogic }

// IsNormalization reports whether the error was emitted during normalization.
func (e *ValidationError) IsNormalization() bool {
	return e.Code&CodeNormalization == CodeNormalization && !e.IsGroup()
}

// ChildErrors returns the wrapped errors of a group error, nil otherwise.
func (e *ValidationError) ChildErrors() ErrorList {
	if !e.IsGroup() {
		return nil
	}
	var out ErrorList
	for _, i := range e.Info {
		if el, ok := i.(ErrorList); ok {
			out = append(out, el...)
		}
	}
	return out
}

// DefinitionErrors returns the child errors a combinator error collected for
// the definition at the given index.
func (e *ValidationError) DefinitionErrors(index int) ErrorList {
	if !e.IsLogic() {
		return nil
	}
	var out ErrorList
	for _, c := range e.ChildErrors() {
		if relevantAt(c.SchemaPath, e.SchemaPath, index) {
			out = append(out, c)
		}
	}
	return out
}

func relevantAt(child, parent []any, index int) bool {
	if len(child) <= len(parent) {
		return false
	}
	for i := range parent {
		if !deepEqual(child[i], parent[i]) {
			return false
		}
	}
	i, ok := child[len(parent)].(int)
	return ok && i == index
}

// Definitions returns the number of definitions a combinator error examined.
func (e *ValidationError) Definitions() int {
	seq := anySlice(e.Constraint)
	return len(seq)
}

func (e *ValidationError) String() string {
	return fmt.Sprintf("ValidationError @ document%s schema%s: code=0x%x rule=%q constraint=%v value=%v",
		renderPath(e.DocumentPath), renderPath(e.SchemaPath), e.Code, e.Rule, e.Constraint, e.Value)
}

func renderPath(path []any) string {
	var b strings.Builder
	for _, p := range path {
		fmt.Fprintf(&b, "[%v]", p)
	}
	return b.String()
}

// ErrorList is a flat, insertion-ordered collection of validation errors.
// It implements error so drivers can return it directly.
type ErrorList []*ValidationError

// Error summarizes the first few entries.
func (el ErrorList) Error() string {
	if len(el) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := len(el)
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		e := el[i]
		fmt.Fprintf(b, "0x%x at document%s", e.Code, renderPath(e.DocumentPath))
	}
	if len(el) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(el))
	}
	return b.String()
}

// sorted returns a copy ordered by document path then code, giving tests a
// deterministic enumeration regardless of rule evaluation order.
func (el ErrorList) sorted() ErrorList {
	out := make(ErrorList, len(el))
	copy(out, el)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := renderPath(out[i].DocumentPath), renderPath(out[j].DocumentPath)
		if pi != pj {
			return pi < pj
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// SchemaError reports a schema-class failure: the schema failed
// meta-validation, a registry reference did not resolve, or a rule or type
// name is unknown. It is returned before any document traversal happens.
type SchemaError struct {
	Message string
	Issues  ErrorList
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 0 {
		return "garm: " + e.Message
	}
	return fmt.Sprintf("garm: %s: %s", e.Message, e.Issues.Error())
}

func schemaErrorf(format string, args ...any) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// DocumentError reports that the target document is missing or is not a
// mapping.
type DocumentError struct {
	Message string
}

func (e *DocumentError) Error() string { return "garm: " + e.Message }
