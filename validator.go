package garm

// Validator normalizes and validates mappings against a validation schema.
// A Validator instance carries per-invocation state (the working document and
// the error stash); concurrent use of one instance is not supported, while
// independent instances validate independent documents concurrently without
// coordination.
type Validator struct {
	schema map[string]any
	// schemaTrusted skips meta-validation; set on child validators whose
	// schemas derive from an already validated root schema.
	schemaTrusted bool

	allowUnknown     any // nil/bool, or a rules set unknown values must satisfy
	requireAll       bool
	purgeUnknown     bool
	purgeReadonly    bool
	ignoreNoneValues bool
	errorHandler     ErrorHandler
	schemaRegistry   *Registry
	rulesSetRegistry *Registry

	// invocation state
	update       bool
	errors       ErrorList
	document     map[string]any
	rootDocument map[string]any
	rootSchema   map[string]any
	documentPath []any
	schemaPath   []any
	isChild      bool
	// suppressSchemaSeg stops emit from inserting the field segment into
	// schema paths; combinator children set it because their schema crumb
	// already addresses the field.
	suppressSchemaSeg bool
	// currentRules is the rules set of the field being validated; rule
	// handlers consult it for sibling rules such as allow_unknown.
	currentRules map[string]any
}

// Option configures a Validator.
type Option func(*Validator)

// AllowUnknown sets the unknown-field policy: false rejects, true accepts,
// and a rules set validates every unknown value against it.
func AllowUnknown(policy any) Option { return func(v *Validator) { v.allowUnknown = policy } }

// RequireAll makes every schema-declared field implicitly required.
func RequireAll(on bool) Option { return func(v *Validator) { v.requireAll = on } }

// PurgeUnknown drops unknown fields during normalization.
func PurgeUnknown(on bool) Option { return func(v *Validator) { v.purgeUnknown = on } }

// PurgeReadonly drops readonly-declared fields during normalization.
func PurgeReadonly(on bool) Option { return func(v *Validator) { v.purgeReadonly = on } }

// IgnoreNoneValues treats null-valued fields as absent: their rules are
// skipped and required treats them as missing.
func IgnoreNoneValues(on bool) Option { return func(v *Validator) { v.ignoreNoneValues = on } }

// WithErrorHandler replaces the default BasicErrorHandler.
func WithErrorHandler(h ErrorHandler) Option { return func(v *Validator) { v.errorHandler = h } }

// WithSchemaRegistry scopes named-schema resolution to r instead of the
// shared SchemaRegistry.
func WithSchemaRegistry(r *Registry) Option { return func(v *Validator) { v.schemaRegistry = r } }

// WithRulesSetRegistry scopes named-rules-set resolution to r instead of the
// shared RulesSetRegistry.
func WithRulesSetRegistry(r *Registry) Option { return func(v *Validator) { v.rulesSetRegistry = r } }

// NewValidator returns a Validator bound to schema. The schema is
// meta-validated immediately; a nil schema may be supplied later through
// SetSchema.
func NewValidator(schema map[string]any, opts ...Option) (*Validator, error) {
	v := &Validator{
		schemaRegistry:   SchemaRegistry,
		rulesSetRegistry: RulesSetRegistry,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.errorHandler == nil {
		v.errorHandler = NewBasicErrorHandler()
	}
	if schema != nil {
		if err := v.checkSchemaValid(schema); err != nil {
			return nil, err
		}
		v.schema = schema
	}
	return v, nil
}

// SetSchema replaces the validator's schema after meta-validating it.
func (v *Validator) SetSchema(schema map[string]any) error {
	if err := v.checkSchemaValid(schema); err != nil {
		return err
	}
	v.schema = schema
	return nil
}

// Schema returns the validator's schema.
func (v *Validator) Schema() map[string]any { return v.schema }

// Errors returns the error stash of the last invocation.
func (v *Validator) Errors() ErrorList { return v.errors.sorted() }

// ErrorsMap renders the last invocation's errors through the configured
// error handler.
func (v *Validator) ErrorsMap() map[string]any { return v.errorHandler.Handle(v.errors) }

// Document returns the working document of the last invocation: the
// normalized copy on success, the partially processed copy otherwise.
func (v *Validator) Document() map[string]any { return v.document }

// DocumentErrorTree projects the last invocation's errors by document path.
func (v *Validator) DocumentErrorTree() *ErrorTree { return newDocumentErrorTree(v.errors) }

// SchemaErrorTree projects the last invocation's errors by schema path.
func (v *Validator) SchemaErrorTree() *ErrorTree { return newSchemaErrorTree(v.errors) }

// Validate normalizes a deep copy of document and validates it. It reports
// whether the document is valid; the error return carries schema-class and
// document-class failures that preclude validation (invalid schema,
// unresolved registry reference, missing document).
func (v *Validator) Validate(document map[string]any) (bool, error) {
	v.update = false
	return v.process(document, true, true)
}

// ValidateUpdate behaves like Validate but suppresses required-field errors,
// for checking partial documents against a full schema.
func (v *Validator) ValidateUpdate(document map[string]any) (bool, error) {
	v.update = true
	return v.process(document, true, true)
}

// Validated validates document and returns the normalized copy on success.
// On validation failure it returns the error stash as the error.
func (v *Validator) Validated(document map[string]any) (map[string]any, error) {
	ok, err := v.Validate(document)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, v.Errors()
	}
	return v.document, nil
}

// Normalized returns a normalized copy of document without validating it.
// Normalization-phase errors are returned as the error.
func (v *Validator) Normalized(document map[string]any) (map[string]any, error) {
	v.update = false
	_, err := v.process(document, true, false)
	if err != nil {
		return nil, err
	}
	if len(v.errors) > 0 {
		return nil, v.Errors()
	}
	return v.document, nil
}

func (v *Validator) process(document map[string]any, doNormalize, doValidate bool) (bool, error) {
	v.errors = nil
	v.document = nil
	if v.schema == nil {
		return false, schemaErrorf("validation schema missing")
	}
	if document == nil {
		return false, &DocumentError{Message: "document is missing"}
	}
	if !v.schemaTrusted {
		if err := v.checkSchemaValid(v.schema); err != nil {
			return false, err
		}
	}
	v.document = deepCopy(document).(map[string]any)
	v.rootDocument = v.document
	v.rootSchema = v.schema
	if doNormalize {
		if err := v.normalizeMapping(v.document, v.schema, v.allowUnknown); err != nil {
			return false, err
		}
	}
	if doValidate {
		if err := v.validateMapping(v.document, v.schema, v.allowUnknown); err != nil {
			return false, err
		}
	}
	return len(v.errors) == 0, nil
}

type childOpts struct {
	docCrumb    []any
	schemaCrumb []any
	document    map[string]any
	// allowUnknown overrides the inherited policy when explicit is true.
	allowUnknown any
	explicit     bool
	requireAll   *bool
	suppressSeg  bool
}

// child spawns a validator for a recursion point. The child borrows the
// parent's configuration and roots, extends the paths by the supplied
// crumbs, and owns a fresh error stash which the caller merges back.
func (v *Validator) child(o childOpts) *Validator {
	c := &Validator{
		schemaTrusted:     true,
		allowUnknown:      v.allowUnknown,
		requireAll:        v.requireAll,
		purgeUnknown:      v.purgeUnknown,
		purgeReadonly:     v.purgeReadonly,
		ignoreNoneValues:  v.ignoreNoneValues,
		errorHandler:      v.errorHandler,
		schemaRegistry:    v.schemaRegistry,
		rulesSetRegistry:  v.rulesSetRegistry,
		update:            v.update,
		rootDocument:      v.rootDocument,
		rootSchema:        v.rootSchema,
		documentPath:      append(append([]any{}, v.documentPath...), o.docCrumb...),
		schemaPath:        append(append([]any{}, v.schemaPath...), o.schemaCrumb...),
		isChild:           true,
		suppressSchemaSeg: o.suppressSeg,
		document:          o.document,
	}
	if o.explicit {
		c.allowUnknown = o.allowUnknown
	}
	if o.requireAll != nil {
		c.requireAll = *o.requireAll
	}
	return c
}

// Emit records one validation error against the current recursion point.
// It is the emission interface extension rules use from their handlers; seg
// is the path segment the handler received.
func (v *Validator) Emit(seg any, def ErrorDefinition, constraint, value any, info ...any) {
	v.emit(seg, def, constraint, value, info...)
}

// emit records one validation error. seg extends the document path; rules
// with a name extend the schema path by segment and rule name.
func (v *Validator) emit(seg any, def ErrorDefinition, constraint, value any, info ...any) {
	docPath := append([]any{}, v.documentPath...)
	if seg != nil {
		docPath = append(docPath, seg)
	}
	schemaPath := append([]any{}, v.schemaPath...)
	if seg != nil && !v.suppressSchemaSeg {
		schemaPath = append(schemaPath, seg)
	}
	if def.Rule != "" {
		schemaPath = append(schemaPath, def.Rule)
	}
	v.errors = append(v.errors, &ValidationError{
		DocumentPath: docPath,
		SchemaPath:   schemaPath,
		Code:         def.Code,
		Rule:         def.Rule,
		Constraint:   constraint,
		Value:        value,
		Info:         info,
	})
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// allowsUnknown reports whether the given policy accepts unknown fields.
func allowsUnknown(policy any) bool {
	switch t := policy.(type) {
	case nil:
		return false
	case bool:
		return t
	default:
		return true
	}
}
