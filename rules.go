package garm

import (
	"sort"
	"sync"
)

// RulePhase orders rule evaluation within a field. The priority rules are the
// built-in readonly, nullable, type and empty rules, which the field
// dispatcher evaluates first in that fixed order and which may end the
// field's evaluation. The mandatory rules (required, require_all,
// allow_unknown, meta) have no handler; they are read where they apply, such
// as the required-field sweep and the recursion into sub-mappings. Normal
// rules run afterwards in sorted name order. The dispatcher calls the
// Validate handlers of PhaseNormal rules only; a handler registered under
// PhasePriority or PhaseMandatory is not called.
type RulePhase int

const (
	PhasePriority RulePhase = iota
	PhaseMandatory
	PhaseNormal
)

// RuleFunc executes a validation rule. field addresses the value in the
// current sibling mapping, seg is the path segment recorded in errors
// (normally equal to field, an index for sequence elements). A non-nil error
// is a schema-class failure and aborts the invocation.
type RuleFunc func(v *Validator, constraint any, field string, seg any, value any) error

// RuleSpec is one entry of the rule dispatch table. Built-in rules populate
// the table at bootstrap; RegisterRule adds entries for extensions.
type RuleSpec struct {
	Name string
	// Phase determines ordering within a field. Only PhaseNormal handlers
	// are dispatched (see RulePhase).
	Phase RulePhase
	// Normalizing marks rules the validation dispatcher skips. The
	// normalization pipeline evaluates the built-in normalization rules by
	// name; an extension rule marked Normalizing is accepted in schemas but
	// is not evaluated.
	Normalizing bool
	// Validate executes the rule. Nil for rules consumed structurally
	// (required, allow_unknown, ...) and for normalization rules.
	Validate RuleFunc
	// ConstraintSchema is the rules set meta-validating this rule's
	// constraint value. It becomes part of the schema-of-schemas.
	ConstraintSchema map[string]any
	// checkConstraint overrides declarative constraint checking for rules
	// whose constraints need recursive inspection.
	checkConstraint func(mc *metaChecker, constraint any, path []any)
}

var ruleAliases = map[string]string{
	"keyschema":      "keysrules",
	"valueschema":    "valuesrules",
	"propertyschema": "keysrules",
	"validator":      "check_with",
}

type ruleTableT struct {
	mu         sync.RWMutex
	specs      map[string]*RuleSpec
	generation uint64
}

var ruleTable = &ruleTableT{specs: map[string]*RuleSpec{}}

func (t *ruleTableT) get(name string) (*RuleSpec, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.specs[name]
	return s, ok
}

func (t *ruleTableT) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.specs))
	for name := range t.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *ruleTableT) add(spec *RuleSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.specs[spec.Name] = spec
	t.generation++
}

// RegisterRule adds a rule to the dispatch table. The spec must name the
// rule, supply a Validate handler (or mark itself Normalizing), and describe
// its constraint through ConstraintSchema; the fragment is merged into the
// schema-of-schemas so schemas using the rule meta-validate. Errors emitted
// by extension rules must use codes at CodeUserStart or above.
func RegisterRule(spec RuleSpec) error {
	if spec.Name == "" {
		return schemaErrorf("rule registration without a name")
	}
	if _, reserved := ruleAliases[spec.Name]; reserved {
		return schemaErrorf("rule name %q is a reserved alias", spec.Name)
	}
	if spec.Validate == nil && !spec.Normalizing {
		return schemaErrorf("rule %q supplies neither a handler nor a normalization marker", spec.Name)
	}
	ruleTable.add(&spec)
	return nil
}

// RuleNames returns the sorted names of all rules the engine recognizes,
// aliases excluded.
func RuleNames() []string { return ruleTable.names() }

// SchemaOfSchemas returns the assembled schema-of-schemas: for every known
// rule, its declarative ConstraintSchema. Rules whose constraints are checked
// programmatically during meta-validation (type, allowed, forbidden, regex,
// schema, items, the combinators and others) appear with an empty rules set;
// those checks are not expressed in the returned mapping. The result is a
// fresh copy; mutating it has no effect on the engine.
func SchemaOfSchemas() map[string]any {
	ruleTable.mu.RLock()
	defer ruleTable.mu.RUnlock()
	out := map[string]any{}
	for name, spec := range ruleTable.specs {
		fragment := map[string]any{}
		if spec.ConstraintSchema != nil {
			fragment = deepCopy(spec.ConstraintSchema).(map[string]any)
		}
		out[name] = fragment
	}
	return out
}

func init() {
	for _, spec := range builtinRules() {
		ruleTable.add(spec)
	}
}

func builtinRules() []*RuleSpec {
	return []*RuleSpec{
		// Priority rules; the field dispatcher runs these in fixed order.
		{Name: "readonly", Phase: PhasePriority,
			ConstraintSchema: rs("type", "boolean")},
		{Name: "nullable", Phase: PhasePriority,
			ConstraintSchema: rs("type", "boolean")},
		{Name: "type", Phase: PhasePriority,
			checkConstraint: checkTypeConstraint},
		{Name: "empty", Phase: PhasePriority,
			ConstraintSchema: rs("type", "boolean")},

		// Structurally consumed rules.
		{Name: "required", Phase: PhaseMandatory,
			ConstraintSchema: rs("type", "boolean")},
		{Name: "require_all", Phase: PhaseMandatory,
			ConstraintSchema: rs("type", "boolean")},
		{Name: "allow_unknown", Phase: PhaseMandatory,
			checkConstraint: checkAllowUnknownConstraint},
		{Name: "meta", Phase: PhaseMandatory},

		// Normal validation rules.
		{Name: "allowed", Phase: PhaseNormal, Validate: validateAllowed,
			checkConstraint: checkContainerConstraint},
		{Name: "forbidden", Phase: PhaseNormal, Validate: validateForbidden,
			checkConstraint: checkContainerConstraint},
		{Name: "contains", Phase: PhaseNormal, Validate: validateContains},
		{Name: "min", Phase: PhaseNormal, Validate: validateMin},
		{Name: "max", Phase: PhaseNormal, Validate: validateMax},
		{Name: "minlength", Phase: PhaseNormal, Validate: validateMinlength,
			ConstraintSchema: rs("type", "integer")},
		{Name: "maxlength", Phase: PhaseNormal, Validate: validateMaxlength,
			ConstraintSchema: rs("type", "integer")},
		{Name: "regex", Phase: PhaseNormal, Validate: validateRegex,
			checkConstraint: checkRegexConstraint},
		{Name: "dependencies", Phase: PhaseNormal, Validate: validateDependencies,
			checkConstraint: checkDependenciesConstraint},
		{Name: "excludes", Phase: PhaseNormal, Validate: validateExcludes,
			checkConstraint: checkExcludesConstraint},
		{Name: "items", Phase: PhaseNormal, Validate: validateItems,
			checkConstraint: checkItemsConstraint},
		{Name: "schema", Phase: PhaseNormal, Validate: validateSchemaRule,
			checkConstraint: checkSchemaConstraint},
		{Name: "keysrules", Phase: PhaseNormal, Validate: validateKeysrules,
			checkConstraint: checkRulesSetConstraint},
		{Name: "valuesrules", Phase: PhaseNormal, Validate: validateValuesrules,
			checkConstraint: checkRulesSetConstraint},
		{Name: "check_with", Phase: PhaseNormal, Validate: validateCheckWith,
			checkConstraint: checkCheckWithConstraint},
		{Name: "allof", Phase: PhaseNormal, Validate: validateAllOf,
			checkConstraint: checkLogicalConstraint},
		{Name: "anyof", Phase: PhaseNormal, Validate: validateAnyOf,
			checkConstraint: checkLogicalConstraint},
		{Name: "oneof", Phase: PhaseNormal, Validate: validateOneOf,
			checkConstraint: checkLogicalConstraint},
		{Name: "noneof", Phase: PhaseNormal, Validate: validateNoneOf,
			checkConstraint: checkLogicalConstraint},

		// Normalization rules; the validation dispatcher ignores them.
		{Name: "rename", Normalizing: true,
			ConstraintSchema: rs("type", "string")},
		{Name: "rename_handler", Normalizing: true,
			checkConstraint: checkCoercerConstraint},
		{Name: "default", Normalizing: true},
		{Name: "default_setter", Normalizing: true,
			checkConstraint: checkDefaultSetterConstraint},
		{Name: "coerce", Normalizing: true,
			checkConstraint: checkCoercerConstraint},
		{Name: "purge_unknown", Normalizing: true,
			ConstraintSchema: rs("type", "boolean")},
		{Name: "purge_readonly", Normalizing: true,
			ConstraintSchema: rs("type", "boolean")},
	}
}

// rs is shorthand for a single-rule rules set.
func rs(rule string, constraint any) map[string]any {
	return map[string]any{rule: constraint}
}
