package garm

import (
	"sort"
	"strings"
	"sync"
)

var combinatorRules = []string{"allof", "anyof", "oneof", "noneof"}

// normalizeRulesSet returns a copy of rs with rule aliases replaced and the
// typesaver combinator syntax (`anyof_type: [..]`) expanded.
func normalizeRulesSet(rs map[string]any) map[string]any {
	out := make(map[string]any, len(rs))
	for rule, constraint := range rs {
		if canonical, ok := ruleAliases[rule]; ok {
			rule = canonical
		}
		if op, sub, ok := splitTypesaver(rule); ok {
			defs := expandTypesaver(sub, constraint)
			if existing := anySlice(out[op]); existing != nil {
				out[op] = append(existing, defs...)
			} else {
				out[op] = defs
			}
			continue
		}
		out[rule] = constraint
	}
	return out
}

// splitTypesaver recognizes `<combinator>_<rule>` keys.
func splitTypesaver(rule string) (op, sub string, ok bool) {
	for _, c := range combinatorRules {
		if strings.HasPrefix(rule, c+"_") {
			return c, rule[len(c)+1:], true
		}
	}
	return "", "", false
}

// expandTypesaver rewrites `op_rule: [v1, v2]` into `op: [{rule: v1}, {rule: v2}]`.
func expandTypesaver(rule string, constraint any) []any {
	values := anySlice(constraint)
	if values == nil {
		values = []any{constraint}
	}
	defs := make([]any, 0, len(values))
	for _, value := range values {
		defs = append(defs, map[string]any{rule: value})
	}
	return defs
}

// resolveRulesSet materializes a rules set constraint: registry references
// are substituted, aliases canonicalized, typesaver keys expanded.
func (v *Validator) resolveRulesSet(constraint any) (map[string]any, error) {
	switch t := constraint.(type) {
	case string:
		def, ok := v.rulesSetRegistry.Get(t)
		if !ok {
			return nil, schemaErrorf("rules set %q not found in registry", t)
		}
		return normalizeRulesSet(def), nil
	case map[string]any:
		return normalizeRulesSet(t), nil
	}
	return nil, schemaErrorf("definition must be a rules set or a registry reference, got %T", constraint)
}

// resolveSchema materializes a schema constraint (a mapping of field names to
// rules sets, or a registry reference to one).
func (v *Validator) resolveSchema(constraint any) (map[string]any, error) {
	switch t := constraint.(type) {
	case string:
		def, ok := v.schemaRegistry.Get(t)
		if !ok {
			return nil, schemaErrorf("schema %q not found in registry", t)
		}
		return def, nil
	case map[string]any:
		return t, nil
	}
	return nil, schemaErrorf("schema must be a mapping or a registry reference, got %T", constraint)
}

// ---- meta-validation ----

type metaIssue struct {
	path    []any
	message string
}

// metaChecker walks a schema against the rule table, collecting violations.
// Registry references already being checked are skipped, which terminates
// cyclic schema graphs.
type metaChecker struct {
	v              *Validator
	issues         []metaIssue
	inFlightRules  map[string]bool
	inFlightSchema map[string]bool
}

func newMetaChecker(v *Validator) *metaChecker {
	return &metaChecker{
		v:              v,
		inFlightRules:  map[string]bool{},
		inFlightSchema: map[string]bool{},
	}
}

// fork returns a checker with a fresh issue list that shares the receiver's
// in-flight reference tracking, so speculative sub-checks cannot loop on
// cyclic registry graphs.
func (mc *metaChecker) fork() *metaChecker {
	return &metaChecker{
		v:              mc.v,
		inFlightRules:  mc.inFlightRules,
		inFlightSchema: mc.inFlightSchema,
	}
}

func (mc *metaChecker) addf(path []any, message string) {
	mc.issues = append(mc.issues, metaIssue{path: append([]any{}, path...), message: message})
}

func (mc *metaChecker) checkSchema(schema any, path []any) {
	switch t := schema.(type) {
	case string:
		if mc.inFlightSchema[t] {
			return
		}
		def, ok := mc.v.schemaRegistry.Get(t)
		if !ok {
			mc.addf(path, "schema '"+t+"' not found in registry")
			return
		}
		mc.inFlightSchema[t] = true
		mc.checkSchema(def, path)
		delete(mc.inFlightSchema, t)
	case map[string]any:
		for _, field := range sortedKeys(t) {
			mc.checkRulesSet(t[field], append(path, field))
		}
	default:
		mc.addf(path, "schema definition must be a mapping")
	}
}

func (mc *metaChecker) checkRulesSet(rules any, path []any) {
	switch t := rules.(type) {
	case string:
		if mc.inFlightRules[t] {
			return
		}
		def, ok := mc.v.rulesSetRegistry.Get(t)
		if !ok {
			mc.addf(path, "rules set '"+t+"' not found in registry")
			return
		}
		mc.inFlightRules[t] = true
		mc.checkRulesSet(def, path)
		delete(mc.inFlightRules, t)
	case map[string]any:
		rs := normalizeRulesSet(t)
		for _, rule := range sortedKeys(rs) {
			mc.checkRule(rule, rs[rule], append(path, rule))
		}
	default:
		mc.addf(path, "rules set definition must be a mapping")
	}
}

func (mc *metaChecker) checkRule(rule string, constraint any, path []any) {
	spec, ok := ruleTable.get(rule)
	if !ok {
		mc.addf(path, "unknown rule '"+rule+"'")
		return
	}
	if spec.checkConstraint != nil {
		spec.checkConstraint(mc, constraint, path)
		return
	}
	if spec.ConstraintSchema != nil {
		mc.checkAgainstFragment(spec.ConstraintSchema, constraint, path)
	}
}

// checkAgainstFragment meta-validates a constraint value against a rule's
// declarative constraint schema by running a trusted inner validator.
func (mc *metaChecker) checkAgainstFragment(fragment map[string]any, constraint any, path []any) {
	inner := &Validator{
		schema:           map[string]any{"constraint": fragment},
		schemaTrusted:    true,
		allowUnknown:     false,
		errorHandler:     nil,
		schemaRegistry:   mc.v.schemaRegistry,
		rulesSetRegistry: mc.v.rulesSetRegistry,
	}
	ok, err := inner.Validate(map[string]any{"constraint": constraint})
	if err != nil {
		mc.addf(path, err.Error())
		return
	}
	if !ok {
		for _, e := range inner.Errors() {
			mc.addf(path, (&BasicErrorHandler{}).format(e))
		}
	}
}

func checkTypeConstraint(mc *metaChecker, constraint any, path []any) {
	names := anySlice(constraint)
	if names == nil {
		names = []any{constraint}
	}
	for _, n := range names {
		name, ok := n.(string)
		if !ok {
			mc.addf(path, "type constraint must be a string or a sequence of strings")
			return
		}
		if _, ok := defaultTypes.lookup(name); !ok {
			mc.addf(path, "unrecognized data-type '"+name+"'")
		}
	}
}

func checkAllowUnknownConstraint(mc *metaChecker, constraint any, path []any) {
	if _, ok := constraint.(bool); ok {
		return
	}
	mc.checkRulesSet(constraint, path)
}

func checkContainerConstraint(mc *metaChecker, constraint any, path []any) {
	if anySlice(constraint) == nil {
		mc.addf(path, "constraint must be a container of values")
	}
}

func checkRegexConstraint(mc *metaChecker, constraint any, path []any) {
	pattern, ok := constraint.(string)
	if !ok {
		mc.addf(path, "regex constraint must be a string")
		return
	}
	if _, err := compileRegex(pattern); err != nil {
		mc.addf(path, "invalid regex pattern: "+err.Error())
	}
}

func checkDependenciesConstraint(mc *metaChecker, constraint any, path []any) {
	switch t := constraint.(type) {
	case string:
		return
	case map[string]any:
		return
	default:
		seq := anySlice(t)
		if seq == nil {
			mc.addf(path, "dependencies constraint must be a field name, a sequence of them or a mapping")
			return
		}
		for _, e := range seq {
			if _, ok := e.(string); !ok {
				mc.addf(path, "dependency names must be strings")
				return
			}
		}
	}
}

func checkExcludesConstraint(mc *metaChecker, constraint any, path []any) {
	if _, ok := constraint.(string); ok {
		return
	}
	seq := anySlice(constraint)
	if seq == nil {
		mc.addf(path, "excludes constraint must be a field name or a sequence of them")
		return
	}
	for _, e := range seq {
		if _, ok := e.(string); !ok {
			mc.addf(path, "excluded field names must be strings")
			return
		}
	}
}

func checkItemsConstraint(mc *metaChecker, constraint any, path []any) {
	seq := anySlice(constraint)
	if seq == nil {
		mc.addf(path, "items constraint must be a sequence of rules sets")
		return
	}
	for i, e := range seq {
		mc.checkRulesSet(e, append(path, i))
	}
}

// checkSchemaConstraint accepts either form of the schema rule: a whole
// sub-schema (mapping of fields to rules sets) or a single rules set applied
// to sequence elements. The constraint is valid when either reading holds.
func checkSchemaConstraint(mc *metaChecker, constraint any, path []any) {
	asRules := mc.fork()
	asRules.checkRulesSet(constraint, path)
	if len(asRules.issues) == 0 {
		return
	}
	asSchema := mc.fork()
	asSchema.checkSchema(constraint, path)
	if len(asSchema.issues) == 0 {
		return
	}
	mc.issues = append(mc.issues, asSchema.issues...)
}

func checkRulesSetConstraint(mc *metaChecker, constraint any, path []any) {
	mc.checkRulesSet(constraint, path)
}

func checkLogicalConstraint(mc *metaChecker, constraint any, path []any) {
	seq := anySlice(constraint)
	if seq == nil {
		mc.addf(path, "constraint must be a sequence of definitions")
		return
	}
	for i, e := range seq {
		mc.checkRulesSet(e, append(path, i))
	}
}

func checkCoercerConstraint(mc *metaChecker, constraint any, path []any) {
	if _, err := resolveCoercerChain(constraint); err != nil {
		mc.addf(path, err.Error())
	}
}

func checkDefaultSetterConstraint(mc *metaChecker, constraint any, path []any) {
	if _, err := resolveDefaultSetter(constraint); err != nil {
		mc.addf(path, err.Error())
	}
}

func checkCheckWithConstraint(mc *metaChecker, constraint any, path []any) {
	if _, err := resolveCheckChain(constraint); err != nil {
		mc.addf(path, err.Error())
	}
}

// ---- meta-validation cache ----

var metaCache sync.Map // cache key -> struct{}

type metaCacheKey struct {
	schema    string
	rulesGen  uint64
	schemaGen uint64
	tableGen  uint64
}

// checkSchemaValid meta-validates schema, consulting the cache. Registry or
// rule-table updates change the cache key and so re-trigger meta-validation.
func (v *Validator) checkSchemaValid(schema map[string]any) error {
	key := metaCacheKey{
		schema:    fingerprint(schema),
		rulesGen:  v.rulesSetRegistry.Generation(),
		schemaGen: v.schemaRegistry.Generation(),
		tableGen:  ruleTableGeneration(),
	}
	if _, ok := metaCache.Load(key); ok {
		return nil
	}
	mc := newMetaChecker(v)
	mc.checkSchema(schema, nil)
	if len(mc.issues) > 0 {
		err := &SchemaError{Message: "schema is not valid"}
		for _, issue := range mc.issues {
			err.Issues = append(err.Issues, &ValidationError{
				SchemaPath: issue.path,
				Code:       ErrCustom.Code,
				Info:       []any{issue.message},
			})
		}
		err.Message = "schema is not valid: " + mc.issues[0].message
		return err
	}
	metaCache.Store(key, struct{}{})
	return nil
}

func ruleTableGeneration() uint64 {
	ruleTable.mu.RLock()
	defer ruleTable.mu.RUnlock()
	return ruleTable.generation
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
