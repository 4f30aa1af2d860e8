package garm

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
)

// emptySkipRules are dropped for a field once its value is empty and the
// empty rule is declared.
var emptySkipRules = map[string]bool{
	"allowed":    true,
	"forbidden":  true,
	"items":      true,
	"minlength":  true,
	"maxlength":  true,
	"regex":      true,
	"check_with": true,
}

// validateMapping runs the per-field algorithm of one mapping level: the
// unknown-field policy, every declared field's rule queue, and the
// required-field sweep.
func (v *Validator) validateMapping(mapping map[string]any, schema map[string]any, allowUnknown any) error {
	v.document = mapping

	for _, field := range sortedKeys(mapping) {
		value := mapping[field]
		if v.ignoreNoneValues && value == nil {
			continue
		}
		rulesAny, known := schema[field]
		if !known {
			if err := v.validateUnknownField(field, value, allowUnknown); err != nil {
				return err
			}
			continue
		}
		rules, err := v.resolveRulesSet(rulesAny)
		if err != nil {
			return err
		}
		if err := v.validateField(field, field, rules, value); err != nil {
			return err
		}
	}

	if !v.update {
		if err := v.validateRequiredFields(mapping, schema); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateUnknownField(field string, value any, allowUnknown any) error {
	switch policy := allowUnknown.(type) {
	case bool:
		if !policy {
			v.emit(field, ErrUnknownField, nil, value)
		}
	case nil:
		v.emit(field, ErrUnknownField, nil, value)
	default:
		rules, err := v.resolveRulesSet(policy)
		if err != nil {
			return err
		}
		return v.validateField(field, field, rules, value)
	}
	return nil
}

func (v *Validator) validateRequiredFields(mapping map[string]any, schema map[string]any) error {
	for _, field := range sortedKeys(schema) {
		if value, present := mapping[field]; present {
			if !v.ignoreNoneValues || value != nil {
				continue
			}
		}
		rules, err := v.resolveRulesSet(schema[field])
		if err != nil {
			return err
		}
		required := v.requireAll
		if c, declared := rules["required"]; declared {
			required = truthy(c)
		}
		if required {
			v.emit(field, ErrRequiredField, true, nil)
		}
	}
	return nil
}

// validateField drives one field's rule queue: readonly, nullable and type
// preempt; empty may drop a subset; the remaining rules dispatch through the
// rule table in sorted name order.
func (v *Validator) validateField(field string, seg any, rules map[string]any, value any) error {
	prevRules := v.currentRules
	v.currentRules = rules
	defer func() { v.currentRules = prevRules }()

	if c, declared := rules["readonly"]; declared && truthy(c) {
		v.emit(seg, ErrReadonlyField, c, value)
	}

	if value == nil {
		if truthy(rules["nullable"]) {
			return nil
		}
		v.emit(seg, ErrNotNullable, rules["nullable"], value)
		return nil
	}

	if tc, declared := rules["type"]; declared {
		if !typeMatches(tc, value) {
			v.emit(seg, ErrBadType, tc, value)
			return nil
		}
	}

	skipForEmpty := false
	if ec, declared := rules["empty"]; declared {
		if n, sized := lengthOf(value); sized && n == 0 {
			skipForEmpty = true
			if !truthy(ec) {
				v.emit(seg, ErrEmptyNotAllowed, ec, value)
			}
		}
	}

	for _, rule := range sortedKeys(rules) {
		spec, known := ruleTable.get(rule)
		if !known {
			return schemaErrorf("unknown rule %q for field %q", rule, field)
		}
		if spec.Validate == nil || spec.Phase != PhaseNormal {
			continue
		}
		if skipForEmpty && emptySkipRules[rule] {
			continue
		}
		if err := spec.Validate(v, rules[rule], field, seg, value); err != nil {
			return err
		}
	}
	return nil
}

// typeMatches reports whether value satisfies at least one of the names in
// the type constraint.
func typeMatches(constraint any, value any) bool {
	names := anySlice(constraint)
	if names == nil {
		names = []any{constraint}
	}
	for _, n := range names {
		name, ok := n.(string)
		if ok && defaultTypes.matches(name, value) {
			return true
		}
	}
	return false
}

// ---- membership rules ----

func validateAllowed(v *Validator, constraint any, field string, seg any, value any) error {
	allowed := anySlice(constraint)
	if members := iterableMembers(value); members != nil {
		var unallowed []any
		for _, m := range members {
			if !containsValue(allowed, m) {
				unallowed = append(unallowed, m)
			}
		}
		if len(unallowed) > 0 {
			v.emit(seg, ErrUnallowedValues, constraint, value, unallowed)
		}
		return nil
	}
	if !containsValue(allowed, value) {
		v.emit(seg, ErrUnallowedValue, constraint, value)
	}
	return nil
}

func validateForbidden(v *Validator, constraint any, field string, seg any, value any) error {
	forbidden := anySlice(constraint)
	if members := iterableMembers(value); members != nil {
		var hits []any
		for _, m := range members {
			if containsValue(forbidden, m) {
				hits = append(hits, m)
			}
		}
		if len(hits) > 0 {
			v.emit(seg, ErrForbiddenValues, constraint, value, hits)
		}
		return nil
	}
	if containsValue(forbidden, value) {
		v.emit(seg, ErrForbiddenValue, constraint, value)
	}
	return nil
}

func validateContains(v *Validator, constraint any, field string, seg any, value any) error {
	expected := anySlice(constraint)
	if expected == nil {
		expected = []any{constraint}
	}
	var missing []any
	if s, ok := value.(string); ok {
		for _, e := range expected {
			sub, subOK := e.(string)
			if !subOK || !strings.Contains(s, sub) {
				missing = append(missing, e)
			}
		}
	} else {
		members := iterableMembers(value)
		if members == nil {
			if m, ok := value.(map[string]any); ok {
				members = mapKeys(m)
			} else {
				return nil
			}
		}
		for _, e := range expected {
			if !containsValue(members, e) {
				missing = append(missing, e)
			}
		}
	}
	if len(missing) > 0 {
		v.emit(seg, ErrMissingMembers, constraint, value, missing)
	}
	return nil
}

// iterableMembers returns the elements of sequence- and set-like values.
// Strings and mappings are not member-iterated here.
func iterableMembers(value any) []any {
	switch value.(type) {
	case string, []byte, map[string]any:
		return nil
	}
	return anySlice(value)
}

func mapKeys(m map[string]any) []any {
	keys := make([]any, 0, len(m))
	for _, k := range sortedKeys(m) {
		keys = append(keys, k)
	}
	return keys
}

func containsValue(list []any, value any) bool {
	for _, e := range list {
		if deepEqual(e, value) {
			return true
		}
	}
	return false
}

// ---- bounds rules ----

func validateMin(v *Validator, constraint any, field string, seg any, value any) error {
	if cmp, ok := compareValues(value, constraint); ok && cmp < 0 {
		v.emit(seg, ErrMinValue, constraint, value)
	}
	return nil
}

func validateMax(v *Validator, constraint any, field string, seg any, value any) error {
	if cmp, ok := compareValues(value, constraint); ok && cmp > 0 {
		v.emit(seg, ErrMaxValue, constraint, value)
	}
	return nil
}

func validateMinlength(v *Validator, constraint any, field string, seg any, value any) error {
	bound, ok := toInt64(constraint)
	if !ok {
		return schemaErrorf("minlength constraint for field %q must be an integer", field)
	}
	if n, sized := lengthOf(value); sized && int64(n) < bound {
		v.emit(seg, ErrMinLength, constraint, value)
	}
	return nil
}

func validateMaxlength(v *Validator, constraint any, field string, seg any, value any) error {
	bound, ok := toInt64(constraint)
	if !ok {
		return schemaErrorf("maxlength constraint for field %q must be an integer", field)
	}
	if n, sized := lengthOf(value); sized && int64(n) > bound {
		v.emit(seg, ErrMaxLength, constraint, value)
	}
	return nil
}

// compareValues orders two scalars when a total order between them exists.
func compareValues(a, b any) (int, bool) {
	if ia, ok := toInt64(a); ok && !isBool(a) {
		if ib, ok := toInt64(b); ok && !isBool(b) {
			return compareOrdered(ia, ib), true
		}
		if fb, ok := toFloat64(b); ok {
			return compareOrdered(float64(ia), fb), true
		}
		return 0, false
	}
	if fa, ok := toFloat64(a); ok {
		if ib, ok := toInt64(b); ok && !isBool(b) {
			return compareOrdered(fa, float64(ib)), true
		}
		if fb, ok := toFloat64(b); ok {
			return compareOrdered(fa, fb), true
		}
		return 0, false
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return compareOrdered(sa, sb), true
	}
	if da, ok := a.(Date); ok {
		db, ok := b.(Date)
		if !ok {
			return 0, false
		}
		switch {
		case da.Before(db):
			return -1, true
		case da.After(db):
			return 1, true
		}
		return 0, true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ---- pattern rule ----

var regexCache sync.Map // pattern -> *regexp.Regexp

// compileRegex compiles a pattern anchored at the start of the input.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`\A(?:` + pattern + `)`)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func validateRegex(v *Validator, constraint any, field string, seg any, value any) error {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	pattern, ok := constraint.(string)
	if !ok {
		return schemaErrorf("regex constraint for field %q must be a string", field)
	}
	re, err := compileRegex(pattern)
	if err != nil {
		return schemaErrorf("invalid regex for field %q: %v", field, err)
	}
	if !re.MatchString(s) {
		v.emit(seg, ErrRegexMismatch, constraint, value)
	}
	return nil
}

// ---- cross-field rules ----

func validateDependencies(v *Validator, constraint any, field string, seg any, value any) error {
	switch deps := constraint.(type) {
	case string:
		v.checkDependencySequence(seg, constraint, []any{deps}, value)
	case map[string]any:
		for _, dep := range sortedKeys(deps) {
			wanted := anySlice(deps[dep])
			if wanted == nil {
				wanted = []any{deps[dep]}
			}
			found, present := v.lookupField(dep)
			if !present || !containsValue(wanted, found) {
				v.emit(seg, ErrDependenciesFieldValue, deps[dep], value, dep)
			}
		}
	default:
		seq := anySlice(deps)
		if seq == nil {
			return schemaErrorf("dependencies constraint for field %q must be a field name, a sequence or a mapping", field)
		}
		v.checkDependencySequence(seg, constraint, seq, value)
	}
	return nil
}

func (v *Validator) checkDependencySequence(seg any, constraint any, deps []any, value any) {
	for _, d := range deps {
		name, ok := d.(string)
		if !ok {
			continue
		}
		if _, present := v.lookupField(name); !present {
			v.emit(seg, ErrDependenciesField, constraint, value, name)
		}
	}
}

// lookupField resolves a dot-notation path against the current document
// level. A leading ^ switches to the root document; a doubled ^^ escapes a
// literal caret in the first segment.
func (v *Validator) lookupField(path string) (any, bool) {
	context := v.document
	if strings.HasPrefix(path, "^") {
		path = path[1:]
		if !strings.HasPrefix(path, "^") {
			context = v.rootDocument
		}
	}
	var current any = context
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func validateExcludes(v *Validator, constraint any, field string, seg any, value any) error {
	excluded := anySlice(constraint)
	if excluded == nil {
		excluded = []any{constraint}
	}
	var present []string
	for _, e := range excluded {
		name, ok := e.(string)
		if !ok {
			continue
		}
		if _, found := v.document[name]; found {
			present = append(present, "'"+name+"'")
		}
	}
	if len(present) > 0 {
		v.emit(seg, ErrExcludesField, constraint, value, strings.Join(present, ", "))
	}
	return nil
}

// ---- structural rules ----

func validateItems(v *Validator, constraint any, field string, seg any, value any) error {
	defs := anySlice(constraint)
	values := anySlice(value)
	if values == nil {
		return nil
	}
	if len(defs) != len(values) {
		v.emit(seg, ErrItemsLength, constraint, value, len(defs), len(values))
		return nil
	}
	child := v.child(childOpts{
		docCrumb:    []any{seg},
		schemaCrumb: []any{seg, "items"},
		document:    indexedMapping(values),
	})
	for i, elem := range values {
		rules, err := child.resolveRulesSet(defs[i])
		if err != nil {
			return err
		}
		if err := child.validateField(strconv.Itoa(i), i, rules, elem); err != nil {
			return err
		}
	}
	if len(child.errors) > 0 {
		v.emit(seg, ErrBadItems, constraint, value, child.errors)
	}
	return nil
}

// indexedMapping views a sequence as a mapping keyed by element index, so
// rules inside element definitions can address siblings.
func indexedMapping(values []any) map[string]any {
	m := make(map[string]any, len(values))
	for i, e := range values {
		m[strconv.Itoa(i)] = e
	}
	return m
}

// validateSchemaRule dispatches the two forms of the schema rule on the
// value's shape: mappings recurse with the constraint as a sub-schema,
// sequences apply the constraint as a rules set to every element.
func validateSchemaRule(v *Validator, constraint any, field string, seg any, value any) error {
	switch val := value.(type) {
	case map[string]any:
		return v.validateMappingSchema(constraint, field, seg, val)
	default:
		elems := anySlice(value)
		if elems == nil {
			return nil
		}
		return v.validateSequenceSchema(constraint, field, seg, elems, value)
	}
}

func (v *Validator) validateMappingSchema(constraint any, field string, seg any, value map[string]any) error {
	subschema, err := v.resolveSchema(constraint)
	if err != nil {
		return err
	}
	allow := v.allowUnknown
	explicit := false
	if au, declared := v.currentRules["allow_unknown"]; declared {
		allow, explicit = au, true
	}
	var requireAll *bool
	if ra, declared := v.currentRules["require_all"]; declared {
		b := truthy(ra)
		requireAll = &b
	}
	child := v.child(childOpts{
		docCrumb:     []any{seg},
		schemaCrumb:  []any{seg, "schema"},
		document:     value,
		allowUnknown: allow,
		explicit:     explicit,
		requireAll:   requireAll,
	})
	if err := child.validateMapping(value, subschema, child.allowUnknown); err != nil {
		return err
	}
	if len(child.errors) > 0 {
		v.emit(seg, ErrMappingSchema, constraint, value, child.errors)
	}
	return nil
}

func (v *Validator) validateSequenceSchema(constraint any, field string, seg any, elems []any, value any) error {
	rules, err := v.resolveRulesSet(constraint)
	if err != nil {
		return err
	}
	child := v.child(childOpts{
		docCrumb:    []any{seg},
		schemaCrumb: []any{seg, "schema"},
		document:    indexedMapping(elems),
	})
	for i, elem := range elems {
		if err := child.validateField(strconv.Itoa(i), i, rules, elem); err != nil {
			return err
		}
	}
	if len(child.errors) > 0 {
		v.emit(seg, ErrSequenceSchema, constraint, value, child.errors)
	}
	return nil
}

func validateKeysrules(v *Validator, constraint any, field string, seg any, value any) error {
	mapping, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	rules, err := v.resolveRulesSet(constraint)
	if err != nil {
		return err
	}
	child := v.child(childOpts{
		docCrumb:    []any{seg},
		schemaCrumb: []any{seg, "keysrules"},
		document:    mapping,
	})
	for _, key := range sortedKeys(mapping) {
		if err := child.validateField(key, key, rules, key); err != nil {
			return err
		}
	}
	if len(child.errors) > 0 {
		v.emit(seg, ErrKeysrules, constraint, value, child.errors)
	}
	return nil
}

func validateValuesrules(v *Validator, constraint any, field string, seg any, value any) error {
	mapping, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	rules, err := v.resolveRulesSet(constraint)
	if err != nil {
		return err
	}
	child := v.child(childOpts{
		docCrumb:    []any{seg},
		schemaCrumb: []any{seg, "valuesrules"},
		document:    mapping,
	})
	for _, key := range sortedKeys(mapping) {
		if err := child.validateField(key, key, rules, mapping[key]); err != nil {
			return err
		}
	}
	if len(child.errors) > 0 {
		v.emit(seg, ErrValuesrules, constraint, value, child.errors)
	}
	return nil
}

// ---- custom checks ----

func validateCheckWith(v *Validator, constraint any, field string, seg any, value any) error {
	chain, err := resolveCheckChain(constraint)
	if err != nil {
		return err
	}
	for _, check := range chain {
		check(field, value, func(message string) {
			v.emit(seg, ErrCustom, constraint, value, message)
		})
	}
	return nil
}

// ---- combinators ----

func validateAllOf(v *Validator, constraint any, field string, seg any, value any) error {
	valid, total, childErrors, err := v.validateLogical("allof", constraint, field, seg, value)
	if err != nil {
		return err
	}
	if valid < total {
		v.emit(seg, ErrAllOf, constraint, value, childErrors, valid)
	}
	return nil
}

func validateAnyOf(v *Validator, constraint any, field string, seg any, value any) error {
	valid, _, childErrors, err := v.validateLogical("anyof", constraint, field, seg, value)
	if err != nil {
		return err
	}
	if valid < 1 {
		v.emit(seg, ErrAnyOf, constraint, value, childErrors, valid)
	}
	return nil
}

func validateOneOf(v *Validator, constraint any, field string, seg any, value any) error {
	valid, _, childErrors, err := v.validateLogical("oneof", constraint, field, seg, value)
	if err != nil {
		return err
	}
	if valid != 1 {
		v.emit(seg, ErrOneOf, constraint, value, childErrors, valid)
	}
	return nil
}

func validateNoneOf(v *Validator, constraint any, field string, seg any, value any) error {
	valid, _, childErrors, err := v.validateLogical("noneof", constraint, field, seg, value)
	if err != nil {
		return err
	}
	if valid > 0 {
		v.emit(seg, ErrNoneOf, constraint, value, childErrors, valid)
	}
	return nil
}

// validateLogical runs the current field's value against every definition of
// a combinator. Each definition is a partial rules set for the field; the
// field's inheritable sibling rules (type, allow_unknown) are folded into a
// definition unless the definition overrides them. Normalization rules
// inside definitions are never evaluated.
func (v *Validator) validateLogical(op string, constraint any, field string, seg any, value any) (valid, total int, childErrors ErrorList, err error) {
	defs := anySlice(constraint)
	total = len(defs)
	inherited := map[string]any{}
	for _, rule := range []string{"type", "allow_unknown"} {
		if c, ok := v.currentRules[rule]; ok {
			inherited[rule] = c
		}
	}
	for i, def := range defs {
		rules, rerr := v.resolveRulesSet(def)
		if rerr != nil {
			return 0, 0, nil, rerr
		}
		merged := make(map[string]any, len(rules)+len(inherited))
		for k, c := range rules {
			merged[k] = c
		}
		if merr := mergo.Merge(&merged, inherited); merr != nil {
			return 0, 0, nil, schemaErrorf("folding %s definition %d for field %q: %v", op, i, field, merr)
		}
		child := v.child(childOpts{
			schemaCrumb: []any{seg, op, i},
			document:    v.document,
			suppressSeg: true,
		})
		if err := child.validateField(field, seg, merged, value); err != nil {
			return 0, 0, nil, err
		}
		if len(child.errors) == 0 {
			valid++
		} else {
			childErrors = append(childErrors, child.errors...)
		}
	}
	return valid, total, childErrors, nil
}
