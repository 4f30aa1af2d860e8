package garm

import "strconv"

// The normalization pipeline for one mapping level. The ordering is part of
// the contract: rename, purge readonly, purge unknown, defaults, coerce,
// then recursion into containers. The pipeline works on the validator's deep
// copy; the caller's document is never touched.
func (v *Validator) normalizeMapping(mapping map[string]any, schemaAny any, allowUnknown any) error {
	schema, err := v.resolveSchema(schemaAny)
	if err != nil {
		return err
	}
	v.document = mapping

	if err := v.normalizeRename(mapping, schema, allowUnknown); err != nil {
		return err
	}
	if v.purgeReadonly {
		if err := v.purgeReadonlyFields(mapping, schema); err != nil {
			return err
		}
	}
	if err := v.purgeUnknownFields(mapping, schema, allowUnknown); err != nil {
		return err
	}
	if err := v.normalizeDefaults(mapping, schema); err != nil {
		return err
	}
	if err := v.normalizeCoerce(mapping, schema); err != nil {
		return err
	}
	return v.normalizeContainers(mapping, schema)
}

// normalizeRename applies rename constraints of known fields, then pipes
// field names through rename_handler chains: the field's own chain for
// declared fields, the allow_unknown chain for unmatched keys.
func (v *Validator) normalizeRename(mapping map[string]any, schema map[string]any, allowUnknown any) error {
	for _, field := range sortedKeys(mapping) {
		rulesAny, known := schema[field]
		if !known {
			continue
		}
		rules, err := v.resolveRulesSet(rulesAny)
		if err != nil {
			return err
		}
		if target, declared := rules["rename"]; declared {
			name, ok := target.(string)
			if !ok {
				return schemaErrorf("rename constraint for field %q must be a string", field)
			}
			if _, taken := mapping[name]; taken {
				v.emit(field, ErrRenameCollision, name, mapping[field])
				continue
			}
			mapping[name] = mapping[field]
			delete(mapping, field)
			field = name
		}
		if handler, declared := rules["rename_handler"]; declared {
			if err := v.renameThrough(mapping, field, handler); err != nil {
				return err
			}
		}
	}

	unknownRules, err := v.unknownFieldRules(allowUnknown)
	if err != nil {
		return err
	}
	if unknownRules == nil {
		return nil
	}
	handler, declared := unknownRules["rename_handler"]
	if !declared {
		return nil
	}
	for _, field := range sortedKeys(mapping) {
		if _, known := schema[field]; known {
			continue
		}
		if err := v.renameThrough(mapping, field, handler); err != nil {
			return err
		}
	}
	return nil
}

// renameThrough pipes one field name through a handler chain and moves the
// entry. Chain failures emit a renaming-failed error and keep the old name.
func (v *Validator) renameThrough(mapping map[string]any, field string, handler any) error {
	chain, err := resolveCoercerChain(handler)
	if err != nil {
		return err
	}
	var renamed any = field
	for _, fn := range chain {
		renamed, err = fn(renamed)
		if err != nil {
			v.emit(field, ErrRenamingFailed, handler, mapping[field], err.Error())
			return nil
		}
	}
	name, ok := renamed.(string)
	if !ok {
		v.emit(field, ErrRenamingFailed, handler, mapping[field], "handler produced a non-string name")
		return nil
	}
	if name == field {
		return nil
	}
	mapping[name] = mapping[field]
	delete(mapping, field)
	return nil
}

// unknownFieldRules extracts the rules-set form of an allow_unknown policy.
func (v *Validator) unknownFieldRules(allowUnknown any) (map[string]any, error) {
	switch allowUnknown.(type) {
	case nil, bool:
		return nil, nil
	}
	return v.resolveRulesSet(allowUnknown)
}

func (v *Validator) purgeReadonlyFields(mapping map[string]any, schema map[string]any) error {
	for _, field := range sortedKeys(mapping) {
		rulesAny, known := schema[field]
		if !known {
			continue
		}
		rules, err := v.resolveRulesSet(rulesAny)
		if err != nil {
			return err
		}
		if truthy(rules["readonly"]) {
			delete(mapping, field)
		}
	}
	return nil
}

// purgeUnknownFields drops unmatched keys when purging applies at this
// scope. An allow_unknown policy takes precedence: fields it admits stay.
func (v *Validator) purgeUnknownFields(mapping map[string]any, schema map[string]any, allowUnknown any) error {
	purge := v.purgeUnknown
	if rules, err := v.unknownFieldRules(allowUnknown); err != nil {
		return err
	} else if rules != nil {
		if p, declared := rules["purge_unknown"]; declared {
			purge = truthy(p)
		} else {
			purge = false
		}
	} else if allowsUnknown(allowUnknown) {
		purge = false
	}
	if !purge {
		return nil
	}
	for _, field := range sortedKeys(mapping) {
		if _, known := schema[field]; !known {
			delete(mapping, field)
		}
	}
	return nil
}

// normalizeDefaults fills missing declared fields: literal defaults first,
// then default setters. Setters may depend on defaulted siblings, so they
// run in passes until none makes progress; each setter still stuck then
// emits a default-setting error.
func (v *Validator) normalizeDefaults(mapping map[string]any, schema map[string]any) error {
	type pendingSetter struct {
		field  string
		setter DefaultSetter
		err    error
	}
	var pending []pendingSetter

	for _, field := range sortedKeys(schema) {
		if _, present := mapping[field]; present {
			continue
		}
		rules, err := v.resolveRulesSet(schema[field])
		if err != nil {
			return err
		}
		if dflt, declared := rules["default"]; declared {
			mapping[field] = deepCopy(dflt)
			continue
		}
		if setterAny, declared := rules["default_setter"]; declared {
			setter, err := resolveDefaultSetter(setterAny)
			if err != nil {
				return err
			}
			pending = append(pending, pendingSetter{field: field, setter: setter})
		}
	}

	for pass := 0; pass <= len(pending) && len(pending) > 0; pass++ {
		var stuck []pendingSetter
		for _, p := range pending {
			value, err := p.setter(mapping)
			if err != nil {
				p.err = err
				stuck = append(stuck, p)
				continue
			}
			mapping[p.field] = value
		}
		if len(stuck) == len(pending) {
			for _, p := range stuck {
				v.emit(p.field, ErrSettingDefaultFailed, nil, nil, p.err.Error())
			}
			return nil
		}
		pending = stuck
	}
	return nil
}

// normalizeCoerce replaces present values by their coercion chain's result.
// A failing coercer emits an error and leaves the value untouched, so
// validation then runs against the original value.
func (v *Validator) normalizeCoerce(mapping map[string]any, schema map[string]any) error {
	for _, field := range sortedKeys(mapping) {
		rulesAny, known := schema[field]
		if !known {
			continue
		}
		rules, err := v.resolveRulesSet(rulesAny)
		if err != nil {
			return err
		}
		coerced, err := v.coerceValue(field, mapping[field], rules)
		if err != nil {
			return err
		}
		mapping[field] = coerced
	}
	return nil
}

// coerceValue applies a coerce chain to one value. Null values of nullable
// fields pass through unchanged.
func (v *Validator) coerceValue(seg any, value any, rules map[string]any) (any, error) {
	constraint, declared := rules["coerce"]
	if !declared {
		return value, nil
	}
	if value == nil && truthy(rules["nullable"]) {
		return value, nil
	}
	chain, err := resolveCoercerChain(constraint)
	if err != nil {
		return nil, err
	}
	result := value
	for _, fn := range chain {
		next, err := fn(result)
		if err != nil {
			v.emit(seg, ErrCoercionFailed, constraint, value, err.Error())
			return value, nil
		}
		result = next
	}
	return result, nil
}

// normalizeContainers reapplies the pipeline to nested mappings and
// sequences per their schema, keysrules, valuesrules and items constraints.
// Definitions inside combinator rules do not normalize.
func (v *Validator) normalizeContainers(mapping map[string]any, schema map[string]any) error {
	for _, field := range sortedKeys(mapping) {
		rulesAny, known := schema[field]
		if !known {
			continue
		}
		rules, err := v.resolveRulesSet(rulesAny)
		if err != nil {
			return err
		}
		if err := v.normalizeChild(mapping, field, field, rules); err != nil {
			return err
		}
	}
	return nil
}

// normalizeChild recurses into one container entry. field addresses the
// entry in mapping; seg is the path segment recorded in errors.
func (v *Validator) normalizeChild(mapping map[string]any, field string, seg any, rules map[string]any) error {
	switch value := mapping[field].(type) {
	case map[string]any:
		if constraint, declared := rules["schema"]; declared {
			allow := v.allowUnknown
			explicit := false
			if au, set := rules["allow_unknown"]; set {
				allow, explicit = au, true
			}
			child := v.child(childOpts{
				docCrumb:     []any{seg},
				schemaCrumb:  []any{seg, "schema"},
				allowUnknown: allow,
				explicit:     explicit,
			})
			if err := child.normalizeMapping(value, constraint, child.allowUnknown); err != nil {
				return err
			}
			v.errors = append(v.errors, child.errors...)
		}
		if constraint, declared := rules["keysrules"]; declared {
			if err := v.normalizeKeys(seg, value, constraint); err != nil {
				return err
			}
		}
		if constraint, declared := rules["valuesrules"]; declared {
			if err := v.normalizeValues(seg, value, constraint); err != nil {
				return err
			}
		}
	default:
		elems := anySlice(mapping[field])
		if elems == nil {
			return nil
		}
		if constraint, declared := rules["schema"]; declared {
			elemRules, err := v.resolveRulesSet(constraint)
			if err == nil {
				if err := v.normalizeElements(seg, elems, func(int) map[string]any { return elemRules }); err != nil {
					return err
				}
			}
		}
		if constraint, declared := rules["items"]; declared {
			defs := anySlice(constraint)
			if defs == nil || len(defs) != len(elems) {
				return nil
			}
			resolved := make([]map[string]any, len(defs))
			for i, d := range defs {
				r, err := v.resolveRulesSet(d)
				if err != nil {
					return err
				}
				resolved[i] = r
			}
			if err := v.normalizeElements(seg, elems, func(i int) map[string]any { return resolved[i] }); err != nil {
				return err
			}
		}
	}
	return nil
}

// normalizeKeys rewrites the keys of a nested mapping through the
// rename_handler chain of a keysrules constraint, or through its coerce chain
// when no rename_handler is declared. Only one of the two chains is applied.
func (v *Validator) normalizeKeys(seg any, mapping map[string]any, constraint any) error {
	rules, err := v.resolveRulesSet(constraint)
	if err != nil {
		return err
	}
	handler, declared := rules["rename_handler"]
	if !declared {
		handler, declared = rules["coerce"]
	}
	if !declared {
		return nil
	}
	child := v.child(childOpts{
		docCrumb:    []any{seg},
		schemaCrumb: []any{seg, "keysrules"},
	})
	for _, key := range sortedKeys(mapping) {
		if err := child.renameThrough(mapping, key, handler); err != nil {
			return err
		}
	}
	v.errors = append(v.errors, child.errors...)
	return nil
}

// normalizeValues applies a valuesrules constraint's normalization to every
// value of a nested mapping.
func (v *Validator) normalizeValues(seg any, mapping map[string]any, constraint any) error {
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
		coerced, err := child.coerceValue(key, mapping[key], rules)
		if err != nil {
			return err
		}
		mapping[key] = coerced
		if err := child.normalizeChild(mapping, key, key, rules); err != nil {
			return err
		}
	}
	v.errors = append(v.errors, child.errors...)
	return nil
}

// normalizeElements applies per-element rules to a sequence in place.
func (v *Validator) normalizeElements(seg any, elems []any, rulesFor func(int) map[string]any) error {
	indexed := indexedMapping(elems)
	child := v.child(childOpts{
		docCrumb:    []any{seg},
		schemaCrumb: []any{seg, "schema"},
		document:    indexed,
	})
	for i := range elems {
		rules := rulesFor(i)
		coerced, err := child.coerceValue(i, elems[i], rules)
		if err != nil {
			return err
		}
		key := strconv.Itoa(i)
		indexed[key] = coerced
		if err := child.normalizeChild(indexed, key, i, rules); err != nil {
			return err
		}
		elems[i] = indexed[key]
	}
	v.errors = append(v.errors, child.errors...)
	return nil
}
