package garm_test

import (
	"errors"
	"testing"

	garm "github.com/reoring/garm"
)

func TestMetaValidationRejectsUnknownRule(t *testing.T) {
	_, err := garm.NewValidator(map[string]any{
		"f": map[string]any{"no_such_rule": 1},
	})
	var schemaErr *garm.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
}

func TestMetaValidationRejectsUnknownType(t *testing.T) {
	_, err := garm.NewValidator(map[string]any{
		"f": map[string]any{"type": "not_a_type"},
	})
	if _, ok := err.(*garm.SchemaError); !ok {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
}

func TestMetaValidationRejectsBadConstraintShapes(t *testing.T) {
	bad := []map[string]any{
		{"f": map[string]any{"required": "yes"}},
		{"f": map[string]any{"allowed": 5}},
		{"f": map[string]any{"regex": "("}},
		{"f": map[string]any{"items": 3}},
		{"f": map[string]any{"anyof": map[string]any{}}},
		{"f": map[string]any{"minlength": "two"}},
		{"f": 42},
	}
	for i, schema := range bad {
		if _, err := garm.NewValidator(schema); err == nil {
			t.Errorf("case %d: expected meta-validation failure for %v", i, schema)
		}
	}
}

func TestMetaValidationAcceptsSpecimenSchemas(t *testing.T) {
	good := []map[string]any{
		{"name": map[string]any{"type": "string"}},
		{"age": map[string]any{"type": "integer", "min": 10}},
		{"amount": map[string]any{"type": "integer", "coerce": "int"}},
		{"kind": map[string]any{"type": "string", "default": "purchase"}},
		{"prop1": map[string]any{"type": "number", "anyof": []any{
			map[string]any{"min": 0, "max": 10},
			map[string]any{"min": 100, "max": 110},
		}}},
		{"field1": map[string]any{"required": false},
			"field2": map[string]any{"required": true,
				"dependencies": map[string]any{"field1": []any{"one", "two"}}}},
	}
	for i, schema := range good {
		if _, err := garm.NewValidator(schema); err != nil {
			t.Errorf("case %d: unexpected meta-validation failure: %v", i, err)
		}
	}
}

func TestRulesSetRegistryReference(t *testing.T) {
	registry := garm.NewRegistry()
	registry.Add("positive integer", map[string]any{"type": "integer", "min": 1})
	v := mustValidator(t, map[string]any{
		"n": "positive integer",
	}, garm.WithRulesSetRegistry(registry))
	if !mustValidate(t, v, map[string]any{"n": 3}) {
		t.Fatalf("expected valid document, errors: %v", v.Errors())
	}
	if mustValidate(t, v, map[string]any{"n": 0}) {
		t.Fatal("expected min violation through registry reference")
	}
}

func TestUnresolvedReferenceIsSchemaError(t *testing.T) {
	_, err := garm.NewValidator(map[string]any{"n": "nowhere"},
		garm.WithRulesSetRegistry(garm.NewRegistry()))
	if _, ok := err.(*garm.SchemaError); !ok {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
}

func TestRegistryUpdateInvalidatesMetaValidation(t *testing.T) {
	registry := garm.NewRegistry()
	registry.Add("entry", map[string]any{"type": "integer"})
	schema := map[string]any{"n": "entry"}
	if _, err := garm.NewValidator(schema, garm.WithRulesSetRegistry(registry)); err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	registry.Add("entry", map[string]any{"bogus_rule": true})
	if _, err := garm.NewValidator(schema, garm.WithRulesSetRegistry(registry)); err == nil {
		t.Fatal("expected meta-validation to re-run after registry update")
	}
}

func TestCyclicSchemaViaRegistry(t *testing.T) {
	registry := garm.NewRegistry()
	registry.Add("node", map[string]any{
		"value": map[string]any{"type": "integer"},
		"children": map[string]any{
			"type":   "list",
			"schema": map[string]any{"schema": "node"},
		},
	})
	v := mustValidator(t, map[string]any{
		"root": map[string]any{"type": "dict", "schema": "node"},
	}, garm.WithSchemaRegistry(registry))

	doc := map[string]any{"root": map[string]any{
		"value": 1,
		"children": []any{
			map[string]any{"value": 2, "children": []any{}},
		},
	}}
	if !mustValidate(t, v, doc) {
		t.Fatalf("expected cyclic schema to validate finite document, errors: %v", v.Errors())
	}

	bad := map[string]any{"root": map[string]any{
		"value": 1,
		"children": []any{
			map[string]any{"value": "deep", "children": []any{}},
		},
	}}
	if mustValidate(t, v, bad) {
		t.Fatal("expected nested type error through cyclic reference")
	}
}

func TestSchemaOfSchemasEnumeratesRules(t *testing.T) {
	sos := garm.SchemaOfSchemas()
	for _, rule := range []string{"type", "min", "schema", "anyof", "coerce", "rename"} {
		if _, ok := sos[rule]; !ok {
			t.Errorf("schema-of-schemas misses rule %q", rule)
		}
	}
	for _, alias := range []string{"keyschema", "valueschema", "validator"} {
		if _, ok := sos[alias]; ok {
			t.Errorf("schema-of-schemas must not list alias %q", alias)
		}
	}
}

func TestSchemaOfSchemasFragmentsAreMetaValid(t *testing.T) {
	for rule, fragment := range garm.SchemaOfSchemas() {
		rs, ok := fragment.(map[string]any)
		if !ok {
			t.Errorf("fragment for %q is not a rules set", rule)
			continue
		}
		if _, err := garm.NewValidator(map[string]any{"constraint": rs}); err != nil {
			t.Errorf("fragment for %q fails meta-validation: %v", rule, err)
		}
	}
}

func TestRegisterRuleExtension(t *testing.T) {
	errEven := garm.ErrorDefinition{Code: garm.CodeUserStart | 0x01, Rule: "is_even"}
	err := garm.RegisterRule(garm.RuleSpec{
		Name:             "is_even",
		Phase:            garm.PhaseNormal,
		ConstraintSchema: map[string]any{"type": "boolean"},
		Validate: func(v *garm.Validator, constraint any, field string, seg any, value any) error {
			want, _ := constraint.(bool)
			n, ok := value.(int)
			if !ok {
				return nil
			}
			if want && n%2 != 0 {
				v.Emit(seg, errEven, constraint, value)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	v := mustValidator(t, map[string]any{
		"n": map[string]any{"type": "integer", "is_even": true},
	})
	if !mustValidate(t, v, map[string]any{"n": 4}) {
		t.Fatalf("expected valid document, errors: %v", v.Errors())
	}
	mustValidate(t, v, map[string]any{"n": 3})
	errs := v.Errors()
	if len(errs) != 1 || errs[0].Code != errEven.Code {
		t.Fatalf("expected custom rule error, got %v", errs)
	}

	if _, err := garm.NewValidator(map[string]any{
		"n": map[string]any{"is_even": "yes"},
	}); err == nil {
		t.Fatal("expected constraint schema of the custom rule to reject non-bool")
	}
}

func TestRegisterTypesExtension(t *testing.T) {
	if err := garm.RegisterTypes(garm.TypeDefinition{
		Name:  "port",
		Check: func(v any) bool { n, ok := v.(int); return ok && n > 0 && n < 65536 },
	}); err != nil {
		t.Fatalf("RegisterTypes: %v", err)
	}
	v := mustValidator(t, map[string]any{
		"p": map[string]any{"type": "port"},
	})
	if !mustValidate(t, v, map[string]any{"p": 8080}) {
		t.Fatalf("expected valid port, errors: %v", v.Errors())
	}
	if mustValidate(t, v, map[string]any{"p": 70000}) {
		t.Fatal("expected out-of-range port to fail")
	}
}

func TestRegisterTypesComposition(t *testing.T) {
	if err := garm.RegisterTypes(garm.TypeDefinition{
		Name:     "scalar_text",
		Included: []string{"string", "bytes"},
		Excluded: []string{"list"},
	}); err != nil {
		t.Fatalf("RegisterTypes: %v", err)
	}
	v := mustValidator(t, map[string]any{
		"f": map[string]any{"type": "scalar_text"},
	})
	if !mustValidate(t, v, map[string]any{"f": "x"}) {
		t.Fatalf("expected string to match composed type, errors: %v", v.Errors())
	}
	if mustValidate(t, v, map[string]any{"f": 3}) {
		t.Fatal("expected integer to fail composed type")
	}
}
