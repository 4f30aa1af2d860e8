package garm_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	garm "github.com/reoring/garm"
)

func mustValidator(t *testing.T, schema map[string]any, opts ...garm.Option) *garm.Validator {
	t.Helper()
	v, err := garm.NewValidator(schema, opts...)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func mustValidate(t *testing.T, v *garm.Validator, doc map[string]any) bool {
	t.Helper()
	ok, err := v.Validate(doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return ok
}

func TestValidateSimpleDocument(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"name": map[string]any{"type": "string"},
	})
	if !mustValidate(t, v, map[string]any{"name": "john doe"}) {
		t.Fatalf("expected valid document, errors: %v", v.Errors())
	}
	if len(v.ErrorsMap()) != 0 {
		t.Fatalf("expected empty errors map, got %v", v.ErrorsMap())
	}
}

func TestValidateCollectsAllFieldErrors(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"name": map[string]any{"type": "string"},
		"age":  map[string]any{"type": "integer", "min": 10},
	})
	if mustValidate(t, v, map[string]any{"name": 1337, "age": 5}) {
		t.Fatal("expected invalid document")
	}
	out := v.ErrorsMap()
	age, _ := out["age"].([]any)
	if len(age) != 1 || age[0] != "min value is 10" {
		t.Fatalf("unexpected age errors: %v", out["age"])
	}
	name, _ := out["name"].([]any)
	if len(name) != 1 || name[0] != "must be of string type" {
		t.Fatalf("unexpected name errors: %v", out["name"])
	}
}

func TestValidateCoercesBeforeTypeCheck(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"amount": map[string]any{"type": "integer", "coerce": "int"},
	})
	if !mustValidate(t, v, map[string]any{"amount": "1"}) {
		t.Fatalf("expected valid document, errors: %v", v.Errors())
	}
	if diff := cmp.Diff(map[string]any{"amount": int64(1)}, v.Document()); diff != "" {
		t.Fatalf("normalized document mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateInjectsDefaults(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"amount": map[string]any{"type": "integer"},
		"kind":   map[string]any{"type": "string", "default": "purchase"},
	})
	if !mustValidate(t, v, map[string]any{"amount": 1}) {
		t.Fatalf("expected valid document, errors: %v", v.Errors())
	}
	if diff := cmp.Diff(map[string]any{"amount": 1, "kind": "purchase"}, v.Document()); diff != "" {
		t.Fatalf("normalized document mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateAnyofReportsChildFailures(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"prop1": map[string]any{
			"type": "number",
			"anyof": []any{
				map[string]any{"min": 0, "max": 10},
				map[string]any{"min": 100, "max": 110},
			},
		},
	})
	if mustValidate(t, v, map[string]any{"prop1": 55}) {
		t.Fatal("expected invalid document")
	}
	errs := v.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected one top-level error, got %d: %v", len(errs), errs)
	}
	anyofErr := errs[0]
	if anyofErr.Code != garm.ErrAnyOf.Code || !anyofErr.IsLogic() {
		t.Fatalf("expected anyof logic error, got code 0x%x", anyofErr.Code)
	}
	if got := len(anyofErr.ChildErrors()); got != 2 {
		t.Fatalf("expected two child failures, got %d", got)
	}
	if len(anyofErr.DefinitionErrors(0)) != 1 || len(anyofErr.DefinitionErrors(1)) != 1 {
		t.Fatalf("expected one failure per definition, got %v", anyofErr.ChildErrors())
	}
}

func TestValidateDependenciesWithValues(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"field1": map[string]any{"required": false},
		"field2": map[string]any{
			"required":     true,
			"dependencies": map[string]any{"field1": []any{"one", "two"}},
		},
	})
	if mustValidate(t, v, map[string]any{"field2": 7}) {
		t.Fatal("expected invalid document")
	}
	errs := v.Errors()
	if len(errs) != 1 || errs[0].Code != garm.ErrDependenciesFieldValue.Code {
		t.Fatalf("expected one dependency error, got %v", errs)
	}

	if !mustValidate(t, v, map[string]any{"field1": "one", "field2": 7}) {
		t.Fatalf("expected valid document, errors: %v", v.Errors())
	}
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	doc := map[string]any{
		"amount": "1",
		"nested": map[string]any{"list": []any{1, 2}},
	}
	want := map[string]any{
		"amount": "1",
		"nested": map[string]any{"list": []any{1, 2}},
	}
	v := mustValidator(t, map[string]any{
		"amount": map[string]any{"type": "integer", "coerce": "int"},
		"nested": map[string]any{"type": "dict", "schema": map[string]any{
			"list": map[string]any{"type": "list"},
		}},
	})
	mustValidate(t, v, doc)
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("input document mutated (-want +got):\n%s", diff)
	}
}

func TestValidateUpdateSuppressesRequired(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"name": map[string]any{"type": "string", "required": true},
		"age":  map[string]any{"type": "integer"},
	})
	if mustValidate(t, v, map[string]any{"age": 5}) {
		t.Fatal("expected required error without update mode")
	}
	ok, err := v.ValidateUpdate(map[string]any{"age": 5})
	if err != nil {
		t.Fatalf("ValidateUpdate: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid in update mode, errors: %v", v.Errors())
	}
}

func TestValidatedReturnsNormalizedCopy(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"kind": map[string]any{"type": "string", "default": "purchase"},
	})
	doc, err := v.Validated(map[string]any{})
	if err != nil {
		t.Fatalf("Validated: %v", err)
	}
	if doc["kind"] != "purchase" {
		t.Fatalf("expected defaulted document, got %v", doc)
	}

	_, err = v.Validated(map[string]any{"kind": 1})
	if _, ok := err.(garm.ErrorList); !ok {
		t.Fatalf("expected ErrorList on failure, got %T", err)
	}
}

func TestNilDocumentIsDocumentError(t *testing.T) {
	v := mustValidator(t, map[string]any{"a": map[string]any{"type": "string"}})
	_, err := v.Validate(nil)
	if _, ok := err.(*garm.DocumentError); !ok {
		t.Fatalf("expected *DocumentError, got %T: %v", err, err)
	}
}

func TestMissingSchemaIsSchemaError(t *testing.T) {
	v, err := garm.NewValidator(nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	_, err = v.Validate(map[string]any{})
	if _, ok := err.(*garm.SchemaError); !ok {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
}

func TestAnyofSingleDefinitionEquivalence(t *testing.T) {
	plain := mustValidator(t, map[string]any{
		"n": map[string]any{"type": "integer", "min": 3},
	})
	wrapped := mustValidator(t, map[string]any{
		"n": map[string]any{"type": "integer", "anyof": []any{map[string]any{"min": 3}}},
	})
	for _, doc := range []map[string]any{{"n": 2}, {"n": 3}, {"n": 10}} {
		if mustValidate(t, plain, doc) != mustValidate(t, wrapped, doc) {
			t.Fatalf("anyof([r]) diverged from r for %v", doc)
		}
	}
}

func TestAllofEquivalentToSequentialRules(t *testing.T) {
	composed := mustValidator(t, map[string]any{
		"n": map[string]any{"type": "integer", "min": 3, "max": 9},
	})
	combined := mustValidator(t, map[string]any{
		"n": map[string]any{"type": "integer", "allof": []any{
			map[string]any{"min": 3},
			map[string]any{"max": 9},
		}},
	})
	for _, doc := range []map[string]any{{"n": 1}, {"n": 5}, {"n": 11}} {
		if mustValidate(t, composed, doc) != mustValidate(t, combined, doc) {
			t.Fatalf("allof([r1,r2]) diverged from r1+r2 for %v", doc)
		}
	}
}

func TestErrorsEmptyIffValid(t *testing.T) {
	v := mustValidator(t, map[string]any{"n": map[string]any{"type": "integer"}})
	for _, doc := range []map[string]any{{"n": 1}, {"n": "x"}} {
		ok := mustValidate(t, v, doc)
		if ok != (len(v.Errors()) == 0) {
			t.Fatalf("validity %v disagrees with error count %d", ok, len(v.Errors()))
		}
	}
}
