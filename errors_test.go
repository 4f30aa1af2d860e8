package garm_test

import (
	"strings"
	"testing"

	garm "github.com/reoring/garm"
)

func TestErrorClassificationBits(t *testing.T) {
	cases := []struct {
		def           garm.ErrorDefinition
		group, logic  bool
		normalization bool
	}{
		{garm.ErrRequiredField, false, false, false},
		{garm.ErrCoercionFailed, false, false, true},
		{garm.ErrMappingSchema, true, false, false},
		{garm.ErrAnyOf, true, true, false},
		{garm.ErrOneOf, true, true, false},
	}
	for _, tc := range cases {
		e := &garm.ValidationError{Code: tc.def.Code}
		if e.IsGroup() != tc.group {
			t.Errorf("code 0x%x: IsGroup=%v, want %v", tc.def.Code, e.IsGroup(), tc.group)
		}
		if e.IsLogic() != tc.logic {
			t.Errorf("code 0x%x: IsLogic=%v, want %v", tc.def.Code, e.IsLogic(), tc.logic)
		}
		if e.IsNormalization() != tc.normalization {
			t.Errorf("code 0x%x: IsNormalization=%v, want %v", tc.def.Code, e.IsNormalization(), tc.normalization)
		}
	}
}

func TestErrorPathsAreAbsolute(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"outer": map[string]any{"type": "dict", "schema": map[string]any{
			"inner": map[string]any{"type": "integer"},
		}},
	})
	mustValidate(t, v, map[string]any{"outer": map[string]any{"inner": "x"}})
	group := v.Errors()[0]
	child := group.ChildErrors()[0]
	if len(child.DocumentPath) != 2 || child.DocumentPath[0] != "outer" || child.DocumentPath[1] != "inner" {
		t.Fatalf("unexpected document path %v", child.DocumentPath)
	}
	wantSchema := []any{"outer", "schema", "inner", "type"}
	if len(child.SchemaPath) != len(wantSchema) {
		t.Fatalf("unexpected schema path %v", child.SchemaPath)
	}
	for i := range wantSchema {
		if child.SchemaPath[i] != wantSchema[i] {
			t.Fatalf("unexpected schema path %v, want %v", child.SchemaPath, wantSchema)
		}
	}
}

func TestSchemaErrorTreeProjection(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"age": map[string]any{"type": "integer", "min": 10},
	})
	mustValidate(t, v, map[string]any{"age": 5})
	tree := v.SchemaErrorTree()
	errs := tree.FetchErrors("age", "min")
	if len(errs) != 1 || errs[0].Code != garm.ErrMinValue.Code {
		t.Fatalf("expected min error under schema path age.min, got %v", errs)
	}
}

func TestDocumentErrorTreeDigsIntoGroups(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"xs": map[string]any{"type": "list", "schema": map[string]any{"type": "integer"}},
	})
	mustValidate(t, v, map[string]any{"xs": []any{"a", 2, "c"}})
	tree := v.DocumentErrorTree()
	for _, idx := range []int{0, 2} {
		if errs := tree.FetchErrors("xs", idx); len(errs) != 1 {
			t.Fatalf("expected error at xs[%d], got %v", idx, errs)
		}
	}
	if errs := tree.FetchErrors("xs", 1); len(errs) != 0 {
		t.Fatalf("expected no error at xs[1], got %v", errs)
	}
}

func TestErrorListSummary(t *testing.T) {
	el := garm.ErrorList{
		{DocumentPath: []any{"a"}, Code: garm.ErrBadType.Code},
		{DocumentPath: []any{"b"}, Code: garm.ErrMinValue.Code},
		{DocumentPath: []any{"c"}, Code: garm.ErrMaxValue.Code},
		{DocumentPath: []any{"d"}, Code: garm.ErrRegexMismatch.Code},
	}
	s := el.Error()
	if s == "" || !strings.Contains(s, "total 4") {
		t.Fatalf("unexpected summary %q", s)
	}
}

func TestBasicErrorHandlerNestedOutput(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"name": map[string]any{"type": "string", "required": true},
		"address": map[string]any{"type": "dict", "schema": map[string]any{
			"city": map[string]any{"type": "string"},
		}},
	})
	mustValidate(t, v, map[string]any{"address": map[string]any{"city": 3}})
	out := v.ErrorsMap()

	name, _ := out["name"].([]any)
	if len(name) != 1 || name[0] != "required field" {
		t.Fatalf("unexpected name bucket %v", out["name"])
	}
	address, _ := out["address"].([]any)
	if len(address) != 1 {
		t.Fatalf("unexpected address bucket %v", out["address"])
	}
	nested, _ := address[0].(map[string]any)
	city, _ := nested["city"].([]any)
	if len(city) != 1 || city[0] != "must be of string type" {
		t.Fatalf("unexpected nested city bucket %v", nested)
	}
}

func TestBasicErrorHandlerMessageOverride(t *testing.T) {
	h := garm.NewBasicErrorHandler()
	h.Messages = map[int]string{garm.ErrRequiredField.Code: "missing!"}
	v := mustValidator(t, map[string]any{
		"f": map[string]any{"required": true},
	}, garm.WithErrorHandler(h))
	mustValidate(t, v, map[string]any{})
	out := v.ErrorsMap()
	f, _ := out["f"].([]any)
	if len(f) != 1 || f[0] != "missing!" {
		t.Fatalf("expected overridden message, got %v", out)
	}
}

func TestBasicErrorHandlerLogicBranches(t *testing.T) {
	v := mustValidator(t, map[string]any{
		"prop1": map[string]any{"type": "number", "anyof": []any{
			map[string]any{"min": 0, "max": 10},
			map[string]any{"min": 100, "max": 110},
		}},
	})
	mustValidate(t, v, map[string]any{"prop1": 55})
	out := v.ErrorsMap()
	bucket, _ := out["prop1"].([]any)
	if len(bucket) != 2 {
		t.Fatalf("expected message plus branch mapping, got %v", bucket)
	}
	if bucket[0] != "no definitions validate" {
		t.Fatalf("unexpected anyof message %v", bucket[0])
	}
	branches, _ := bucket[1].(map[string]any)
	if _, ok := branches["anyof definition 0"]; !ok {
		t.Fatalf("expected branch for definition 0, got %v", branches)
	}
	if _, ok := branches["anyof definition 1"]; !ok {
		t.Fatalf("expected branch for definition 1, got %v", branches)
	}
}
