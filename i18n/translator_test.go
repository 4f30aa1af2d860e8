package i18n_test

import (
	"testing"

	"github.com/reoring/garm/i18n"
)

func TestBuiltinTemplates(t *testing.T) {
	if got := i18n.T(0x02, nil); got != "required field" {
		t.Fatalf("unexpected template %q", got)
	}
	if got := i18n.T(0x24, nil); got != "must be of {constraint} type" {
		t.Fatalf("unexpected template %q", got)
	}
}

func TestUnknownCodeFallsBack(t *testing.T) {
	if got := i18n.T(0x777, nil); got != "error 0x777" {
		t.Fatalf("unexpected fallback %q", got)
	}
}

type shouting struct{}

func (shouting) Message(code int, data map[string]string) string { return "NOPE" }

func TestSetTranslator(t *testing.T) {
	i18n.SetTranslator(shouting{})
	defer i18n.SetTranslator(nil)
	if got := i18n.T(0x02, nil); got != "NOPE" {
		t.Fatalf("custom translator not used, got %q", got)
	}
}
