package codec_test

import (
	"testing"
	"time"

	garm "github.com/reoring/garm"
	"github.com/reoring/garm/codec"
)

func TestToDateTime(t *testing.T) {
	out, err := codec.ToDateTime("2024-03-01T12:30:00Z")
	if err != nil {
		t.Fatalf("ToDateTime: %v", err)
	}
	got, ok := out.(time.Time)
	if !ok || !got.Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %v", out)
	}
	if _, err := codec.ToDateTime("yesterday"); err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestToDate(t *testing.T) {
	out, err := codec.ToDate("2024-03-01")
	if err != nil {
		t.Fatalf("ToDate: %v", err)
	}
	if got := out.(garm.Date); got != garm.NewDate(2024, time.March, 1) {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestDateTimeCoercerRegistered(t *testing.T) {
	v, err := garm.NewValidator(map[string]any{
		"when": map[string]any{"type": "datetime", "coerce": "datetime"},
	})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	ok, err := v.Validate(map[string]any{"when": "2024-03-01T12:30:00Z"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok {
		t.Fatalf("expected coerced datetime to validate, errors: %v", v.Errors())
	}
	if _, isTime := v.Document()["when"].(time.Time); !isTime {
		t.Fatalf("expected time.Time in normalized document, got %T", v.Document()["when"])
	}
}

func TestFormatRFC3339(t *testing.T) {
	instant := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("X", 3600))
	if got := codec.FormatRFC3339(instant); got != "2024-03-01T11:30:00Z" {
		t.Fatalf("unexpected canonical form %q", got)
	}
}
