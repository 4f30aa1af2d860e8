// Package codec provides the built-in temporal coercers. Importing the
// package registers them, making `coerce: datetime` and `coerce: date`
// available in schemas:
//
//	import _ "github.com/reoring/garm/codec"
package codec

import (
	"fmt"
	"time"

	garm "github.com/reoring/garm"
)

func init() {
	garm.RegisterCoercer("datetime", ToDateTime)
	garm.RegisterCoercer("date", ToDate)
}

// acceptedLayouts are tried in order when coercing strings to instants.
var acceptedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ToDateTime coerces RFC 3339 strings (and a few common unzoned layouts) to
// time.Time. time.Time values pass through.
func ToDateTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range acceptedLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return nil, fmt.Errorf("cannot coerce %q to datetime", t)
	}
	return nil, fmt.Errorf("cannot coerce %T to datetime", v)
}

// ToDate coerces "2006-01-02" strings and time.Time values to garm.Date.
func ToDate(v any) (any, error) {
	switch t := v.(type) {
	case garm.Date:
		return t, nil
	case time.Time:
		return garm.DateOf(t), nil
	case string:
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to date", t)
		}
		return garm.DateOf(parsed), nil
	}
	return nil, fmt.Errorf("cannot coerce %T to date", v)
}

// FormatRFC3339 renders an instant in canonical RFC 3339 UTC form.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
