package i18n

import "strconv"

// Translator retrieves message templates for error codes. data provides
// optional substitutions rendered into the template by the error handler
// (for example, "constraint" or "value").
type Translator interface {
	Message(code int, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var englishMessages = map[int]string{
	0x00: "{0}",
	0x01: "document is missing",
	0x02: "required field",
	0x03: "unknown field",
	0x04: "field '{0}' is required",
	0x05: "depends on these values: {constraint}",
	0x06: "{0} must not be present with '{field}'",
	0x21: "'{0}' is not a document, must be a dict",
	0x22: "empty values not allowed",
	0x23: "null value not allowed",
	0x24: "must be of {constraint} type",
	0x25: "must be of dict type",
	0x26: "length of list should be {0}, it is {1}",
	0x27: "min length is {constraint}",
	0x28: "max length is {constraint}",
	0x41: "value does not match regex '{constraint}'",
	0x42: "min value is {constraint}",
	0x43: "max value is {constraint}",
	0x44: "unallowed value {value}",
	0x45: "unallowed values {0}",
	0x46: "unallowed value {value}",
	0x47: "unallowed values {0}",
	0x48: "missing members {0}",
	0x61: "field '{field}' cannot be coerced: {0}",
	0x62: "field '{field}' cannot be renamed: {0}",
	0x63: "field is read-only",
	0x64: "default value for '{field}' cannot be set: {0}",
	0x65: "field '{field}' cannot be renamed: target '{constraint}' exists",
	0x81: "mapping doesn't validate subschema: {0}",
	0x82: "one or more sequence-items don't validate: {0}",
	0x83: "one or more keys of a mapping don't validate: {0}",
	0x84: "one or more values in a mapping don't validate: {0}",
	0x8F: "one or more sequence-items don't validate: {0}",
	0x91: "one or more definitions validate",
	0x92: "none or more than one rule validate",
	0x93: "no definitions validate",
	0x94: "one or more definitions don't validate",
}

func (t dictTranslator) Message(code int, data map[string]string) string {
	tpl, ok := englishMessages[code]
	if !ok {
		return "error 0x" + strconv.FormatInt(int64(code), 16)
	}
	return tpl
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). Passing nil restores the built-in English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches the template for the given code using the current Translator.
func T(code int, data map[string]string) string { return currentTranslator.Message(code, data) }
