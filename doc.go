package garm

// Package garm provides:
//
// - Schema-driven validation and normalization of tree-shaped documents
//   (nested maps, sequences, and scalars) against declarative rule sets
// - A stable error model via ValidationError/ErrorList (document path,
//   schema path, numeric code, rule, constraint) with tree projections
// - A normalization pipeline (rename -> purge -> default -> coerce) that
//   never mutates the input document
// - Logical combinators (allof/anyof/oneof/noneof) with speculative
//   child validation and error merging
// - Named registries for reusable schemas and rules sets, resolved lazily
//   so schema graphs may contain cycles
// - Meta-validation of schemas against a schema-of-schemas assembled from
//   the rule table, extensible through RegisterRule/RegisterTypes
//
// Design policy:
// - The root package holds the public API together with the engine implementation.
// - The scalar coercers (int, float, number, bool, str, upper, lower, strip) are built
//   into the root package; codec/ adds the datetime and date coercers, messages live
//   under i18n/, and the CLI under cmd/garm.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	v, err := garm.NewValidator(schema)
//	ok, err := v.Validate(doc)
//	if !ok {
//		out := v.Errors() // structured; v.ErrorsMap() for the handler view
//	}
//	normalized, err := v.Validated(doc)
