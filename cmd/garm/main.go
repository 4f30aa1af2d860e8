package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	garm "github.com/reoring/garm"
	_ "github.com/reoring/garm/codec"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "validate":
		validateCmd(os.Args[2:], false)
	case "normalize":
		validateCmd(os.Args[2:], true)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "garm CLI\n\nUsage:\n  garm validate -schema schema.{json,yaml} -doc doc.{json,yaml} [-allow-unknown] [-require-all] [-update]\n  garm normalize -schema schema.{json,yaml} -doc doc.{json,yaml} [-purge-unknown]")
}

func validateCmd(args []string, normalizeOnly bool) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var schemaPath, docPath string
	var allowUnknown, requireAll, update, purgeUnknown bool
	fs.StringVar(&schemaPath, "schema", "", "schema file (JSON or YAML)")
	fs.StringVar(&docPath, "doc", "", "document file (JSON or YAML)")
	fs.BoolVar(&allowUnknown, "allow-unknown", false, "accept fields absent from the schema")
	fs.BoolVar(&requireAll, "require-all", false, "treat every schema field as required")
	fs.BoolVar(&update, "update", false, "suppress required-field errors")
	fs.BoolVar(&purgeUnknown, "purge-unknown", false, "drop unknown fields during normalization")
	_ = fs.Parse(args)
	if schemaPath == "" || docPath == "" {
		usage()
		os.Exit(2)
	}

	schema, err := loadSchema(schemaPath)
	if err != nil {
		fatal(err)
	}
	doc, err := loadDocument(docPath)
	if err != nil {
		fatal(err)
	}

	v, err := garm.NewValidator(schema,
		garm.AllowUnknown(allowUnknown),
		garm.RequireAll(requireAll),
		garm.PurgeUnknown(purgeUnknown),
	)
	if err != nil {
		fatal(err)
	}

	if normalizeOnly {
		normalized, err := v.Normalized(doc)
		if err != nil {
			reportFailure(v, err)
		}
		emitJSON(normalized)
		return
	}

	var ok bool
	if update {
		ok, err = v.ValidateUpdate(doc)
	} else {
		ok, err = v.Validate(doc)
	}
	if err != nil {
		fatal(err)
	}
	if !ok {
		reportFailure(v, nil)
	}
	emitJSON(v.Document())
}

func reportFailure(v *garm.Validator, err error) {
	if err != nil {
		if _, isErrors := err.(garm.ErrorList); !isErrors {
			fatal(err)
		}
	}
	out, merr := garm.MarshalErrors(v.ErrorsMap())
	if merr != nil {
		fatal(merr)
	}
	fmt.Fprintln(os.Stderr, string(out))
	os.Exit(1)
}

func emitJSON(doc map[string]any) {
	out, err := garm.MarshalErrors(doc)
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func loadSchema(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		return garm.LoadSchemaYAML(data)
	}
	return garm.LoadSchemaJSON(data)
}

func loadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		return garm.LoadDocumentYAML(data)
	}
	return garm.LoadDocumentJSON(data)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "garm:", err)
	os.Exit(1)
}
