package render

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/chart.schema.json
var chartSchemaJSON string

var (
	chartSchema = mustCompileSchema(chartSchemaJSON, "chart.schema.json")
	printer     = message.NewPrinter(language.English)
)

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateSpec checks a cleaned chart specification for the structure this
// renderer produces: a unit or layer body, optionally wrapped in a facet.
func ValidateSpec(spec string) error {
	if !json.Valid([]byte(spec)) {
		return errors.New("chart spec is not valid JSON")
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(spec))
	if err != nil {
		return fmt.Errorf("parse chart spec: %w", err)
	}
	err = chartSchema.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("chart spec: %w", err)
	}
	var msgs []string
	collectSchemaErrors(ve, &msgs)
	return fmt.Errorf("chart spec does not match schema: %s", strings.Join(msgs, "; "))
}

func collectSchemaErrors(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(printer)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, out)
	}
}
