package config

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/foundry.schema.json
var schemaFS embed.FS

const schemaFile = "schema/foundry.schema.json"

// SchemaError lists every schema violation found in a build description.
type SchemaError struct {
	File   string
	Issues []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: validation failed with %d errors:\n  %s",
		e.File, len(e.Issues), strings.Join(e.Issues, "\n  "))
}

// ValidateSchema checks raw YAML against the embedded JSON schema.
func ValidateSchema(data []byte, file string) error {
	schemaBytes, err := schemaFS.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to load JSON schema: %w", err)
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Errorf(Mark{File: file}, "failed to parse config: %v", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	serr := &SchemaError{File: file}
	for _, desc := range result.Errors() {
		serr.Issues = append(serr.Issues, desc.String())
	}
	return serr
}
