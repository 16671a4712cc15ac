package registry

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateArguments checks JSON-encoded arguments against the tool's schema.
// Tools without a schema accept anything. Empty arguments validate as an
// empty object.
func ValidateArguments(td *ToolDescriptor, argumentsJSON string) error {
	if td.Schema == nil {
		return nil
	}
	if argumentsJSON == "" {
		argumentsJSON = "{}"
	}

	schemaBytes, err := json.Marshal(td.Schema)
	if err != nil {
		return fmt.Errorf("ValidateArguments: invalid schema: %w", err)
	}
	var schemaObj any
	if err := json.Unmarshal(schemaBytes, &schemaObj); err != nil {
		return fmt.Errorf("ValidateArguments: schema unmarshal: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaObj); err != nil {
		return fmt.Errorf("ValidateArguments: schema compile: %w", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("ValidateArguments: schema compile: %w", err)
	}

	var args any
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return fmt.Errorf("ValidateArguments: arguments are not valid JSON: %w", err)
	}
	if err := sch.Validate(args); err != nil {
		return fmt.Errorf("ValidateArguments: %w", err)
	}
	return nil
}
