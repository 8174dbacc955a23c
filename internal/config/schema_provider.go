package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// JSONSchema renders the configuration tree as a JSON schema document,
// for editor integration and the `vibepanel config schema` command.
func JSONSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: false,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "vibepanel configuration"
	schema.Description = "Schema for ~/.config/vibepanel/config.toml (field names map 1:1 to TOML keys)"
	return json.MarshalIndent(schema, "", "  ")
}
