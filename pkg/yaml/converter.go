package yaml

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// UnmarshalYAMLStrict parses YAML bytes into the provided object and rejects
// fields the object does not declare.
func UnmarshalYAMLStrict(yamlBytes []byte, obj interface{}) error {
	if err := yaml.UnmarshalWithOptions(yamlBytes, obj, yaml.Strict()); err != nil {
		return fmt.Errorf("error parsing YAML: %w", err)
	}
	return nil
}
