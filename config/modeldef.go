package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ModelDef is the TOML model definition. Only the output vocabulary is
// consumed here; the acoustic topology sections are opaque to the run
// driver and belong to the model collaborator.
type ModelDef struct {
	Name   string `toml:"name"`
	Labels struct {
		Labels []string `toml:"labels"`
	} `toml:"labels"`
}

// LoadModelDef parses a TOML model definition file.
func LoadModelDef(path string) (*ModelDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model definition: %w", err)
	}
	var def ModelDef
	if err := toml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse model definition: %w", err)
	}
	if len(def.Labels.Labels) == 0 {
		return nil, fmt.Errorf("model definition %s: empty label set", path)
	}
	return &def, nil
}
