// Package config provides configuration management for the querykit CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/solatis/querykit/formatquery"
	"github.com/solatis/querykit/querytree"
)

// Config holds the settings shared by the CLI commands.
type Config struct {
	Format                 string
	ParamPrefix            string
	ParamsKeepPrefix       bool
	ParseNumbers           bool
	FallbackExpression     string
	ListsAsArrays          bool
	IndependentCombinators bool
	FieldsFile             string
	DBURL                  string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Format:      string(formatquery.FormatSQL),
		ParamPrefix: ":",
		DBURL:       "sqlite://:memory:",
	}
}

// Validate checks that the configured export format is known.
func (c *Config) Validate() error {
	for _, f := range formatquery.Formats {
		if string(f) == c.Format {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (known: %v)", c.Format, formatquery.Formats)
}

// LoadFields reads a field catalog from a JSON file. An empty path yields an
// empty catalog, which disables field validation.
func LoadFields(path string) ([]querytree.Field, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fields file: %w", err)
	}
	var fields []querytree.Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse fields file: %w", err)
	}
	return fields, nil
}
