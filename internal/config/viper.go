// internal/config/viper.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from an optional file using viper.
// CLI flags > environment > config file > defaults precedence; the flag
// layer is applied by the commands after loading.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("format", "sql")
	v.SetDefault("param_prefix", ":")
	v.SetDefault("params_keep_prefix", false)
	v.SetDefault("parse_numbers", false)
	v.SetDefault("fallback_expression", "")
	v.SetDefault("lists_as_arrays", false)
	v.SetDefault("independent_combinators", false)
	v.SetDefault("fields_file", "")
	v.SetDefault("db_url", "sqlite://:memory:")

	v.SetEnvPrefix("QK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Format:                 v.GetString("format"),
		ParamPrefix:            v.GetString("param_prefix"),
		ParamsKeepPrefix:       v.GetBool("params_keep_prefix"),
		ParseNumbers:           v.GetBool("parse_numbers"),
		FallbackExpression:     v.GetString("fallback_expression"),
		ListsAsArrays:          v.GetBool("lists_as_arrays"),
		IndependentCombinators: v.GetBool("independent_combinators"),
		FieldsFile:             v.GetString("fields_file"),
		DBURL:                  v.GetString("db_url"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
