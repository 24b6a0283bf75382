package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/querykit/internal/config"
	"github.com/solatis/querykit/querytree"
)

var (
	configFile string
	fieldsFile string
	formatName string
	dbURL      string
)

var rootCmd = &cobra.Command{
	Use:   "querykit",
	Short: "querykit query tree toolkit",
	Long:  `querykit converts canonical query trees to and from SQL, CEL, JsonLogic, MongoDB, SpEL, and Elasticsearch forms.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&fieldsFile, "fields", "", "field catalog JSON file")
	rootCmd.PersistentFlags().StringVar(&formatName, "format", "", "target format")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig layers the persistent flags over the file/env configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if formatName != "" {
		cfg.Format = formatName
	}
	if fieldsFile != "" {
		cfg.FieldsFile = fieldsFile
	}
	if dbURL != "" {
		cfg.DBURL = dbURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readInput returns the contents of the file argument, or stdin for "-" or
// no argument.
func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func readTree(args []string) (*querytree.RuleGroup, error) {
	data, err := readInput(args)
	if err != nil {
		return nil, err
	}
	q, err := querytree.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query tree: %w", err)
	}
	return q, nil
}
