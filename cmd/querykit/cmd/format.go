package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/querykit/formatquery"
	"github.com/solatis/querykit/internal/config"
)

var formatCmd = &cobra.Command{
	Use:   "format [tree.json]",
	Short: "Render a query tree in a target format",
	Long:  `Reads a canonical query tree (JSON) from a file or stdin and renders it in the format selected by --format.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)
}

func runFormat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fields, err := config.LoadFields(cfg.FieldsFile)
	if err != nil {
		return err
	}
	q, err := readTree(args)
	if err != nil {
		return err
	}

	result, err := formatquery.FormatQuery(q, formatquery.Options{
		Format:             formatquery.Format(cfg.Format),
		Fields:             fields,
		FallbackExpression: cfg.FallbackExpression,
		ParamPrefix:        cfg.ParamPrefix,
		ParamsKeepPrefix:   cfg.ParamsKeepPrefix,
		ParseNumbers:       cfg.ParseNumbers,
	})
	if err != nil {
		return err
	}

	switch out := result.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}
	return nil
}
