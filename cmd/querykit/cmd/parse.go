package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/querykit/formatquery"
	"github.com/solatis/querykit/internal/config"
	"github.com/solatis/querykit/parsecel"
	"github.com/solatis/querykit/parsejsonlogic"
	"github.com/solatis/querykit/parsemongodb"
	"github.com/solatis/querykit/parsesql"
	"github.com/solatis/querykit/querytree"
)

var parseFrom string

var parseCmd = &cobra.Command{
	Use:   "parse [input]",
	Short: "Parse an external query into the canonical tree",
	Long:  `Parses a SQL WHERE clause, CEL expression, JsonLogic value, or MongoDB query document into the canonical query tree and prints it as JSON.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseFrom, "from", "sql", "input language (sql, cel, jsonlogic, mongodb)")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fields, err := config.LoadFields(cfg.FieldsFile)
	if err != nil {
		return err
	}
	data, err := readInput(args)
	if err != nil {
		return err
	}

	var q *querytree.RuleGroup
	switch parseFrom {
	case "sql":
		q, err = parsesql.Parse(strings.TrimSpace(string(data)), &parsesql.Options{
			Fields:                 fields,
			ListsAsArrays:          cfg.ListsAsArrays,
			IndependentCombinators: cfg.IndependentCombinators,
			ParamPrefix:            cfg.ParamPrefix,
		})
	case "cel":
		q, err = parsecel.Parse(strings.TrimSpace(string(data)), &parsecel.Options{
			Fields:                 fields,
			ListsAsArrays:          cfg.ListsAsArrays,
			IndependentCombinators: cfg.IndependentCombinators,
		})
	case "jsonlogic":
		q, err = parsejsonlogic.ParseBytes(data, &parsejsonlogic.Options{
			Fields:                 fields,
			ListsAsArrays:          cfg.ListsAsArrays,
			IndependentCombinators: cfg.IndependentCombinators,
		})
	case "mongodb":
		q, err = parsemongodb.ParseBytes(data, &parsemongodb.Options{
			Fields:                 fields,
			ListsAsArrays:          cfg.ListsAsArrays,
			IndependentCombinators: cfg.IndependentCombinators,
		})
	default:
		return fmt.Errorf("unknown input language %q (known: sql, cel, jsonlogic, mongodb)", parseFrom)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), formatquery.JSON(q))
	return nil
}
