package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/querykit/formatquery"
	"github.com/solatis/querykit/querytree"
)

var convertCmd = &cobra.Command{
	Use:   "convert [tree.json]",
	Short: "Toggle a tree between combinator forms",
	Long:  `Converts a canonical query tree between the grouped-combinator form and the independent-combinator form.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	q, err := readTree(args)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatquery.JSON(querytree.ConvertQuery(q)))
	return nil
}
