package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/querykit/formatquery"
	"github.com/solatis/querykit/internal/config"
	"github.com/solatis/querykit/internal/sqlcheck"
)

var checkCmd = &cobra.Command{
	Use:   "check [tree.json]",
	Short: "Validate generated SQL against a scratch database",
	Long:  `Formats the tree as parameterized SQL and executes it against a scratch table built from the field catalog. A database error means the generated SQL is invalid.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fields, err := config.LoadFields(cfg.FieldsFile)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("--fields required for check")
	}
	q, err := readTree(args)
	if err != nil {
		return err
	}

	db, err := sqlcheck.Open(cfg.DBURL)
	if err != nil {
		return err
	}
	defer db.Close()

	h, err := sqlcheck.New(db)
	if err != nil {
		return err
	}
	if err := h.Setup(fields); err != nil {
		return err
	}

	if _, err := h.Check(q, &formatquery.Options{
		Format:       formatquery.FormatParameterized,
		Fields:       fields,
		ParseNumbers: cfg.ParseNumbers,
	}); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}
