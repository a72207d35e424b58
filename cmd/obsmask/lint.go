package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"obsmask/internal/coerce"
	"obsmask/internal/config"
)

var lintFlags runFlags

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check a run configuration and its data models without reading data",
	Long: `Lint layers the run file, OBSMASK_* variables and flags like validate does,
reports configuration issues, then resolves the data models and compiles
their coercion plans so bad types and datetime formats surface early.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := lintFlags.build(cmd.Flags(), env)
		if err != nil {
			return err
		}
		if err := lintRun(r); err != nil {
			return err
		}
		return lintModels(r, cmd.OutOrStdout())
	},
}

func lintModels(r config.Run, out io.Writer) error {
	ms, err := resolveModels(r)
	if err != nil {
		return err
	}
	if _, err := coerce.Compile(ms.schema); err != nil {
		return fmt.Errorf("data model %s: %w", ms.primary.Name, err)
	}
	fmt.Fprintf(out, "data model %s: %d elements, schema %s\n", ms.primary.Name, ms.primary.Schema.Len(), ms.primary.SchemaFile)
	if ms.supp != nil {
		fmt.Fprintf(out, "supplemental %s: %d elements, schema %s\n", r.Supplemental.Section, ms.supp.Schema.Len(), ms.supp.SchemaFile)
	}
	fmt.Fprintln(out, "configuration is valid")
	return nil
}

func init() {
	lintFlags.register(lintCmd.Flags())
	rootCmd.AddCommand(lintCmd)
}
