package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"obsmask/internal/probe"
	"obsmask/internal/source"
)

var probeOpts struct {
	encoding  string
	delimiter string
	maxRows   int
	normalize bool
	summary   bool
	out       string
}

var probeCmd = &cobra.Command{
	Use:   "probe <dataset.csv|url>",
	Short: "Draft a schema from a dataset sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := source.For(args[0], source.HTTPConfig{}).Open(cmd.Context())
		if err != nil {
			return err
		}
		defer f.Close()

		opt := probe.Options{
			Encoding:  probeOpts.encoding,
			MaxRows:   probeOpts.maxRows,
			Normalize: probeOpts.normalize,
		}
		if probeOpts.delimiter != "" {
			opt.Delimiter = []rune(probeOpts.delimiter)[0]
		}
		res, err := probe.Probe(f, opt)
		if err != nil {
			return err
		}
		if probeOpts.summary {
			fmt.Fprint(cmd.ErrOrStderr(), res.Summary())
		}

		b, err := res.YAML()
		if err != nil {
			return err
		}
		if probeOpts.out == "" {
			_, err = cmd.OutOrStdout().Write(b)
			return err
		}
		if err := os.WriteFile(probeOpts.out, b, 0o644); err != nil {
			return err
		}
		logger.Info("probe: draft written", "path", probeOpts.out, "elements", len(res.Elements), "rows", res.Rows)
		return nil
	},
}

func init() {
	fs := probeCmd.Flags()
	fs.StringVar(&probeOpts.encoding, "encoding", "", "dataset encoding (IANA name, default UTF-8)")
	fs.StringVar(&probeOpts.delimiter, "delimiter", "", "dataset delimiter (default ',')")
	fs.IntVar(&probeOpts.maxRows, "max-rows", probe.DefaultMaxRows, "rows to sample")
	fs.BoolVar(&probeOpts.normalize, "normalize", false, "rewrite field names into lowercase ASCII identifiers")
	fs.BoolVar(&probeOpts.summary, "summary", false, "print a per-element summary to stderr")
	fs.StringVarP(&probeOpts.out, "out", "o", "", "write the draft schema here instead of stdout")
	rootCmd.AddCommand(probeCmd)
}
