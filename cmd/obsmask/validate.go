package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"obsmask/internal/config"
)

// runFlags are the validate/lint flags that override the run file.
type runFlags struct {
	config      string
	job         string
	dataset     string
	encoding    string
	delimiter   string
	model       string
	modelPath   string
	lib         string
	suppSection string
	suppModel   string
	suppPath    string
	upstream    string
	output      string
	chunkSize   int
	workers     int
	reportKind  string
	reportDSN   string
	reportTable string
	metrics     string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.config, "config", "c", "", "run file (JSON)")
	fs.StringVar(&f.job, "job", "", "job name for metrics and run reports")
	fs.StringVarP(&f.dataset, "dataset", "d", "", "dataset CSV path")
	fs.StringVar(&f.encoding, "encoding", "", "dataset encoding (IANA name, default UTF-8)")
	fs.StringVar(&f.delimiter, "delimiter", "", "dataset delimiter (default ',')")
	fs.StringVarP(&f.model, "model", "m", "", "data model name, resolved under --lib")
	fs.StringVar(&f.modelPath, "model-path", "", "data model directory or schema file")
	fs.StringVar(&f.lib, "lib", "", "data model library root")
	fs.StringVar(&f.suppSection, "supplemental-section", "", "section validated against a supplemental data model")
	fs.StringVar(&f.suppModel, "supplemental-model", "", "supplemental data model name")
	fs.StringVar(&f.suppPath, "supplemental-model-path", "", "supplemental data model directory or schema file")
	fs.StringVar(&f.upstream, "upstream", "", "mask CSV of an earlier stage to fold in")
	fs.StringVarP(&f.output, "output", "o", "", "mask CSV output path (default stdout)")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "rows per chunk; 0 validates the dataset as one block")
	fs.IntVar(&f.workers, "workers", 0, "chunks validated concurrently")
	fs.StringVar(&f.reportKind, "report-kind", "", "run report storage: postgres or sqlite")
	fs.StringVar(&f.reportDSN, "report-dsn", "", "run report storage DSN")
	fs.StringVar(&f.reportTable, "report-table", "", "run report table")
	fs.StringVar(&f.metrics, "metrics-backend", "", "metrics backend: none, prometheus or datadog")
}

// build assembles a Run: the run file, then OBSMASK_* variables, then flags
// that were set explicitly.
func (f *runFlags) build(fs *pflag.FlagSet, e config.Env) (config.Run, error) {
	var r config.Run
	if f.config != "" {
		var err error
		if r, err = config.Load(f.config); err != nil {
			return config.Run{}, err
		}
	}
	e.Apply(&r)

	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("job", &r.Job, f.job)
	set("dataset", &r.Dataset.Path, f.dataset)
	set("encoding", &r.Dataset.Encoding, f.encoding)
	set("delimiter", &r.Dataset.Delimiter, f.delimiter)
	set("model", &r.Model.Name, f.model)
	set("model-path", &r.Model.Path, f.modelPath)
	set("lib", &r.Model.Lib, f.lib)
	set("upstream", &r.Upstream.Path, f.upstream)
	set("output", &r.Output.Path, f.output)
	set("report-kind", &r.Report.Kind, f.reportKind)
	set("report-dsn", &r.Report.DSN, f.reportDSN)
	set("report-table", &r.Report.Table, f.reportTable)
	set("metrics-backend", &r.Metrics.Backend, f.metrics)
	if fs.Changed("chunk-size") {
		r.Runtime.ChunkSize = f.chunkSize
	}
	if fs.Changed("workers") {
		r.Runtime.Workers = f.workers
	}
	if fs.Changed("supplemental-section") || fs.Changed("supplemental-model") || fs.Changed("supplemental-model-path") {
		if r.Supplemental == nil {
			r.Supplemental = &config.Supplemental{}
		}
		set("supplemental-section", &r.Supplemental.Section, f.suppSection)
		set("supplemental-model", &r.Supplemental.Model.Name, f.suppModel)
		set("supplemental-model-path", &r.Supplemental.Model.Path, f.suppPath)
	}
	if r.Supplemental != nil && r.Supplemental.Model.Lib == "" {
		r.Supplemental.Model.Lib = r.Model.Lib
	}
	return r, nil
}

// errInvalidRun is returned after lint errors have been printed.
var errInvalidRun = errors.New("run configuration is invalid")

// lintRun prints every issue and fails on errors.
func lintRun(r config.Run) error {
	issues := config.ValidateRun(r)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errInvalidRun
	}
	return nil
}

var validateFlags runFlags

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a dataset and write its quality mask",
	Long: `Validate coerces the dataset to its data model, runs the numeric range,
datetime and code-table checks, folds in an upstream mask and writes the
resulting mask as CSV. Run files, OBSMASK_* variables and flags are layered
in that order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := validateFlags.build(cmd.Flags(), env)
		if err != nil {
			return err
		}
		if err := lintRun(r); err != nil {
			return err
		}
		_, err = runValidation(cmd.Context(), r, logger)
		return err
	},
}

func init() {
	validateFlags.register(validateCmd.Flags())
	rootCmd.AddCommand(validateCmd)
}
