package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"obsmask/internal/coerce"
	"obsmask/internal/config"
	"obsmask/internal/dataset"
	"obsmask/internal/diag"
	"obsmask/internal/engine"
	"obsmask/internal/mask"
	"obsmask/internal/metrics"
	"obsmask/internal/metrics/datadog"
	"obsmask/internal/metrics/prompush"
	"obsmask/internal/schema"
	"obsmask/internal/source"
	"obsmask/internal/storage"
	"obsmask/internal/summary"

	// register all backends with the storage factory.
	_ "obsmask/internal/storage/all"
)

// models holds the resolved data models of a run.
type models struct {
	primary *schema.Model
	supp    *schema.Model
	// schema is the primary schema with the supplemental one layered on,
	// qualified into its section.
	schema *schema.Schema
}

// resolveModels loads the primary and, if configured, the supplemental
// data model.
func resolveModels(r config.Run) (models, error) {
	var m models
	p, err := schema.Resolve(r.Model.Source(), r.Model.Lib)
	if err != nil {
		return m, err
	}
	m.primary, m.schema = p, p.Schema

	if s := r.Supplemental; s != nil {
		sm, err := schema.Resolve(s.Model.Source(), s.Model.Lib)
		if err != nil {
			return m, fmt.Errorf("supplemental section %s: %w", s.Section, err)
		}
		m.supp = sm
		m.schema = m.schema.Merge(sm.Schema.Qualify(s.Section))
	}
	return m, nil
}

// runValidation validates the dataset of r, writes the mask and stores the
// run report.
func runValidation(ctx context.Context, r config.Run, log *slog.Logger) (summary.Run, error) {
	started := time.Now()
	job := r.Job
	if job == "" {
		job = "obsmask"
	}

	flush := setupMetrics(r.Metrics, job, log)
	defer flush()

	ms, err := resolveModels(r)
	if err != nil {
		return summary.Run{}, err
	}
	plan, err := coerce.Compile(ms.schema)
	if err != nil {
		return summary.Run{}, fmt.Errorf("data model %s: %w", ms.primary.Name, err)
	}

	cfg := engine.Config{
		Schema:  ms.schema,
		Model:   schema.Source{Path: ms.primary.Dir},
		Report:  diag.NewSlog(log),
		Workers: r.Runtime.Workers,
		Job:     job,
	}
	if ms.supp != nil {
		cfg.Supplemental = &engine.Supplemental{
			Section: r.Supplemental.Section,
			Model:   schema.Source{Path: ms.supp.Dir},
		}
	}
	eng, err := engine.New(cfg)
	if err != nil {
		return summary.Run{}, err
	}

	src, err := dataset.Open(ctx, r.Dataset.Path, dataset.Options{
		Encoding:  r.Dataset.Encoding,
		Delimiter: r.Dataset.DelimiterRune(),
		ChunkSize: r.Runtime.ChunkSize,
	})
	if err != nil {
		return summary.Run{}, err
	}
	defer src.Close()

	var up engine.Upstream
	if r.Upstream.Path != "" {
		ur, err := dataset.OpenMask(ctx, r.Upstream.Path, r.Runtime.ChunkSize, source.HTTPConfig{})
		if err != nil {
			return summary.Run{}, err
		}
		defer ur.Close()
		up = engine.UpstreamChunks(ur)
	}

	out, closeOut, err := openOutput(r.Output.Path)
	if err != nil {
		return summary.Run{}, err
	}
	defer closeOut()

	log.Info("validate: started",
		"job", job, "model", ms.primary.Name, "dataset", r.Dataset.Path,
		"elements", ms.schema.Len(), "chunk_size", r.Runtime.ChunkSize, "workers", max(r.Runtime.Workers, 1))

	res, err := eng.Validate(ctx, engine.Chunks(coerce.NewReader(src, plan)), up)
	if err != nil {
		return summary.Run{}, err
	}
	if err := writeMask(res.Chunks, dataset.NewMaskWriter(out), log); err != nil {
		return summary.Run{}, err
	}
	if err := closeOut(); err != nil {
		return summary.Run{}, fmt.Errorf("close output: %w", err)
	}

	run := res.Tally.Run(ms.primary.Name, started, time.Now())
	valid, invalid, unset := run.Totals()
	log.Info("validate: completed",
		"run_id", run.ID, "rows", run.Rows, "chunks", run.Chunks,
		"valid", valid, "invalid", invalid, "unset", unset,
		"elapsed", run.Finished.Sub(run.Started).Truncate(time.Millisecond))

	if r.Report.Kind != "" {
		rc := storage.Config{Kind: r.Report.Kind, DSN: r.Report.DSN, Table: r.Report.Table}
		if err := storage.Save(ctx, rc, run); err != nil {
			return run, fmt.Errorf("store run report: %w", err)
		}
		log.Info("validate: run report stored", "kind", rc.Kind, "table", rc.TableName())
	}
	return run, nil
}

// writeMask drains the chunk reader into w with one progress line per chunk.
func writeMask(chunks mask.Reader, w *dataset.MaskWriter, log *slog.Logger) error {
	for {
		m, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.Write(m); err != nil {
			return err
		}
		log.Info("validate: chunk written", "offset", m.Offset, "rows", m.Rows(), "total_rows", w.Rows())
	}
}

// openOutput returns the mask destination. The close function is safe to
// call more than once.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	closed := false
	return f, func() error {
		if closed {
			return nil
		}
		closed = true
		return f.Close()
	}, nil
}

// setupMetrics installs the configured metrics backend and returns a flush
// function. Backend failures are logged and leave metrics disabled.
func setupMetrics(m config.Metrics, job string, log *slog.Logger) func() {
	var b metrics.Backend
	switch m.Backend {
	case "", "none":
		return func() {}
	case "prometheus":
		pb, err := prompush.NewBackend(job, m.PushgatewayURL)
		if err != nil {
			log.Warn("metrics: prometheus backend unavailable; metrics disabled", "err", err)
			return func() {}
		}
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{Addr: m.DogStatsDAddr, Namespace: "obsmask.", GlobalTags: []string{"job:" + job}})
		if err != nil {
			log.Warn("metrics: datadog backend unavailable; metrics disabled", "err", err)
			return func() {}
		}
		b = db
	default:
		log.Warn("metrics: unknown backend; metrics disabled", "backend", m.Backend)
		return func() {}
	}

	log.Info("metrics: enabled", "backend", m.Backend, "job", job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush failed", "err", err)
		}
	}
}
