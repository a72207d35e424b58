// Package engine orchestrates validation of a coerced dataset against its
// schema.
//
// For every chunk the engine picks the columns the schema declares, routes
// them by column type to the numeric, datetime and code-table validators,
// folds in the upstream mask and emits a mask with one column per input
// column. Columns the schema does not validate stay unset.
//
// Input is either one block or a chunk reader; output has the same shape.
// Chunks are validated independently, optionally a window at a time on
// several workers, but always emitted in input order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"obsmask/internal/codetable"
	"obsmask/internal/diag"
	"obsmask/internal/frame"
	"obsmask/internal/mask"
	"obsmask/internal/metrics"
	"obsmask/internal/schema"
	"obsmask/internal/summary"
	"obsmask/internal/validate"
)

var (
	// ErrNoSchema is returned when no schema or data model source is given.
	ErrNoSchema = errors.New("engine: a data model name or path is required")
	// ErrNoSupplementalSchema is returned when a supplemental section is
	// configured without a data model of its own.
	ErrNoSupplementalSchema = errors.New("engine: a data model name or path is required for the supplemental section")
	// ErrInputShape is returned when the input is neither a block nor a
	// chunk reader.
	ErrInputShape = errors.New("engine: input must be a frame or a chunk reader")
)

// Supplemental configures a section validated against its own data model.
type Supplemental struct {
	Section string
	Model   schema.Source
}

// Config configures an Engine.
type Config struct {
	// Schema describes the coerced dataset, supplemental elements included.
	Schema *schema.Schema
	// Model locates the primary data model; its code_tables directory is
	// used for coded elements.
	Model   schema.Source
	LibRoot string

	Supplemental *Supplemental

	Report diag.Reporter
	// Workers > 1 validates that many chunks concurrently.
	Workers int
	// Job labels metrics.
	Job string
}

// Engine validates datasets. It is immutable and safe to reuse.
type Engine struct {
	schema     *schema.Schema
	codeTables string
	supp       *Supplemental
	suppTables string
	report     diag.Reporter
	workers    int
	job        string
}

// New checks cfg and returns an Engine. Configuration errors are reported
// here, before any data is read.
func New(cfg Config) (*Engine, error) {
	if cfg.Schema == nil || cfg.Model.IsZero() {
		return nil, ErrNoSchema
	}
	e := &Engine{
		schema:     cfg.Schema,
		codeTables: cfg.Model.CodeTables(cfg.LibRoot),
		report:     cfg.Report,
		workers:    max(cfg.Workers, 1),
		job:        cfg.Job,
	}
	if e.report == nil {
		e.report = diag.Nop
	}
	if e.job == "" {
		e.job = "obsmask"
	}
	if s := cfg.Supplemental; s != nil {
		if s.Section == "" {
			return nil, fmt.Errorf("engine: supplemental section name is empty")
		}
		if s.Model.IsZero() {
			return nil, ErrNoSupplementalSchema
		}
		e.supp = s
		e.suppTables = s.Model.CodeTables(cfg.LibRoot)
	}
	return e, nil
}

// Input is the dataset to validate: build it with Block or Chunks.
type Input struct {
	block  *frame.Frame
	chunks frame.Reader
}

// Block wraps a whole in-memory dataset.
func Block(f *frame.Frame) Input { return Input{block: f} }

// Chunks wraps a chunked dataset.
func Chunks(r frame.Reader) Input { return Input{chunks: r} }

// Upstream is the mask of an earlier stage. The zero value means none.
type Upstream struct {
	block  *mask.Mask
	chunks mask.Reader
}

// UpstreamBlock wraps a whole upstream mask. It is sliced to match chunked
// input.
func UpstreamBlock(m *mask.Mask) Upstream { return Upstream{block: m} }

// UpstreamChunks wraps a chunked upstream mask; its chunks must align with
// the input chunks.
func UpstreamChunks(r mask.Reader) Upstream { return Upstream{chunks: r} }

// Output mirrors the input shape: Block is set for block input, Chunks for
// chunked input. Tally accumulates counts as chunks are emitted.
type Output struct {
	Block  *mask.Mask
	Chunks *Reader
	Tally  *summary.Tally
}

// Validate validates in, merging up into the result.
func (e *Engine) Validate(ctx context.Context, in Input, up Upstream) (Output, error) {
	if (in.block == nil) == (in.chunks == nil) {
		return Output{}, ErrInputShape
	}
	if up.block != nil && up.chunks != nil {
		return Output{}, fmt.Errorf("%w: upstream mask is both a block and a reader", ErrInputShape)
	}

	tally := summary.NewTally()
	if in.chunks != nil {
		return Output{Chunks: e.reader(ctx, in.chunks, up, tally), Tally: tally}, nil
	}

	m, err := mask.Collect(e.reader(ctx, frame.Split(in.block, 0), up, tally))
	if err != nil {
		return Output{}, err
	}
	m.Offset = in.block.Offset
	return Output{Block: m, Tally: tally}, nil
}

// ValidateFrame validates a single block.
func (e *Engine) ValidateFrame(ctx context.Context, f *frame.Frame, up *mask.Mask) (*mask.Mask, error) {
	var u Upstream
	if up != nil {
		u = UpstreamBlock(up)
	}
	out, err := e.Validate(ctx, Block(f), u)
	if err != nil {
		return nil, err
	}
	return out.Block, nil
}

// run is the state shared by all chunks of one Validate call.
type run struct {
	cache *codetable.Cache
	rng   *validate.Range
}

// chunk validates one frame.
func (e *Engine) chunk(ctx context.Context, r *run, f *frame.Frame, up *mask.Mask) (m *mask.Mask, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(e.job, "validate_chunk", err, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var numeric, datetime, coded, suppCoded []schema.ElementID
	for _, id := range f.Columns() {
		if !e.schema.Has(id) {
			continue
		}
		switch validate.KindOf(e.schema.Type(id)) {
		case validate.KindNumeric:
			numeric = append(numeric, id)
		case validate.KindDatetime:
			datetime = append(datetime, id)
		case validate.KindCoded:
			if e.supp != nil && id.Section == e.supp.Section {
				suppCoded = append(suppCoded, id)
			} else {
				coded = append(coded, id)
			}
		}
	}

	results := []validate.Result{
		r.rng.Validate(f, e.schema, numeric),
		validate.Datetime(f, datetime, e.report),
		validate.Codes{Dir: e.codeTables, Cache: r.cache, Report: e.report}.Validate(f, e.schema, coded),
	}
	if e.supp != nil {
		sc := validate.Codes{Dir: e.suppTables, Section: e.supp.Section, Cache: r.cache, Report: e.report}
		results = append(results, sc.Validate(f, e.schema, suppCoded))
	}

	m = mask.New(f.Rows(), f.Columns())
	m.Offset = f.Offset
	for _, res := range results {
		for id, c := range res {
			if err := m.Put(id, c); err != nil {
				return nil, err
			}
		}
	}
	if up != nil {
		if err := m.Merge(up); err != nil {
			return nil, err
		}
	}
	return m, nil
}
