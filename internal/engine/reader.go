package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"obsmask/internal/codetable"
	"obsmask/internal/frame"
	"obsmask/internal/mask"
	"obsmask/internal/metrics"
	"obsmask/internal/summary"
	"obsmask/internal/validate"
)

// Reader yields the mask of a chunked input, one chunk per input chunk, in
// input order. Nothing is read from the input until Next is called.
type Reader struct {
	ctx   context.Context
	e     *Engine
	run   *run
	src   frame.Reader
	up    upstream
	tally *summary.Tally

	buf []*mask.Mask
	err error
	eof bool
}

func (e *Engine) reader(ctx context.Context, src frame.Reader, up Upstream, tally *summary.Tally) *Reader {
	var u upstream = noUpstream{}
	switch {
	case up.block != nil:
		u = &blockUpstream{m: up.block}
	case up.chunks != nil:
		u = chunkUpstream{r: up.chunks}
	}
	return &Reader{
		ctx:   ctx,
		e:     e,
		run:   &run{cache: codetable.NewCache(), rng: &validate.Range{Report: e.report}},
		src:   src,
		up:    u,
		tally: tally,
	}
}

// Next returns the next mask chunk, or io.EOF after the last one.
func (r *Reader) Next() (*mask.Mask, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		if r.eof {
			return nil, io.EOF
		}
		r.fill()
	}
	m := r.buf[0]
	r.buf = r.buf[1:]

	valid, invalid, unset := r.tally.Add(m)
	metrics.RecordValues(r.e.job, "valid", valid)
	metrics.RecordValues(r.e.job, "invalid", invalid)
	metrics.RecordValues(r.e.job, "unset", unset)
	metrics.RecordChunks(r.e.job, 1)
	return m, nil
}

// ChunkSize reports the chunk size of the input.
func (r *Reader) ChunkSize() int { return r.src.ChunkSize() }

// Tally returns the running counts of emitted chunks.
func (r *Reader) Tally() *summary.Tally { return r.tally }

type job struct {
	f  *frame.Frame
	up *mask.Mask
}

// fill reads up to one window of chunks and validates them. A read error
// stops the window; chunks read before it are still emitted.
func (r *Reader) fill() {
	jobs := make([]job, 0, r.e.workers)
	for len(jobs) < r.e.workers {
		f, err := r.src.Next()
		if errors.Is(err, io.EOF) {
			r.eof = true
			break
		}
		if err != nil {
			r.err = err
			break
		}
		up, err := r.up.next(f)
		if err != nil {
			r.err = err
			break
		}
		jobs = append(jobs, job{f: f, up: up})
	}

	out := make([]*mask.Mask, len(jobs))
	if len(jobs) <= 1 {
		for i, j := range jobs {
			m, err := r.e.chunk(r.ctx, r.run, j.f, j.up)
			if err != nil {
				r.err = err
				return
			}
			out[i] = m
		}
		r.buf = out
		return
	}

	g, ctx := errgroup.WithContext(r.ctx)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			m, err := r.e.chunk(ctx, r.run, j.f, j.up)
			out[i] = m
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.err = err
		return
	}
	r.buf = out
}

// upstream hands out the upstream mask rows matching a data chunk.
type upstream interface {
	next(f *frame.Frame) (*mask.Mask, error)
}

type noUpstream struct{}

func (noUpstream) next(*frame.Frame) (*mask.Mask, error) { return nil, nil }

type blockUpstream struct {
	m   *mask.Mask
	pos int
}

func (u *blockUpstream) next(f *frame.Frame) (*mask.Mask, error) {
	end := u.pos + f.Rows()
	if end > u.m.Rows() {
		return nil, fmt.Errorf("engine: upstream mask has %d rows, data has more", u.m.Rows())
	}
	s := u.m.Slice(u.pos, end)
	u.pos = end
	return s, nil
}

type chunkUpstream struct{ r mask.Reader }

func (u chunkUpstream) next(f *frame.Frame) (*mask.Mask, error) {
	m, err := u.r.Next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("engine: upstream mask ended before data chunk at row %d", f.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("engine: read upstream mask: %w", err)
	}
	if m.Rows() != f.Rows() {
		return nil, fmt.Errorf("engine: upstream chunk has %d rows, data chunk has %d", m.Rows(), f.Rows())
	}
	return m, nil
}
