// Package summary tallies mask outcomes over a validation run.
package summary

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"obsmask/internal/mask"
	"obsmask/internal/schema"
)

// Element holds the per-element cell counts of a run.
type Element struct {
	ID      string `json:"id"`
	Valid   int64  `json:"valid"`
	Invalid int64  `json:"invalid"`
	Unset   int64  `json:"unset"`
}

// Run is the persisted record of one validation run.
type Run struct {
	ID       uuid.UUID `json:"id"`
	Model    string    `json:"model"`
	Rows     int64     `json:"rows"`
	Chunks   int64     `json:"chunks"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Elements []Element `json:"elements"`
}

// Totals sums the element counts.
func (r Run) Totals() (valid, invalid, unset int64) {
	for _, e := range r.Elements {
		valid += e.Valid
		invalid += e.Invalid
		unset += e.Unset
	}
	return valid, invalid, unset
}

// Tally accumulates counts chunk by chunk. It is safe for concurrent use.
type Tally struct {
	mu     sync.Mutex
	rows   int64
	chunks int64
	idx    map[schema.ElementID]int
	elems  []Element
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{idx: make(map[schema.ElementID]int)}
}

// Add counts every column of m and returns the chunk's totals.
func (t *Tally) Add(m *mask.Mask) (valid, invalid, unset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows += int64(m.Rows())
	t.chunks++
	for _, id := range m.IDs() {
		c, _ := m.Column(id)
		v, i, u := c.Counts()
		k, ok := t.idx[id]
		if !ok {
			k = len(t.elems)
			t.idx[id] = k
			t.elems = append(t.elems, Element{ID: id.String()})
		}
		t.elems[k].Valid += int64(v)
		t.elems[k].Invalid += int64(i)
		t.elems[k].Unset += int64(u)
		valid += int64(v)
		invalid += int64(i)
		unset += int64(u)
	}
	return valid, invalid, unset
}

// Run snapshots the tally into a Run with a fresh id.
func (t *Tally) Run(model string, started, finished time.Time) Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Run{
		ID:       uuid.New(),
		Model:    model,
		Rows:     t.rows,
		Chunks:   t.chunks,
		Started:  started,
		Finished: finished,
		Elements: append([]Element(nil), t.elems...),
	}
}
