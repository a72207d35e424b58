package source

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens a file on the local disk.
type Local struct{ path string }

// NewLocal returns a Local source for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open fails with the context error when ctx is already done. Errors wrap
// the os error, so errors.Is(err, os.ErrNotExist) holds for missing files.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return f, nil
}

func (l *Local) String() string { return l.path }
