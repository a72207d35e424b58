// Package source opens dataset and mask inputs by location: a local path, a
// file:// URL or an http(s) URL fetched with retry and backoff.
package source

import (
	"context"
	"io"
	"strings"
)

// Source opens an input stream. The caller closes it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// For returns the Source for location. http and https URLs use an HTTP
// source configured by cfg; anything else is a local path.
func For(location string, cfg HTTPConfig) Source {
	switch {
	case IsRemote(location):
		return NewHTTP(location, cfg)
	case strings.HasPrefix(location, "file://"):
		return NewLocal(strings.TrimPrefix(location, "file://"))
	}
	return NewLocal(location)
}

// IsRemote reports whether location is fetched over HTTP.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
