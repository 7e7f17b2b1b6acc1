// Package remote uploads item archives to the configured remote store.
//
// Every provider stores objects under slash-separated keys of the form
// branch/type/name. Where the protocol allows it, uploads are written to
// key.part and renamed, so an existing key is always a complete object.
package remote

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// PartSuffix marks an upload still in transfer
const PartSuffix = ".part"

// Provider is a remote file store
type Provider interface {
	// Upload sends the file at localPath to key, replacing any existing object
	Upload(ctx context.Context, localPath, key string) error
	// Exists reports whether a complete object is stored at key
	Exists(ctx context.Context, key string) (bool, error)
	// Close releases connections held by the provider
	Close() error
}

// Key builds the remote key of an archive
func Key(branch, backupType, name string) string {
	return path.Join(branch, backupType, name)
}

// splitKey returns the directory part and the object name of a key
func splitKey(key string) (string, string) {
	dir, name := path.Split(strings.Trim(key, "/"))
	return strings.TrimSuffix(dir, "/"), name
}

// dirChain returns every ancestor directory of key, shallowest first
func dirChain(key string) []string {
	dir, _ := splitKey(key)
	if dir == "" {
		return nil
	}

	var chain []string
	parts := strings.Split(dir, "/")
	for i := range parts {
		chain = append(chain, strings.Join(parts[:i+1], "/"))
	}
	return chain
}

// contextReader stops a transfer once ctx is done. Client libraries that do
// not accept a context read through it.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// withTimeout bounds a metadata call; d <= 0 leaves ctx unchanged
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
