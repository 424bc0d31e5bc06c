package storage

import (
	"context"       // Cancellation of object writes
	"fmt"           // Error wrapping
	"io"            // Object bodies
	"os"            // File system access
	"path/filepath" // Object paths on disk
	"strings"       // URL prefix handling
)

// Bucket stores public objects such as product images
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// LocalBucket keeps objects on disk and serves them under /uploads
type LocalBucket struct {
	Root    string // Directory objects are written to
	BaseURL string // Public URL prefix, without trailing slash
}

// PublicPrefix is the route the router mounts the bucket on
const PublicPrefix = "/uploads/"

// NewLocalBucket creates the root directory if needed
func NewLocalBucket(root, baseURL string) (*LocalBucket, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket root: %w", err)
	}
	return &LocalBucket{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (b *LocalBucket) path(key string) (string, error) {
	clean := filepath.Clean("/" + key) // Rooted so it cannot climb out of Root
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.Root, filepath.FromSlash(clean)), nil
}

// Put writes the object and returns its public URL.
// Keys are never overwritten.
func (b *LocalBucket) Put(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := b.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // Fail if the key exists
	if err != nil {
		return "", fmt.Errorf("create object %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p) // Drop the partial object
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return b.BaseURL + PublicPrefix + key, nil // Public URL of the object
}

// Delete removes the object; a missing object is not an error
func (b *LocalBucket) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// KeyFromURL maps a public URL issued by this bucket back to its key
func (b *LocalBucket) KeyFromURL(url string) (string, bool) {
	prefix := b.BaseURL + PublicPrefix
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix) // Strip the public prefix
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
