package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const blobScheme = "blob:"

// BlobStore turns in-memory clips into temporary files addressed by blob URLs.
// A URL is valid until Release is called for it; callers release superseded clips.
type BlobStore struct {
	mu    sync.Mutex
	dir   string
	owned bool
	blobs map[string]blob
}

type blob struct {
	path  string
	owned bool
}

// NewBlobStore keeps blobs under dir. An empty dir uses a fresh temporary directory
// that is removed by ReleaseAll.
func NewBlobStore(dir string) (*BlobStore, error) {
	owned := false
	if dir == "" {
		d, err := os.MkdirTemp("", "ev-blobs-")
		if err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
		dir = d
		owned = true
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &BlobStore{dir: dir, owned: owned, blobs: make(map[string]blob)}, nil
}

// Create stores data and returns its blob URL. ext is the file extension including the dot.
func (b *BlobStore) Create(data []byte, ext string) (string, error) {
	id := uuid.NewString()
	p := filepath.Join(b.dir, id+ext)
	if err := os.WriteFile(p, data, 0600); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	url := blobScheme + id
	b.blobs[url] = blob{path: p, owned: true}
	return url, nil
}

// Link returns a blob URL for an existing file. Releasing the URL leaves the file in place.
func (b *BlobStore) Link(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	url := blobScheme + uuid.NewString()
	b.blobs[url] = blob{path: path}
	return url
}

// Open resolves url to a local file path. Plain paths and file:// URLs resolve to
// themselves; unknown or released blob URLs are an error.
func (b *BlobStore) Open(url string) (string, error) {
	if strings.HasPrefix(url, blobScheme) {
		b.mu.Lock()
		defer b.mu.Unlock()
		bl, ok := b.blobs[url]
		if !ok {
			return "", fmt.Errorf("blob %s is no longer alive", url)
		}
		return bl.path, nil
	}
	return strings.TrimPrefix(url, "file://"), nil
}

// Release deletes the file behind url. Non-blob URLs are ignored.
func (b *BlobStore) Release(url string) error {
	if !strings.HasPrefix(url, blobScheme) {
		return nil
	}
	b.mu.Lock()
	bl, ok := b.blobs[url]
	delete(b.blobs, url)
	b.mu.Unlock()

	if !ok || !bl.owned {
		return nil
	}
	if err := os.Remove(bl.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// ReleaseAll releases every live blob.
func (b *BlobStore) ReleaseAll() error {
	b.mu.Lock()
	urls := make([]string, 0, len(b.blobs))
	for u := range b.blobs {
		urls = append(urls, u)
	}
	b.mu.Unlock()

	var firstErr error
	for _, u := range urls {
		if err := b.Release(u); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.owned {
		if err := os.RemoveAll(b.dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Live returns the number of blobs not yet released.
func (b *BlobStore) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}
