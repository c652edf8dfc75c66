package models

import (
	"mime"
	"path"
	"strings"
	"time"
)

// ItemType distinguishes files from folders in a directory listing.
type ItemType string

const (
	ItemFile   ItemType = "file"
	ItemFolder ItemType = "folder"
)

// FileItem is a single entry returned by the storage backend.
// It is never cached as a source of truth; listings are always re-fetched.
type FileItem struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Type         ItemType  `json:"type" yaml:"type"`
	Size         int64     `json:"size,omitempty" yaml:"size,omitempty"`
	LastModified time.Time `json:"lastModified" yaml:"last_modified"`
	Path         string    `json:"path" yaml:"path"`
	MimeType     string    `json:"mimeType,omitempty" yaml:"mime_type,omitempty"`
}

// IsDir reports whether the item is a folder.
func (f FileItem) IsDir() bool {
	return f.Type == ItemFolder
}

// Listing is the content of one remote directory.
type Listing struct {
	Path        string     `json:"path" yaml:"path"`
	Files       []FileItem `json:"files" yaml:"files"`
	Directories []FileItem `json:"directories" yaml:"directories"`
}

// Items returns directories first, then files.
func (l Listing) Items() []FileItem {
	items := make([]FileItem, 0, len(l.Directories)+len(l.Files))
	items = append(items, l.Directories...)
	items = append(items, l.Files...)
	return items
}

// Len returns the total number of entries.
func (l Listing) Len() int {
	return len(l.Files) + len(l.Directories)
}

// NewFileItem builds a file entry under dir.
func NewFileItem(dir, name string, size int64, modified time.Time) FileItem {
	p := path.Join(dir, name)
	return FileItem{
		ID:           p,
		Name:         name,
		Type:         ItemFile,
		Size:         size,
		LastModified: modified,
		Path:         p,
		MimeType:     mime.TypeByExtension(strings.ToLower(path.Ext(name))),
	}
}

// NewFolderItem builds a folder entry under dir.
func NewFolderItem(dir, name string, modified time.Time) FileItem {
	p := path.Join(dir, name)
	return FileItem{
		ID:           p,
		Name:         name,
		Type:         ItemFolder,
		LastModified: modified,
		Path:         p,
	}
}
