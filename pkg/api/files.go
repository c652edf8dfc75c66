package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

type directoryListing struct {
	DirectoryPath string `json:"directoryPath"`
	Files         []struct {
		FileName   string `json:"fileName"`
		FileSize   int64  `json:"fileSize"`
		ModifiedAt int64  `json:"modifiedAt"`
	} `json:"files"`
	Directories []struct {
		DirectoryName string `json:"directoryName"`
		ModifiedAt    int64  `json:"modifiedAt"`
	} `json:"directories"`
}

// UploadRequest is the body of a file upload. FileContent is base64 encoded.
type UploadRequest struct {
	DirectoryPath string `json:"directoryPath"`
	FileName      string `json:"fileName"`
	FileContent   string `json:"fileContent"`
}

// NewUploadRequest encodes data for upload into dir.
func NewUploadRequest(dir, name string, data []byte) UploadRequest {
	return UploadRequest{
		DirectoryPath: dir,
		FileName:      name,
		FileContent:   base64.StdEncoding.EncodeToString(data),
	}
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ListDirectory returns the files and folders directly under dir.
func (c *Client) ListDirectory(ctx context.Context, dir string) (*models.Listing, error) {
	var raw directoryListing
	q := url.Values{"directoryPath": {dir}}
	if err := c.doJSON(ctx, http.MethodGet, "/directories", q, nil, &raw); err != nil {
		return nil, err
	}

	base := raw.DirectoryPath
	if base == "" {
		base = dir
	}
	listing := &models.Listing{
		Path:        base,
		Files:       make([]models.FileItem, 0, len(raw.Files)),
		Directories: make([]models.FileItem, 0, len(raw.Directories)),
	}
	for _, f := range raw.Files {
		listing.Files = append(listing.Files, models.NewFileItem(base, f.FileName, f.FileSize, millis(f.ModifiedAt)))
	}
	for _, d := range raw.Directories {
		listing.Directories = append(listing.Directories, models.NewFolderItem(base, d.DirectoryName, millis(d.ModifiedAt)))
	}
	return listing, nil
}

// CreateDirectory creates dir, including missing parents.
func (c *Client) CreateDirectory(ctx context.Context, dir string) error {
	body := map[string]string{"directoryPath": path.Clean(dir)}
	return c.doJSON(ctx, http.MethodPost, "/directories", nil, body, nil)
}

// UploadFile stores a file on the backend.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/files", nil, req, nil)
}

// DownloadFile returns the raw content of the file at p.
func (c *Client) DownloadFile(ctx context.Context, p string) ([]byte, error) {
	return c.doBytes(ctx, http.MethodGet, "/files", url.Values{"filePath": {p}}, nil)
}

// DeletePaths removes files and directories in one request.
func (c *Client) DeletePaths(ctx context.Context, paths []string) error {
	body := map[string][]string{"paths": paths}
	return c.doJSON(ctx, http.MethodPost, "/delete-dirs-files", nil, body, nil)
}
