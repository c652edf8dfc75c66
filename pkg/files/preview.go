package files

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// PreviewKind selects how a file is previewed.
type PreviewKind int

const (
	PreviewNone PreviewKind = iota
	PreviewImage
	PreviewAudio
	PreviewText
)

func (k PreviewKind) String() string {
	switch k {
	case PreviewImage:
		return "image"
	case PreviewAudio:
		return "audio"
	case PreviewText:
		return "text"
	default:
		return "none"
	}
}

var kinds = map[string]PreviewKind{
	"png":  PreviewImage,
	"jpg":  PreviewImage,
	"jpeg": PreviewImage,
	"gif":  PreviewImage,
	"webp": PreviewImage,
	"bmp":  PreviewImage,
	"svg":  PreviewImage,
	"mp3":  PreviewAudio,
	"wav":  PreviewAudio,
	"ogg":  PreviewAudio,
	"txt":  PreviewText,
	"md":   PreviewText,
	"json": PreviewText,
}

// KindFor maps a file name to its preview kind by extension, case-insensitively.
func KindFor(name string) PreviewKind {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if k, ok := kinds[ext]; ok {
		return k
	}
	return PreviewNone
}

// Preview is the loaded content for one file.
type Preview struct {
	Name string
	Path string
	Kind PreviewKind
	// Text holds the body of text files.
	Text string
	// AudioURL is a blob URL for audio files. The receiver owns it.
	AudioURL string
	Width    int
	Height   int
	// Placeholder explains why nothing richer is shown.
	Placeholder string
}

// Blobs turns downloaded audio into a playable URL.
type Blobs interface {
	Create(data []byte, ext string) (string, error)
}

// Previewer loads file contents for the preview pane.
type Previewer struct {
	manager *Manager
	blobs   Blobs
	// MaxText truncates text previews.
	MaxText int
}

// NewPreviewer creates a previewer that downloads through m.
func NewPreviewer(m *Manager, blobs Blobs) *Previewer {
	return &Previewer{manager: m, blobs: blobs, MaxText: 64 * 1024}
}

// Load never fails: any error degrades to a placeholder preview.
func (pr *Previewer) Load(ctx context.Context, filePath string) Preview {
	name := path.Base(filePath)
	pv := Preview{Name: name, Path: filePath, Kind: KindFor(name)}

	if pv.Kind == PreviewNone {
		pv.Placeholder = "No preview available"
		return pv
	}

	data, err := pr.manager.Download(ctx, filePath)
	if err != nil {
		return degrade(pv, err)
	}

	switch pv.Kind {
	case PreviewText:
		if !utf8.Valid(data) {
			return degrade(pv, fmt.Errorf("not valid UTF-8"))
		}
		if pr.MaxText > 0 && len(data) > pr.MaxText {
			data = append(data[:pr.MaxText:pr.MaxText], []byte("\n…")...)
		}
		pv.Text = string(data)
	case PreviewAudio:
		url, err := pr.blobs.Create(data, strings.ToLower(path.Ext(name)))
		if err != nil {
			return degrade(pv, err)
		}
		pv.AudioURL = url
	case PreviewImage:
		w, h, err := imageSize(name, data)
		if err != nil {
			pv.Placeholder = fmt.Sprintf("%s image, %d bytes", strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."), len(data))
			return pv
		}
		pv.Width, pv.Height = w, h
	}
	return pv
}

func degrade(pv Preview, err error) Preview {
	pv.Kind = PreviewNone
	pv.Placeholder = fmt.Sprintf("Preview unavailable: %v", err)
	return pv
}

var svgDims = regexp.MustCompile(`<svg[^>]*?\swidth="(\d+)[^"]*"[^>]*?\sheight="(\d+)`)

func imageSize(name string, data []byte) (int, int, error) {
	if strings.EqualFold(path.Ext(name), ".svg") {
		m := svgDims.FindSubmatch(data)
		if m == nil {
			return 0, 0, fmt.Errorf("svg has no size")
		}
		w, err := strconv.Atoi(string(m[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("svg width: %w", err)
		}
		h, err := strconv.Atoi(string(m[2]))
		if err != nil {
			return 0, 0, fmt.Errorf("svg height: %w", err)
		}
		if w == 0 || h == 0 {
			return 0, 0, fmt.Errorf("svg has no size")
		}
		return w, h, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
