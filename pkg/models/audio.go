package models

import (
	"fmt"
	"time"
)

// AudioState is one in-memory audio clip. URL is only meaningful while the blob
// it points at is alive.
type AudioState struct {
	URL      string `json:"url"`
	Duration string `json:"duration"`
	Name     string `json:"name"`
}

// Empty reports whether the clip has no playable URL.
func (a AudioState) Empty() bool {
	return a.URL == ""
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// SynthesisResult is a voice-clone output kept across runs.
type SynthesisResult struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	FilePath  string    `json:"file_path"`
	Duration  string    `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// PathPair is the input/output directory pair remembered for a stage.
type PathPair struct {
	SourceDir string `json:"sourceDir" yaml:"source_dir"`
	OutputDir string `json:"outputDir" yaml:"output_dir"`
}
