package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

// RefinementAPI edits ASR transcripts.
type RefinementAPI interface {
	ListRefinements(ctx context.Context, inputDir, outputDir string) ([]models.RefinementItem, error)
	UpdateRefinement(ctx context.Context, req models.RefinementRequest) error
	DeleteRefinement(ctx context.Context, req models.RefinementRequest) error
	ReloadRefinements(ctx context.Context, inputDir, outputDir string) ([]models.RefinementItem, error)
}

// Refiner lists and edits the transcripts of one ASR run.
type Refiner struct {
	api RefinementAPI
}

func NewRefiner(a RefinementAPI) *Refiner {
	return &Refiner{api: a}
}

func (r *Refiner) List(ctx context.Context, f RefinementForm) ([]models.RefinementItem, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	items, err := r.api.ListRefinements(ctx, f.InputDir, f.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return items, nil
}

// Update replaces the transcript text of one clip.
func (r *Refiner) Update(ctx context.Context, f RefinementForm, item models.RefinementItem) error {
	var c checker
	c.required("source_file_path", item.SourceFilePath)
	c.required("text", item.Text)
	if err := c.err(); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	req := models.RefinementRequest{
		InputDir:       f.InputDir,
		OutputDir:      f.OutputDir,
		SourceFilePath: item.SourceFilePath,
		Language:       item.Language,
		Text:           strings.TrimSpace(item.Text),
	}
	if err := r.api.UpdateRefinement(ctx, req); err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	return nil
}

// Delete drops one clip from the training set.
func (r *Refiner) Delete(ctx context.Context, f RefinementForm, sourceFile string) error {
	var c checker
	c.required("source_file_path", sourceFile)
	if err := c.err(); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	req := models.RefinementRequest{InputDir: f.InputDir, OutputDir: f.OutputDir, SourceFilePath: sourceFile}
	if err := r.api.DeleteRefinement(ctx, req); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// Reload rereads transcripts from disk on the backend.
func (r *Refiner) Reload(ctx context.Context, f RefinementForm) ([]models.RefinementItem, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	items, err := r.api.ReloadRefinements(ctx, f.InputDir, f.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("reload transcripts: %w", err)
	}
	return items, nil
}
