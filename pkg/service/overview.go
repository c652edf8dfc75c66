package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

// Overview is the current namespace together with the job status of each stage.
type Overview struct {
	Namespace *models.Namespace      `json:"namespace" yaml:"namespace"`
	Stages    []workflow.StageStatus `json:"stages" yaml:"stages"`
	// Running counts every running task in the session, including other namespaces'.
	Running int `json:"running" yaml:"running"`
}

// Overview fetches the current namespace and the session concurrently.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		ov      Overview
		session models.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ns, err := s.CurrentNamespace(gctx)
		ov.Namespace = ns
		return err
	})
	g.Go(func() error {
		var err error
		session, err = s.Feed.Refresh(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ov, err
	}
	ov.Stages = s.Feed.Statuses()
	ov.Running = len(session.Running())
	return ov, nil
}
