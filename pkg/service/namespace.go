package service

import (
	"context"
	"fmt"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

// ListNamespaces returns every namespace on the backend.
func (s *Service) ListNamespaces(ctx context.Context) ([]models.Namespace, error) {
	return s.API.ListNamespaces(ctx)
}

// CreateNamespace creates name. It becomes current when none is selected.
func (s *Service) CreateNamespace(ctx context.Context, name string) (*models.Namespace, error) {
	ns, err := s.API.CreateNamespace(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create namespace: %w", err)
	}
	if s.State.Namespace.Current() == "" {
		if err := s.State.Namespace.SetCurrent(ns.Name); err != nil {
			return ns, err
		}
	}
	return ns, nil
}

// CurrentNamespace fetches the selected namespace.
func (s *Service) CurrentNamespace(ctx context.Context) (*models.Namespace, error) {
	name := s.State.Namespace.Current()
	if name == "" {
		return nil, workflow.ErrNoNamespace
	}
	ns, err := s.API.GetNamespace(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get namespace %s: %w", name, err)
	}
	return ns, nil
}

// SwitchNamespace makes name current. It is refused while a stage job started from the
// current namespace is running. Stage paths and job UUIDs belong to the old namespace
// and are cleared.
func (s *Service) SwitchNamespace(ctx context.Context, name string) error {
	current := s.State.Namespace.Current()
	if current == name {
		return nil
	}
	if current != "" {
		if _, err := s.Feed.Refresh(ctx); err != nil {
			return err
		}
		if stage, running := s.Feed.AnyRunning(); running {
			return fmt.Errorf("%s job: %w", stage, ErrJobRunning)
		}
	}

	if _, err := s.API.GetNamespace(ctx, name); err != nil {
		return fmt.Errorf("get namespace %s: %w", name, err)
	}

	if err := s.State.Namespace.SetCurrent(name); err != nil {
		return err
	}
	if err := s.State.Paths.Reset(); err != nil {
		return err
	}
	for stage := range s.State.UUIDs.All() {
		if err := s.State.UUIDs.Clear(stage); err != nil {
			return err
		}
	}
	s.Logger.WithField("namespace", name).Info("namespace switched")
	return nil
}

// DeleteNamespace deletes name. Deleting the current namespace requires a replacement,
// which is switched to first.
func (s *Service) DeleteNamespace(ctx context.Context, name, replacement string) error {
	if name == s.State.Namespace.Current() {
		if replacement == "" || replacement == name {
			return ErrActiveNamespace
		}
		if err := s.SwitchNamespace(ctx, replacement); err != nil {
			return err
		}
	}
	if err := s.API.DeleteNamespace(ctx, name); err != nil {
		return fmt.Errorf("delete namespace: %w", err)
	}
	return nil
}

// RenameNamespace renames name and follows the rename when it is current.
func (s *Service) RenameNamespace(ctx context.Context, name, newName string) (*models.Namespace, error) {
	ns, err := s.API.RenameNamespace(ctx, name, newName)
	if err != nil {
		return nil, fmt.Errorf("rename namespace: %w", err)
	}
	if s.State.Namespace.Current() == name {
		if err := s.State.Namespace.SetCurrent(ns.Name); err != nil {
			return ns, err
		}
		if err := s.State.Paths.Reset(); err != nil {
			return ns, err
		}
	}
	return ns, nil
}
