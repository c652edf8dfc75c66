package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

type namespacesResponse struct {
	Namespaces []models.Namespace `json:"namespaces"`
}

type namespacesRoot struct {
	NamespacesRoot string `json:"namespacesRoot"`
}

// ListNamespaces returns every namespace known to the backend.
func (c *Client) ListNamespaces(ctx context.Context) ([]models.Namespace, error) {
	var out namespacesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/namespaces", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Namespaces, nil
}

// CreateNamespace creates a namespace with the given name.
func (c *Client) CreateNamespace(ctx context.Context, name string) (*models.Namespace, error) {
	var ns models.Namespace
	body := map[string]string{"name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/namespaces", nil, body, &ns); err != nil {
		return nil, err
	}
	if ns.Name == "" {
		ns.Name = name
	}
	return &ns, nil
}

// GetNamespace fetches a single namespace.
func (c *Client) GetNamespace(ctx context.Context, name string) (*models.Namespace, error) {
	var ns models.Namespace
	if err := c.doJSON(ctx, http.MethodGet, "/namespaces/"+url.PathEscape(name), nil, nil, &ns); err != nil {
		return nil, err
	}
	return &ns, nil
}

// RenameNamespace renames a namespace.
func (c *Client) RenameNamespace(ctx context.Context, name, newName string) (*models.Namespace, error) {
	var ns models.Namespace
	body := map[string]string{"newName": newName}
	if err := c.doJSON(ctx, http.MethodPut, "/namespaces/"+url.PathEscape(name), nil, body, &ns); err != nil {
		return nil, err
	}
	if ns.Name == "" {
		ns.Name = newName
	}
	return &ns, nil
}

// DeleteNamespace removes a namespace and its storage.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/namespaces/"+url.PathEscape(name), nil, nil, nil)
}

// GetNamespacesRoot returns the directory under which namespaces are created.
func (c *Client) GetNamespacesRoot(ctx context.Context) (string, error) {
	var out namespacesRoot
	if err := c.doJSON(ctx, http.MethodGet, "/namespaces-root", nil, nil, &out); err != nil {
		return "", err
	}
	return out.NamespacesRoot, nil
}

// SetNamespacesRoot changes the directory under which namespaces are created.
func (c *Client) SetNamespacesRoot(ctx context.Context, root string) error {
	return c.doJSON(ctx, http.MethodPost, "/namespaces-root", nil, namespacesRoot{NamespacesRoot: root}, nil)
}
