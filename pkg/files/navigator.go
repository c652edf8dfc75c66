package files

import (
	"path"
	"sort"
	"strings"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

// Join joins POSIX path elements.
func Join(elem ...string) string {
	return path.Join(elem...)
}

// Crumb is one breadcrumb segment.
type Crumb struct {
	Name string
	Path string
}

// Navigator tracks the current directory below a fixed root.
type Navigator struct {
	root      string
	cwd       string
	selection *Selection
}

// NewNavigator starts at root.
func NewNavigator(root string) *Navigator {
	root = clean(root)
	return &Navigator{root: root, cwd: root, selection: NewSelection()}
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

// Root returns the navigation root.
func (n *Navigator) Root() string { return n.root }

// Path returns the current directory.
func (n *Navigator) Path() string { return n.cwd }

// Selection returns the selection for the current directory.
func (n *Navigator) Selection() *Selection { return n.selection }

// Breadcrumbs splits the current path on "/" starting at the root.
func (n *Navigator) Breadcrumbs() []Crumb {
	name := path.Base(n.root)
	crumbs := []Crumb{{Name: name, Path: n.root}}

	rel := strings.TrimPrefix(strings.TrimPrefix(n.cwd, n.root), "/")
	if rel == "" {
		return crumbs
	}
	cur := n.root
	for _, seg := range strings.Split(rel, "/") {
		cur = path.Join(cur, seg)
		crumbs = append(crumbs, Crumb{Name: seg, Path: cur})
	}
	return crumbs
}

// GoTo truncates the path at crumb i. Out-of-range indexes are ignored.
func (n *Navigator) GoTo(i int) {
	crumbs := n.Breadcrumbs()
	if i < 0 || i >= len(crumbs) {
		return
	}
	n.set(crumbs[i].Path)
}

// SetPath jumps to p when it lies inside the root.
func (n *Navigator) SetPath(p string) bool {
	p = clean(p)
	if !n.within(p) {
		return false
	}
	n.set(p)
	return true
}

func (n *Navigator) within(p string) bool {
	return p == n.root || n.root == "/" || strings.HasPrefix(p, n.root+"/")
}

// Open enters a folder and returns false; for a file it returns true and leaves the
// path unchanged so the caller can preview it.
func (n *Navigator) Open(item models.FileItem) (preview bool) {
	if !item.IsDir() {
		return true
	}
	n.set(path.Join(n.cwd, item.Name))
	return false
}

// Up moves to the parent directory, stopping at the root.
func (n *Navigator) Up() bool {
	if n.cwd == n.root {
		return false
	}
	n.set(path.Dir(n.cwd))
	return true
}

func (n *Navigator) set(p string) {
	n.cwd = p
	n.selection.Clear()
}

// Selection is a toggle set of paths.
type Selection struct {
	items map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{items: make(map[string]struct{})}
}

// Toggle flips p and reports whether it is now selected.
func (s *Selection) Toggle(p string) bool {
	if _, ok := s.items[p]; ok {
		delete(s.items, p)
		return false
	}
	s.items[p] = struct{}{}
	return true
}

func (s *Selection) Has(p string) bool {
	_, ok := s.items[p]
	return ok
}

func (s *Selection) Len() int { return len(s.items) }

func (s *Selection) Clear() {
	s.items = make(map[string]struct{})
}

// Paths returns the selected paths in sorted order.
func (s *Selection) Paths() []string {
	out := make([]string, 0, len(s.items))
	for p := range s.items {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
