package runner

import (
	"os"
	"path/filepath"
)

const (
	BackendFolder = "chat.py"
	BackendEntry  = "api_server.py"
)

// Anchors are the install roots searched for the backend.
type Anchors struct {
	OwnRoot       string
	ResourcesRoot string
}

// Candidate is one place the backend may be installed.
type Candidate struct {
	Entry   string
	WorkDir string
}

// Layout is an ordered candidate list. Earlier entries win.
type Layout struct {
	Candidates []Candidate
	Fallback   string
}

// Resolution is the outcome of a layout lookup. WorkDir is never empty when
// the own root is set, even if Found is false.
type Resolution struct {
	EntryPath string
	Found     bool
	WorkDir   string
}

// NewLayout builds the candidates for the own root, the packaged app root
// and the packaged resources root, in that order.
func NewLayout(a Anchors) Layout {
	roots := []string{a.OwnRoot}
	if a.ResourcesRoot != "" {
		roots = append(roots, filepath.Join(a.ResourcesRoot, "app"), a.ResourcesRoot)
	}

	layout := Layout{Fallback: a.OwnRoot}
	for _, root := range roots {
		if root == "" {
			continue
		}
		dir := filepath.Join(root, BackendFolder)
		layout.Candidates = append(layout.Candidates, Candidate{
			Entry:   filepath.Join(dir, BackendEntry),
			WorkDir: dir,
		})
	}
	return layout
}

// Resolve picks the first existing entry and, separately, the first existing
// working directory.
func (l Layout) Resolve(exists func(string) bool) Resolution {
	if exists == nil {
		exists = FileExists
	}

	res := Resolution{WorkDir: l.Fallback}

	if c, ok := FirstMatch(l.Candidates, func(c Candidate) bool { return exists(c.Entry) }); ok {
		res.EntryPath = c.Entry
		res.Found = true
	}
	if c, ok := FirstMatch(l.Candidates, func(c Candidate) bool { return exists(c.WorkDir) }); ok {
		res.WorkDir = c.WorkDir
	}
	return res
}

// Resolve is shorthand for NewLayout(a).Resolve(exists).
func Resolve(a Anchors, exists func(string) bool) Resolution {
	return NewLayout(a).Resolve(exists)
}

// FirstMatch returns the first item accepted by match.
func FirstMatch[T any](items []T, match func(T) bool) (T, bool) {
	for _, item := range items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
