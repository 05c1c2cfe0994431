package protocol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document identifies one raw protocol document held by a Source.
type Document struct {
	// ID is opaque to the engine; the Source that issued it can Read it back.
	ID string

	// Hint is a human-friendly name derived from the document's location
	// (e.g. the filename). Used only as a lookup fallback when a document
	// declares no title of its own.
	Hint string
}

// Source is the document-source collaborator consumed by the Registry.
// Implementations own discovery and raw reads; the engine never touches the
// filesystem directly.
type Source interface {
	List(ctx context.Context) ([]Document, error)
	Read(ctx context.Context, id string) (string, error)
}

// DirSource discovers Protocol_*.md documents in a workspace directory.
// The workspace root is always scanned; additional subdirectories can be
// configured. Document IDs are workspace-relative paths.
type DirSource struct {
	root string
	dirs []string
}

// NewDirSource creates a source rooted at the given workspace directory.
// extraDirs are workspace-relative subdirectories scanned in addition to the
// root; missing directories are skipped silently.
func NewDirSource(root string, extraDirs ...string) *DirSource {
	return &DirSource{root: root, dirs: extraDirs}
}

// List enumerates protocol documents. An empty or missing workspace yields an
// empty slice, not an error.
func (s *DirSource) List(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scan := append([]string{"."}, s.dirs...)
	seen := make(map[string]bool)
	var docs []Document

	for _, dir := range scan {
		pattern := filepath.Join(s.root, dir, "Protocol_*.md")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			// Only possible with a malformed pattern
			return nil, fmt.Errorf("protocol glob failed: %w", err)
		}
		for _, match := range matches {
			rel, err := filepath.Rel(s.root, match)
			if err != nil {
				continue
			}
			if seen[rel] {
				continue
			}
			seen[rel] = true
			docs = append(docs, Document{ID: rel, Hint: hintFromFilename(match)})
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Read returns the raw text of a previously listed document.
func (s *DirSource) Read(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.root, id)
	// Refuse IDs that escape the workspace
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("document id %q outside workspace", id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return string(data), nil
}

// hintFromFilename derives a lookup hint from a document filename:
// "Protocol_Code_Review.md" -> "Code Review".
func hintFromFilename(path string) string {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, "Protocol_")
	name = strings.TrimSuffix(name, ".md")
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}

// StaticSource serves documents from memory. Useful in tests and for callers
// that already hold document content.
type StaticSource struct {
	docs map[string]string // id -> content
}

// NewStaticSource creates a source over the given id -> content mapping.
func NewStaticSource(docs map[string]string) *StaticSource {
	copied := make(map[string]string, len(docs))
	for id, content := range docs {
		copied[id] = content
	}
	return &StaticSource{docs: copied}
}

func (s *StaticSource) List(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(s.docs))
	for id := range s.docs {
		docs = append(docs, Document{ID: id, Hint: hintFromFilename(id)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *StaticSource) Read(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, ok := s.docs[id]
	if !ok {
		return "", fmt.Errorf("unknown document %q", id)
	}
	return content, nil
}
