package protocol

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeProtocolFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestDirSource_ListAndRead(t *testing.T) {
	ws := t.TempDir()
	writeProtocolFile(t, ws, "Protocol_Code_Review.md", "# Code Review\n## Phase 1: Read\n- read it\n")
	writeProtocolFile(t, filepath.Join(ws, "protocols"), "Protocol_Release.md", "# Release\n")
	writeProtocolFile(t, ws, "notes.md", "not a protocol")

	src := NewDirSource(ws, "protocols")
	docs, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d: %+v", len(docs), docs)
	}

	// Hints come from the filename with prefix/suffix stripped
	hints := map[string]bool{}
	for _, d := range docs {
		hints[d.Hint] = true
	}
	if !hints["Code Review"] || !hints["Release"] {
		t.Errorf("unexpected hints: %+v", docs)
	}

	content, err := src.Read(context.Background(), docs[0].ID)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if content == "" {
		t.Error("expected non-empty content")
	}
}

func TestDirSource_EmptyWorkspace(t *testing.T) {
	src := NewDirSource(t.TempDir(), "protocols")
	docs, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestDirSource_ReadRejectsEscapingIDs(t *testing.T) {
	src := NewDirSource(t.TempDir())
	if _, err := src.Read(context.Background(), "../etc/passwd"); err == nil {
		t.Error("expected error for ID escaping the workspace")
	}
}

func TestDirSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewDirSource(t.TempDir())
	if _, err := src.List(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource(map[string]string{
		"Protocol_One.md": "# One\n",
	})

	docs, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Hint != "One" {
		t.Fatalf("unexpected docs: %+v", docs)
	}

	if _, err := src.Read(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown document")
	}
}
