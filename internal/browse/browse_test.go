package browse

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/mzscope/mzscope/pkg/errors"
)

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(dir, "sample_b.mzML"))
	mustWrite(t, filepath.Join(dir, "sample_a.mzml"))
	mustWrite(t, filepath.Join(dir, "legacy.XML"))
	mustWrite(t, filepath.Join(dir, "notes.txt"))
	mustWrite(t, filepath.Join(dir, ".hidden.mzML"))

	listing, err := List(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	if listing.CurrentPath != dir {
		t.Errorf("current path = %q, want %q", listing.CurrentPath, dir)
	}
	if listing.ParentPath != filepath.Dir(dir) {
		t.Errorf("parent path = %q, want %q", listing.ParentPath, filepath.Dir(dir))
	}
	if diff := cmp.Diff([]string{"archive", "subdir"}, listing.Folders); diff != "" {
		t.Errorf("folders mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"legacy.XML", "sample_a.mzml", "sample_b.mzML"}, listing.Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestListEmptyPathFallsBackToRoot(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "run.mzML"))

	listing, err := List(root, "")
	if err != nil {
		t.Fatal(err)
	}
	if listing.CurrentPath != root {
		t.Errorf("current path = %q, want root %q", listing.CurrentPath, root)
	}
	if len(listing.Files) != 1 {
		t.Errorf("files = %v, want one entry", listing.Files)
	}
}

func TestListMissingPath(t *testing.T) {
	_, err := List(t.TempDir(), filepath.Join(t.TempDir(), "does-not-exist"))
	if !errors.Is(err, apperrors.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if apperrors.HTTPStatusCode(err) != 404 {
		t.Errorf("status = %d, want 404", apperrors.HTTPStatusCode(err))
	}
}

func TestListPathIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "run.mzML")
	mustWrite(t, file)

	_, err := List(dir, file)
	if !errors.Is(err, apperrors.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound for a non-directory, got %v", err)
	}
}

func TestListEmptyDirectoryReturnsArrays(t *testing.T) {
	listing, err := List(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if listing.Folders == nil || listing.Files == nil {
		t.Error("empty directory must yield empty, non-nil slices")
	}
}
