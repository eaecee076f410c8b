// Package browse lists directories for the UI's file picker.
package browse

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/mzscope/mzscope/pkg/errors"
)

// Listing describes one directory: its subdirectories and the
// mass-spectrometry files it contains.
type Listing struct {
	CurrentPath string   `json:"current_path"`
	ParentPath  string   `json:"parent_path"`
	Folders     []string `json:"folders"`
	Files       []string `json:"files"`
}

// extensions of files offered for loading.
var extensions = []string{".mzml", ".xml"}

// List returns the browsable contents of path. An empty path falls back to
// root. Hidden entries are skipped; files are filtered to mzML-like
// extensions, case-insensitively.
func List(root, path string) (*Listing, error) {
	if path == "" {
		path = root
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrRunNotFound, http.StatusNotFound,
			"path not found or not a directory: %s", path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, apperrors.Newf(apperrors.ErrPermissionDenied, http.StatusForbidden,
				"cannot list %s", path)
		}
		return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError,
			"listing %s: %v", path, err)
	}

	listing := &Listing{
		CurrentPath: path,
		ParentPath:  filepath.Dir(path),
		Folders:     []string{},
		Files:       []string{},
	}

	names := make([]string, 0, len(entries))
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		if byName[name].IsDir() {
			listing.Folders = append(listing.Folders, name)
			continue
		}
		if hasDataExtension(name) {
			listing.Files = append(listing.Files, name)
		}
	}
	return listing, nil
}

func hasDataExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
