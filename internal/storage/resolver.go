package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrArtifactNotFound means no stored file matches the requested name.
var ErrArtifactNotFound = errors.New("artifact not found")

var jobIDPrefix = regexp.MustCompile(`^([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})[_.]`)

// Resolver locates a stored artifact by bare filename. Lookups never escape
// the two storage roots.
type Resolver struct {
	layout Layout
}

func NewResolver(layout Layout) *Resolver {
	return &Resolver{layout: layout}
}

// Resolve returns the absolute path of the first file matching the sanitized
// filename. Search order: the flat outputs directory, then the job tree named
// by a leading job-id prefix in the filename (if any), then every job tree
// under uploads. Returns ErrArtifactNotFound when nothing matches.
func (r *Resolver) Resolve(filename string) (string, error) {
	name, ok := sanitizeFilename(filename)
	if !ok {
		return "", ErrArtifactNotFound
	}

	// Final artifacts live flat in outputs.
	direct := filepath.Join(r.layout.OutputsDir, name)
	if info, err := os.Stat(direct); err == nil && info.Mode().IsRegular() {
		return direct, nil
	}

	// Names minted by the pipeline carry the job id up front; check that
	// job's tree before scanning everything.
	if m := jobIDPrefix.FindStringSubmatch(name); m != nil {
		if p, err := findInTree(r.layout.JobDir(m[1]), name); err == nil {
			return p, nil
		}
	}

	if p, err := findInTree(r.layout.UploadsDir, name); err == nil {
		return p, nil
	}
	return "", ErrArtifactNotFound
}

// sanitizeFilename strips any path components and rejects names that could
// address outside the storage roots.
func sanitizeFilename(filename string) (string, bool) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return "", false
	}
	return name, true
}

func findInTree(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // skip unreadable subtrees
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrArtifactNotFound
	}
	return found, nil
}
