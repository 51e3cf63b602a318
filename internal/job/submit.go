package job

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultDirectory is the dbNSFP directory sent when none is given.
	DefaultDirectory = "/data/dbnsfp"
)

var allowedExtensions = []string{"vcf", "csv"}

// SubmitRequest holds what the user picked before submitting a job.
type SubmitRequest struct {
	FilePath       string `validate:"required,variant_file"`
	AnnotationType string `validate:"required,annotation_type"`
	// Directory is the server-side dbNSFP directory.
	Directory string
}

// NormalizeDirectory trims dir, falls back to defaultDir when dir is blank and
// turns backslashes into forward slashes.
func NormalizeDirectory(dir, defaultDir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = defaultDir
	}
	return strings.ReplaceAll(dir, `\`, "/")
}

// Extension returns the lower-cased extension of path, without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
