package pipeline

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Task is the ephemeral unit of work for one source file. It is produced
// by the scanner, consumed by exactly one worker, and never persisted.
type Task struct {
	// SourcePath is the absolute path of the input file.
	SourcePath string
	// RelPath is the path relative to the scan root. It mirrors the
	// directory structure into the scratch area and the remote key space.
	RelPath string
}

// acceptedExtensions is the set of input formats the pipeline admits,
// matched case-insensitively.
var acceptedExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".xls":  {},
	".xlsx": {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// Accepted reports whether the file at path has a supported extension.
func Accepted(path string) bool {
	_, ok := acceptedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Scan walks root recursively and materializes the worklist of accepted
// regular files. The list is finite and consumed once by the pool; no
// ordering across tasks is promised downstream.
func Scan(root string) ([]Task, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}

	var tasks []Task
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !Accepted(path) {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		tasks = append(tasks, Task{SourcePath: path, RelPath: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk scan root: %w", err)
	}

	return tasks, nil
}
