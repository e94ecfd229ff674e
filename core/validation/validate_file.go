package validation

import (
	"fmt"
	"os"
)

// FileExistsError indicates a file does not exist with a descriptive message
type FileExistsError struct {
	Path    string
	Message string
}

func (e *FileExistsError) Error() string {
	return e.Message
}

// CheckFileExists checks if a file exists at the given path.
// This is a pure function that only checks existence, no side effects.
//
// Returns nil if the file exists, or a *FileExistsError describing the failure.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileExistsError{
			Path:    path,
			Message: "file path cannot be empty",
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileExistsError{
				Path:    path,
				Message: fmt.Sprintf("file not found: %s", path),
			}
		}
		return &FileExistsError{
			Path:    path,
			Message: fmt.Sprintf("error checking file %s: %v", path, err),
		}
	}

	if info.IsDir() {
		return &FileExistsError{
			Path:    path,
			Message: fmt.Sprintf("path is a directory, not a file: %s", path),
		}
	}

	return nil
}

// CheckDirWritable ensures dir exists (creating it if needed) and that a
// file can be created inside it. The probe file is removed afterwards.
func CheckDirWritable(dir string) error {
	if dir == "" {
		return &FileExistsError{Path: dir, Message: "directory path cannot be empty"}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &FileExistsError{Path: dir, Message: fmt.Sprintf("cannot create directory %s: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return &FileExistsError{Path: dir, Message: fmt.Sprintf("directory %s is not writable: %v", dir, err)}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}
