package surveylog

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrFormat covers a malformed header. Malformed data rows are dropped, not
	// reported through this error.
	ErrFormat = errors.New("surveylog: format error")
	// ErrConfig is returned when metadata is missing a required section.
	ErrConfig = errors.New("surveylog: config error")
	// ErrExtension is returned for paths that do not end in .csv.
	ErrExtension = errors.New("surveylog: file does not end in \".csv\"")
)

// Ext is the only accepted log and survey configuration file extension.
const Ext = ".csv"

// CheckExtension rejects any path not ending in .csv before I/O is attempted.
// The comparison is case-sensitive.
func CheckExtension(path string) error {
	if filepath.Ext(path) != Ext {
		return fmt.Errorf("%w: %s", ErrExtension, path)
	}
	return nil
}
