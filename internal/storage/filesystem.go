package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9.\-]+`)

// SanitizeTarget replaces characters unsafe for filesystem paths
// Allows alphanumeric, dots, and hyphens. Replaces everything else with underscore.
func SanitizeTarget(target string) string {
	return unsafePathChars.ReplaceAllString(target, "_")
}

// ScanDirPath generates the artifact directory path for a job
// Format: {baseDir}/{target}_{YYYYMMDD}_{HHMMSS}_{id8}
func ScanDirPath(baseDir, target, jobID string, startedAt time.Time) string {
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	dirName := fmt.Sprintf("%s_%s_%s", SanitizeTarget(target), startedAt.Format("20060102_150405"), short)
	return filepath.Join(baseDir, dirName)
}

// CreateScanDir creates the job directory and its raw/ subdirectory for tool
// artifacts. It returns the raw directory.
func CreateScanDir(baseDir, target, jobID string, startedAt time.Time) (string, error) {
	rawDir := filepath.Join(ScanDirPath(baseDir, target, jobID, startedAt), "raw")
	if err := EnsureDir(rawDir); err != nil {
		return "", err
	}
	return rawDir, nil
}

// EnsureDir creates a directory and all parent directories if they don't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
