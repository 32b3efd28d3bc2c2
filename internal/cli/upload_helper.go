package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rescale/blobup/internal/pathutil"
)

// expandGlobPatterns expands glob patterns like *.zip, even when quoted.
// Returns a deduplicated list of absolute file paths.
func expandGlobPatterns(patterns []string) ([]string, error) {
	var expandedFiles []string
	seenFiles := make(map[string]bool)

	for _, pattern := range patterns {
		hasGlob := strings.ContainsAny(pattern, "*?[]")

		if hasGlob {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match pattern: %s", pattern)
			}

			for _, match := range matches {
				absPath, err := pathutil.ResolveAbsolutePath(match)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve path for %s: %w", match, err)
				}
				if !seenFiles[absPath] {
					expandedFiles = append(expandedFiles, absPath)
					seenFiles[absPath] = true
				}
			}
		} else {
			absPath, err := pathutil.ResolveAbsolutePath(pattern)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve path for %s: %w", pattern, err)
			}
			if !seenFiles[absPath] {
				expandedFiles = append(expandedFiles, absPath)
				seenFiles[absPath] = true
			}
		}
	}

	return expandedFiles, nil
}
