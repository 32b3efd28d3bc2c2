package progress

import "io"

// ProgressUI defines the interface for progress tracking during file
// uploads. It exists so the CLI can drive either the terminal mpb-backed
// renderer or a non-interactive fallback through the same calls.
type ProgressUI interface {
	// AddFileBar creates a new progress bar for one tracked upload.
	AddFileBar(localPath, taskID string, size int64) *FileBar

	// Wait blocks until all progress bars complete
	Wait()

	// Writer returns an io.Writer that safely outputs above the progress bars.
	// Returns mpb's writer if in terminal mode, otherwise returns os.Stdout/os.Stderr.
	Writer() io.Writer

	// IsTerminal returns true if output is to a terminal (progress bars are active)
	IsTerminal() bool
}

// FileBarHandle represents a handle to a single file's progress bar
type FileBarHandle interface {
	// UpdateProgress updates the progress bar based on a fraction (0.0 to 1.0)
	UpdateProgress(fraction float64)

	// SetRetry updates the retry counter and visually marks the bar
	SetRetry(count int)

	// Complete marks the operation as finished and prints a summary
	Complete(artifactID string, err error)

	// ResetStartTime resets the start time to now
	ResetStartTime()
}
