package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// UploadUI manages multiple concurrent upload progress bars using mpb.
type UploadUI struct {
	progress   *mpb.Progress
	bars       sync.Map // local path -> *FileBar
	isTerminal bool
	totalFiles int
	started    int32 // Atomic counter for file index (1, 2, 3, ...)
	completed  int32
}

// FileBar represents a single file upload's progress bar.
type FileBar struct {
	bar        *mpb.Bar
	ui         *UploadUI
	index      int
	filepath   string
	taskID     string
	size       int64
	retries    int32
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
}

// NewUploadUI creates a new upload UI with the given number of total files.
func NewUploadUI(totalFiles int) *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSIOnWindows(os.Stderr)

		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		// Non-TTY: disable progress bars, just use text output
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		progress:   p,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
	}
}

// AddFileBar creates a new progress bar for a file upload, identified by
// the registry-assigned task ID.
func (u *UploadUI) AddFileBar(localPath, taskID string, size int64) *FileBar {
	index := int(atomic.AddInt32(&u.started, 1))

	sourcePath := truncatePath(localPath, 2)

	fb := &FileBar{
		ui:         u,
		index:      index,
		filepath:   localPath,
		taskID:     taskID,
		size:       size,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	if u.isTerminal {
		fb.bar = u.progress.New(size,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					retries := atomic.LoadInt32(&fb.retries)
					base := fmt.Sprintf("[%d/%d] %s (%.1f MiB)",
						fb.index, u.totalFiles,
						sourcePath,
						float64(size)/(1024*1024))
					if retries > 0 {
						return fmt.Sprintf("%s (retry %d)", base, retries)
					}
					return base
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Name("ETA ", decor.WCSyncWidth),
				decor.EwmaETA(decor.ET_STYLE_GO, 30),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Printf("Uploading [%d/%d]: %s (%.1f MiB)\n",
			fb.index, u.totalFiles,
			truncatePath(localPath, 2),
			float64(size)/(1024*1024))
	}

	u.bars.Store(localPath, fb)
	return fb
}

// UpdateProgress updates the progress bar based on a fraction (0.0 to 1.0).
// Throttles updates to reduce visual noise and improve performance.
func (f *FileBar) UpdateProgress(fraction float64) {
	if fraction < 0 {
		f.ResetStartTime()
		return
	}

	if f.bar == nil {
		return
	}

	now := time.Now()
	elapsed := now.Sub(f.lastUpdate)

	currentBytes := int64(fraction * float64(f.size))
	bytesDelta := currentBytes - f.lastBytes

	// Update every 300ms minimum so EwmaIncrBy keeps tracking time passage
	// even on ticks where no new bytes landed.
	const updateInterval = 300 * time.Millisecond

	if elapsed >= updateInterval {
		f.bar.EwmaIncrBy(int(bytesDelta), elapsed)
		f.lastBytes = currentBytes
		f.lastUpdate = now
	}
}

// SetRetry updates the retry counter and visually marks the bar.
func (f *FileBar) SetRetry(count int) {
	atomic.StoreInt32(&f.retries, int32(count))
	if f.bar != nil && count > 0 {
		f.bar.SetRefill(f.lastBytes)
	}
}

// ResetStartTime resets the start time to now.
func (f *FileBar) ResetStartTime() {
	f.startTime = time.Now()
}

// Complete marks the upload as finished and prints a summary.
func (f *FileBar) Complete(artifactID string, err error) {
	elapsed := time.Since(f.startTime)
	speed := float64(f.size) / elapsed.Seconds() / (1024 * 1024) // MB/s

	if err == nil {
		if f.bar != nil {
			f.bar.SetCurrent(f.size)
			f.bar.SetTotal(f.size, true) // Mark done, trigger BarRemoveOnComplete
		}

		msg := fmt.Sprintf("done: %s (artifact %s, %.1f MiB, %s, %.1f MiB/s)\n",
			truncatePath(f.filepath, 2),
			artifactID,
			float64(f.size)/(1024*1024),
			elapsed.Round(time.Second),
			speed)

		if f.ui.isTerminal && f.ui.progress != nil {
			f.ui.progress.Write([]byte(msg))
		} else {
			fmt.Print(msg)
		}
	} else {
		if f.bar != nil {
			f.bar.Abort(false) // false = don't remove (show failure)
		}

		retries := atomic.LoadInt32(&f.retries)
		msg := fmt.Sprintf("failed: %s: %v (after %d retries)\n",
			truncatePath(f.filepath, 2),
			err,
			retries)

		if f.ui.isTerminal && f.ui.progress != nil {
			f.ui.progress.Write([]byte(msg))
		} else {
			fmt.Print(msg)
		}
	}

	atomic.AddInt32(&f.ui.completed, 1)
}

// Wait blocks until all progress bars complete.
func (u *UploadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// LogWriter returns an io.Writer that safely prints above the progress bars.
func (u *UploadUI) LogWriter() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return os.Stderr
}

// Writer returns an io.Writer for output during progress operations.
// Implements the ProgressUI interface.
func (u *UploadUI) Writer() io.Writer {
	return u.LogWriter()
}

// IsTerminal returns true if output is to a terminal (progress bars are active).
// Implements the ProgressUI interface.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath truncates a file path to show only the last N components
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}

// enableANSIOnWindows enables Virtual Terminal processing on Windows for ANSI escape sequences
// This is a no-op on non-Windows platforms
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
