package cli

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/rescale/blobup/internal/config"
	"github.com/rescale/blobup/internal/events"
	"github.com/rescale/blobup/internal/progress"
	"github.com/rescale/blobup/internal/ratelimit"
	"github.com/rescale/blobup/internal/transfer"
	"github.com/rescale/blobup/internal/transport"
	"github.com/rescale/blobup/internal/uploadengine"
	strutil "github.com/rescale/blobup/internal/util/strings"
)

var uploadRateLimitMB float64

// newUploadCmd returns the "upload" command: it tracks one UploadController
// per file through the registry and drives every one to completion,
// rendering progress with mpb off the registry's event bus. Ctrl+C pauses
// rather than aborts — parts already accepted by the backend stay accepted,
// but this CLI doesn't persist resume state across process restarts, so a
// paused run must be resumed before the process exits.
func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload one or more files",
		Long: `Upload splits each file into parts and uploads them concurrently.
Pressing Ctrl+C pauses in-flight uploads instead of discarding them; a
lone part failure moves that file to a failed state without affecting the
others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(args)
		},
	}

	cmd.Flags().Float64Var(&uploadRateLimitMB, "rate-limit", 0, "Cap aggregate upload throughput in MB/s (0 = unlimited)")

	return cmd
}

// trackedUpload pairs a registry entry with the progress bar and file
// handle it owns, plus a channel the event-consumer goroutine closes once
// the controller reaches a terminal state.
type trackedUpload struct {
	path       string
	controller *uploadengine.Controller
	bar        *progress.FileBar
	reader     *uploadengine.FilePartReader
	done       chan struct{}
}

func runUpload(patterns []string) error {
	ctx := GetContext()
	log := GetLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiBaseURL != "" {
		cfg.APIBaseURL = apiBaseURL
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	} else if tokenFile != "" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return fmt.Errorf("read token file: %w", err)
		}
		cfg.APIKey = string(data)
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}

	files, err := expandGlobPatterns(patterns)
	if err != nil {
		return err
	}

	var limiter *ratelimit.RateLimiter
	if uploadRateLimitMB > 0 {
		// The limiter hands out one token per part upload, so the MB/s cap
		// is converted into parts per second.
		partsPerSec := uploadRateLimitMB * 1024 * 1024 / float64(cfg.PartSize)
		limiter = ratelimit.NewRateLimiter(partsPerSec, math.Max(1, partsPerSec))
	}

	httpTransport, err := transport.NewHTTPTransport(cfg, 3)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	queue, err := uploadengine.NewJobQueue(cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("build job queue: %w", err)
	}
	defer queue.Close()

	bus := events.NewEventBus(0)
	defer bus.Close()
	registry := transfer.NewRegistry(bus)

	ui := progress.NewUploadUI(len(files))
	defer ui.Wait()

	tasks := make(map[string]*trackedUpload, len(files))

	sub := bus.SubscribeAll()
	go func() {
		for ev := range sub {
			ue, ok := ev.(*events.UploadEvent)
			if !ok {
				continue
			}
			t, ok := tasks[ue.UploadTaskID]
			if !ok {
				continue
			}
			switch ue.EventType {
			case events.EventUploadProgress:
				t.bar.UpdateProgress(ue.Progress / 100)
			case events.EventUploadCompleted, events.EventUploadFailed, events.EventUploadCancelled, events.EventUploadPaused:
				select {
				case <-t.done:
				default:
					close(t.done)
				}
			}
		}
	}()

	var jobs []*trackedUpload
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("'%s' is a directory, not a file", path)
		}

		reader, err := uploadengine.NewFilePartReader(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}

		file := uploadengine.UploadFile{Name: info.Name(), Size: info.Size()}
		taskID, controller := registry.Track(file, cfg.PartSize, queue, httpTransport, reader, limiter)

		t := &trackedUpload{
			path:       path,
			controller: controller,
			bar:        ui.AddFileBar(path, taskID, info.Size()),
			reader:     reader,
			done:       make(chan struct{}),
		}
		tasks[taskID] = t
		jobs = append(jobs, t)

		if err := controller.Start(ctx); err != nil {
			close(t.done)
			t.bar.Complete("", err)
			log.Error().Str("file", path).Err(err).Msg("failed to start upload")
		}
	}

	go func() {
		<-ctx.Done()
		for _, t := range jobs {
			_ = t.controller.Pause()
		}
	}()

	var failed int
	for taskID, t := range tasks {
		<-t.done
		_ = t.reader.Close()

		controller, ok := registry.Get(taskID)
		if !ok {
			continue
		}
		snap := controller.Snapshot()

		if snap.Status == uploadengine.StatusDone {
			artifactID := ""
			if snap.Artifact != nil {
				artifactID = snap.Artifact.UID
			}
			t.bar.Complete(artifactID, nil)
			continue
		}

		failed++
		err := fmt.Errorf("upload did not complete (status: %s)", snap.Status)
		t.bar.Complete("", err)
		log.Error().Str("file", t.path).Msg(err.Error())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d %s failed to upload", failed, len(jobs), strutil.Pluralize("file", int64(len(jobs))))
	}
	return nil
}
