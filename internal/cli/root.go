// Package cli provides the command-line interface for blobup.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rescale/blobup/internal/config"
	"github.com/rescale/blobup/internal/logging"
	"github.com/rescale/blobup/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiKey     string
	tokenFile  string // Path to file containing API key
	apiBaseURL string
	verbose    bool
	debug      bool

	// Engine flags
	concurrency int

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "blobup",
		Short: "blobup - resumable multipart file uploads",
		Long: `blobup ` + version.Version + ` - Built: ` + version.BuildTime + `

A command-line client for resumable, multipart file uploads. Large files
are split into parts and uploaded concurrently; a paused or interrupted
upload can be resumed without re-sending parts the server already has.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(0) // Debug level (zerolog.DebugLevel)
			}
			if err := config.EnsureLogDirectory(); err == nil {
				if f, err := os.OpenFile(config.LogFilePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
					logger.SetOutput(io.MultiWriter(os.Stdout, f))
				}
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (overrides config and token file)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Path to file containing API key")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Upload API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "Concurrent part uploads per file (0 = use config default)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	// Customize completion command description
	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Enable tab-completion for blobup commands",
		Long: `Generate shell completion scripts to enable tab-completion for blobup.

QUICK START:

  macOS with zsh (default on modern Macs):
    mkdir -p ~/.zsh/completions
    blobup completion zsh > ~/.zsh/completions/_blobup
    # Then add to ~/.zshrc: fpath=(~/.zsh/completions $fpath)
    # Restart terminal

  Linux with bash:
    blobup completion bash | sudo tee /etc/bash_completion.d/blobup
    # Restart terminal

For detailed instructions, use: blobup completion [shell] --help`,
	}
	rootCmd.AddCommand(completionCmd)

	completionCmd.AddCommand(&cobra.Command{
		Use:   "bash",
		Short: "Generate bash completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenBashCompletion(cmd.OutOrStdout())
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "zsh",
		Short: "Generate zsh completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenZshCompletion(cmd.OutOrStdout())
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "fish",
		Short: "Generate fish completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "powershell",
		Short: "Generate PowerShell completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenPowerShellCompletion(cmd.OutOrStdout())
		},
	})

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, pausing in-flight uploads...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling. This
// context is cancelled when the user presses Ctrl+C, which upload.go
// treats as a pause rather than an abort.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
