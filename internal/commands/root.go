// Package commands provides CLI commands for ghostbar.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/diogo/ghostbar/internal/api"
	"github.com/diogo/ghostbar/internal/capture"
	"github.com/diogo/ghostbar/internal/config"
	"github.com/diogo/ghostbar/internal/logging"
)

var (
	// Global flags
	modelFlag   string
	baseURLFlag string
	verboseFlag bool

	// One-shot flags
	outputFlag   string
	fileFlag     string
	imageFlag    string
	noStreamFlag bool
	copyFlag     bool

	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

var (
	// settings is the effective configuration, loaded before any command runs
	settings  = config.DefaultConfig()
	logCloser io.Closer
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ghostbar [prompt]",
	Short: "Ask a vision model about what is on your screen",
	Long: `ghostbar is a small assistant that sends a question, optionally with a
screenshot, to an OpenAI-compatible chat completions API and shows the answer.

Examples:
  ghostbar overlay                      Open the terminal overlay
  ghostbar "What is Go?"                Ask a single question
  ghostbar -i shot.png "What is this?"  Ask about an image
  ghostbar -f prompt.md                 Read the prompt from a file
  cat prompt.md | ghostbar              Read the prompt from stdin
  ghostbar "Hello" -o answer.md         Save the answer to a file
  ghostbar config set api_key sk-...    Store your API key`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			// defaults and environment still apply
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
		settings = cfg
		return setupLogging(cmd.ErrOrStderr(), cfg)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
			logCloser = nil
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "ghostbar %s (built %s)\n", Version, BuildTime)
			return nil
		}

		prompt, ok, err := readPrompt(args, fileFlag, os.Stdin, stdinIsPiped())
		if err != nil {
			return err
		}
		if !ok && imageFlag == "" {
			return cmd.Help()
		}

		client, err := newClient(settings)
		if err != nil {
			return err
		}

		opts := queryOptions{
			Stream:   settings.Stream && !noStreamFlag,
			Output:   outputFlag,
			Copy:     copyFlag || settings.CopyToClipboard,
			Decorate: isTerminal(os.Stderr),
		}

		if imageFlag != "" {
			att, err := capture.FromFile(imageFlag, captureOptions(settings))
			if err != nil {
				return fmt.Errorf("failed to attach image: %w", err)
			}
			opts.Image = att.DataURL
		}

		return runQuery(cmd.Context(), client, prompt, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Error"))
		stop()
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to use (e.g., gpt-4o)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Base URL of the chat completions API")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Write debug logs to stderr")

	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save answer to file")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read prompt from file")
	rootCmd.Flags().StringVarP(&imageFlag, "image", "i", "", "Path to image file to include")
	rootCmd.Flags().BoolVar(&noStreamFlag, "no-stream", false, "Wait for the full answer instead of streaming it")
	rootCmd.Flags().BoolVar(&copyFlag, "copy", false, "Copy the answer to the clipboard")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	// Add subcommands
	rootCmd.AddCommand(overlayCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadSettings reads .env files, the config file and the environment, then
// applies the global flags on top
func loadSettings() (config.Config, error) {
	cfg, err := config.Load()
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func setupLogging(stderr io.Writer, cfg config.Config) error {
	path, err := config.GetLogPath(cfg)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verboseFlag {
		level = "debug"
	}

	closer, err := logging.Setup(logging.Options{
		Level:   level,
		File:    path,
		Verbose: verboseFlag,
		Stderr:  stderr,
	})
	if err != nil {
		return err
	}
	logCloser = closer
	return nil
}

// newClient builds the relay client from the effective configuration
func newClient(cfg config.Config) (*api.Client, error) {
	opts := []api.ClientOption{
		api.WithModel(cfg.Model),
		api.WithBaseURL(cfg.BaseURL),
		api.WithMaxTokens(cfg.MaxTokens),
		api.WithTemperature(cfg.Temperature),
		api.WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		api.WithLogger(logging.Component("relay")),
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, api.WithSystemPrompt(cfg.SystemPrompt))
	}

	client, err := api.NewClient(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func captureOptions(cfg config.Config) capture.Options {
	opts := capture.DefaultOptions()
	if cfg.MaxImageDimension > 0 {
		opts.MaxDimension = cfg.MaxImageDimension
	}
	opts.Logger = logging.Component("capture")
	return opts
}

// stdinIsPiped reports whether stdin is a pipe or file rather than a terminal
func stdinIsPiped() bool {
	return !term.IsTerminal(int(os.Stdin.Fd()))
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
