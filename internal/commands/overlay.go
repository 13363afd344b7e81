package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/ghostbar/internal/api"
	"github.com/diogo/ghostbar/internal/capture"
	"github.com/diogo/ghostbar/internal/config"
	"github.com/diogo/ghostbar/internal/history"
	"github.com/diogo/ghostbar/internal/logging"
	"github.com/diogo/ghostbar/internal/overlay"
	"github.com/diogo/ghostbar/internal/tui"
)

var overlayImageFlag string

var overlayCmd = &cobra.Command{
	Use:     "overlay",
	Aliases: []string{"chat"},
	Short:   "Open the terminal overlay",
	Long: `Open the floating assistant in the terminal.

Type a question and press Enter. Attach a screenshot with /image <path>
or the --image flag. Esc dismisses the conversation, Ctrl+Y copies the
last answer and Ctrl+C quits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(settings)
		if err != nil {
			return err
		}
		return runOverlay(cmd.Context(), client, settings, overlayImageFlag, tui.RunOverlay)
	},
}

func init() {
	overlayCmd.Flags().StringVarP(&overlayImageFlag, "image", "i", "", "Attach an image to the first question")
}

// overlayRunner runs the TUI until the user quits
type overlayRunner func(ctx context.Context, ctrl tui.Controller, opts tui.Options) error

// runOverlay builds the controller around relay and hands it to run
func runOverlay(ctx context.Context, relay api.Relay, cfg config.Config, image string, run overlayRunner) error {
	logger := logging.Component("overlay")

	if cfg.Theme != "" && !tui.SetTheme(cfg.Theme) {
		logger.WithField("theme", cfg.Theme).Warn("unknown theme, using default")
	}

	opts := []overlay.Option{overlay.WithLogger(logger)}
	if cfg.SaveHistory {
		store, err := openStore()
		if err != nil {
			return err
		}
		opts = append(opts, overlay.WithTranscripts(store))
	}

	ctrl := overlay.New(relay, opts...)
	defer ctrl.Close()

	captureOpts := captureOptions(cfg)
	if image != "" {
		att, err := capture.FromFile(image, captureOpts)
		if err != nil {
			return fmt.Errorf("failed to attach image: %w", err)
		}
		ctrl.Attach(att.DataURL)
	}

	err := run(ctx, ctrl, tui.Options{
		Stream:       cfg.Stream,
		CopyOnFinish: cfg.CopyToClipboard,
		Capture:      captureOpts,
	})

	// save whatever is still on screen when the program exits
	ctrl.Hide()
	return err
}

// openStore opens the transcript store under the config directory
func openStore() (*history.Store, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}
	store, err := history.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}
