package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/diogo/geminiworkshop/internal/api"
	"github.com/diogo/geminiworkshop/internal/config"
	"github.com/diogo/geminiworkshop/internal/history"
	"github.com/diogo/geminiworkshop/internal/models"
	"github.com/diogo/geminiworkshop/internal/snapshot"
	"github.com/diogo/geminiworkshop/internal/tui"
)

// TUIRunner runs the interactive workshop
type TUIRunner interface {
	Run(ctx context.Context, ctrls tui.Controllers, opts tui.Options) error
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewClient creates the Gemini API client.
	NewClient func(cfg config.Config, model models.Model) (api.GeminiClientInterface, error)

	// OpenSnapshots opens the store holding the query screens' state.
	OpenSnapshots func(cfg config.Config) (snapshot.Store, error)

	// OpenHistory opens the chat transcript store.
	OpenHistory func() (*history.Store, error)

	// TUI is the terminal user interface.
	TUI TUIRunner

	// Stdin is read when a prompt is piped in.
	Stdin io.Reader

	// HasStdin reports whether Stdin carries piped input.
	HasStdin func() bool

	// IsTTY reports whether stdout is a terminal.
	IsTTY func() bool
}

// DefaultTUI is the production implementation of TUIRunner.
type DefaultTUI struct{}

func (DefaultTUI) Run(ctx context.Context, ctrls tui.Controllers, opts tui.Options) error {
	return tui.Run(ctx, ctrls, opts)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewClient:     newClient,
		OpenSnapshots: openSnapshots,
		OpenHistory:   openHistory,
		TUI:           DefaultTUI{},
		Stdin:         os.Stdin,
		HasStdin:      stdinIsPiped,
		IsTTY:         isStdoutTTY,
	}
}

// deps is swapped by tests
var deps = NewDependencies()

func newClient(cfg config.Config, model models.Model) (api.GeminiClientInterface, error) {
	key, err := cfg.RequireAPIKey()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(key,
		api.WithModel(model),
		api.WithBaseURL(cfg.BaseURL),
		api.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
		api.WithVerbose(cfg.Verbose),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func openSnapshots(cfg config.Config) (snapshot.Store, error) {
	path, err := config.GetSnapshotDBPath(cfg)
	if err != nil {
		return nil, err
	}
	return snapshot.OpenSQLite(path)
}

func openHistory() (*history.Store, error) {
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return nil, err
	}
	store, err := history.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func stdinIsPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// getTerminalWidth returns the terminal width or a default value
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
