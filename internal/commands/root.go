// Package commands provides CLI commands for geminiworkshop.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diogo/geminiworkshop/internal/config"
	"github.com/diogo/geminiworkshop/internal/models"
	"github.com/diogo/geminiworkshop/internal/tui"
)

var (
	// Global flags
	modelFlag     string
	configDirFlag string
	verboseFlag   bool

	// Root/text flags
	outputFlag string
	fileFlag   string
	rawFlag    bool

	// Version info (set at build time)
	Version   = models.Version
	BuildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "geminiworkshop [prompt]",
	Short: "Terminal workshop for the Gemini API",
	Long: `geminiworkshop is a terminal client for the Gemini API with three
patterns: a text-only question, a question about images, and a multi-turn chat.

Without arguments it opens the interactive workshop on the text screen.

Examples:
  geminiworkshop                          Open the workshop
  geminiworkshop chat                     Open the workshop on the chat screen
  geminiworkshop "What is Go?"            Send a single query
  geminiworkshop text -f prompt.md        Read prompt from file
  cat prompt.md | geminiworkshop text     Read prompt from stdin
  geminiworkshop image -i 'photos/*.png' "What is in these photos?"`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configDirFlag != "" {
			config.SetConfigDir(configDirFlag)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("geminiworkshop %s (built %s)\n", Version, BuildTime)
			return nil
		}

		prompt, ok, err := readPrompt(args)
		if err != nil {
			return err
		}
		if ok {
			return runQuery(cmdContext(cmd), queryRequest{prompt: prompt})
		}
		return runTUI(cmdContext(cmd), tui.RouteTextOnly)
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to use (e.g., gemini-2.5-flash)")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Configuration directory (default ~/.geminiworkshop)")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Print request details to stderr")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save response to file")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read prompt from file")
	rootCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print the bare response text")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(imageCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(configCmd)
}

// cmdContext returns the command's context, or Background when run outside Execute
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// readPrompt takes the prompt from --file, piped stdin or the first argument.
// ok is false when none was given.
func readPrompt(args []string) (string, bool, error) {
	if fileFlag != "" {
		data, err := os.ReadFile(fileFlag)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	if deps.HasStdin() {
		data, err := io.ReadAll(deps.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), true, nil
	}

	if len(args) > 0 {
		return args[0], true, nil
	}
	return "", false, nil
}

// loadConfig loads the configuration with command-line overrides applied
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if verboseFlag {
		cfg.Verbose = true
	}
	return cfg, nil
}

// resolveModel returns the --model flag, or configured when unset
func resolveModel(configured string) models.Model {
	if modelFlag != "" {
		return models.ModelFromName(modelFlag)
	}
	return models.ModelFromName(configured)
}
