package commands

import (
	"fmt"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/diogo/geminiworkshop/internal/config"
	"github.com/diogo/geminiworkshop/internal/render"
)

var configForceFlag bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration",
	Long: `Configuration is read from config.json (or config.yaml) in the config
directory. GEMINI_API_KEY, GOOGLE_API_KEY and GEMINI_BASE_URL override the file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.json",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForceFlag, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

// maskKey keeps the last four characters of an API key
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.APIKey = maskKey(cfg.APIKey)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}
	fmt.Print(string(data))

	if _, ok := render.GetTUIThemeByName(cfg.TUITheme); !ok {
		ancli.PrintWarn(fmt.Sprintf("unknown tui_theme %q, available: %v\n", cfg.TUITheme, render.TUIThemeNames()))
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.GetConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configForceFlag {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.SaveConfig(config.DefaultConfig()); err != nil {
		return err
	}
	ancli.PrintOK(fmt.Sprintf("wrote %s\n", path))
	return nil
}
