package commands

import (
	"encoding/json"
	"fmt"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
	"github.com/spf13/cobra"

	"github.com/diogo/geminiworkshop/internal/query"
	"github.com/diogo/geminiworkshop/internal/snapshot"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or clear the saved screen state",
	Long: `The text and image screens save their input and last response so they
come back as they were left. Keys: ` + query.TextOnlyStateKey + `, ` + query.TextImageStateKey + `.`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Print saved screen state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStateShow,
}

var stateClearCmd = &cobra.Command{
	Use:   "clear [key]",
	Short: "Delete saved screen state (all keys when none is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStateClear,
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)
}

// withSnapshots opens the snapshot store for the duration of fn
func withSnapshots(fn func(snapshot.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := deps.OpenSnapshots(cfg)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// selectKeys returns args[0] or every stored key
func selectKeys(store snapshot.Store, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return store.Keys()
}

func runStateShow(cmd *cobra.Command, args []string) error {
	return withSnapshots(func(store snapshot.Store) error {
		keys, err := selectKeys(store, args)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("No saved state.")
			return nil
		}
		for _, key := range keys {
			payload, ok, err := store.Load(key)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("%s: <none>\n", key)
				continue
			}
			var v any
			if err := json.Unmarshal(payload, &v); err != nil {
				fmt.Printf("%s: <unreadable: %v>\n", key, err)
				continue
			}
			fmt.Printf("%s:\n%s\n", key, debug.IndentedJsonFmt(v))
		}
		return nil
	})
}

func runStateClear(cmd *cobra.Command, args []string) error {
	return withSnapshots(func(store snapshot.Store) error {
		keys, err := selectKeys(store, args)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := store.Delete(key); err != nil {
				return fmt.Errorf("failed to delete %s: %w", key, err)
			}
		}
		ancli.PrintOK(fmt.Sprintf("cleared %d key(s)\n", len(keys)))
		return nil
	})
}
