package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/spf13/cobra"

	"github.com/diogo/geminiworkshop/internal/history"
)

var (
	exportFormatFlag   string
	exportThoughtsFlag bool
	searchContentFlag  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage chat history",
	Long: `View and manage saved chat transcripts.

` + history.ListAliases(),
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Show a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <ref>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <ref>",
	Short: "Export a conversation as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

var historyRenameCmd = &cobra.Command{
	Use:   "rename <ref> <title>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistoryRename,
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search conversation titles (and content with --content)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistorySearch,
}

func init() {
	historyExportCmd.Flags().StringVar(&exportFormatFlag, "format", "markdown", "Export format: markdown or json")
	historyExportCmd.Flags().BoolVar(&exportThoughtsFlag, "thoughts", false, "Include model thoughts")
	historyExportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write to file instead of stdout")
	historySearchCmd.Flags().BoolVar(&searchContentFlag, "content", false, "Also search message content")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyRenameCmd)
	historyCmd.AddCommand(historySearchCmd)
}

// resolveConversation opens the store and resolves ref to a conversation
func resolveConversation(ref string) (*history.Store, *history.Conversation, error) {
	store, err := deps.OpenHistory()
	if err != nil {
		return nil, nil, err
	}
	conv, err := history.NewResolver(store).ResolveWithInfo(ref)
	if err != nil {
		return nil, nil, err
	}
	return store, conv, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := deps.OpenHistory()
	if err != nil {
		return err
	}

	conversations, err := store.ListConversations()
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tTITLE\tMODEL\tTURNS\tUPDATED")
	for i, conv := range conversations {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			i+1, conv.ID, truncate(conv.Title, 40), conv.Model, conv.Turns(), history.FormatRelativeTime(conv.UpdatedAt))
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	_, conv, err := resolveConversation(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID: %s\n", conv.ID)
	fmt.Printf("Title: %s\n", conv.Title)
	fmt.Printf("Model: %s\n", conv.Model)
	fmt.Printf("Created: %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", conv.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Messages: %d\n", len(conv.Messages))
	fmt.Println()

	for i, msg := range conv.Messages {
		role := "You"
		if msg.Role == history.RoleModel {
			role = "Gemini"
		}
		fmt.Printf("[%d] %s (%s):\n", i+1, role, msg.Timestamp.Format("15:04"))
		if msg.Thoughts != "" {
			fmt.Printf("  💭 %s\n", truncate(msg.Thoughts, 200))
		}
		fmt.Printf("  %s\n\n", truncate(msg.Content, 500))
	}
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, conv, err := resolveConversation(args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteConversation(conv.ID); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	ancli.PrintOK(fmt.Sprintf("deleted conversation: %s\n", conv.ID))
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := deps.OpenHistory()
	if err != nil {
		return err
	}
	if err := store.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	ancli.PrintOK("all conversations deleted\n")
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, err := history.ParseExportFormat(exportFormatFlag)
	if err != nil {
		return err
	}
	store, conv, err := resolveConversation(args[0])
	if err != nil {
		return err
	}
	data, err := store.Export(conv.ID, format, exportThoughtsFlag)
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	if outputFlag != "" {
		if err := os.WriteFile(outputFlag, data, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		ancli.PrintOK(fmt.Sprintf("exported %s to %s\n", conv.ID, outputFlag))
		return nil
	}
	fmt.Print(string(data))
	return nil
}

func runHistoryRename(cmd *cobra.Command, args []string) error {
	title := strings.TrimSpace(args[1])
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	store, conv, err := resolveConversation(args[0])
	if err != nil {
		return err
	}
	if err := store.UpdateTitle(conv.ID, title); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}
	ancli.PrintOK(fmt.Sprintf("renamed %s to %q\n", conv.ID, title))
	return nil
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	store, err := deps.OpenHistory()
	if err != nil {
		return err
	}
	results, err := store.SearchConversations(args[0], searchContentFlag)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tMATCH")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s: %s\n", r.Conversation.ID, truncate(r.Conversation.Title, 40), r.MatchField, r.MatchSnippet)
	}
	return w.Flush()
}

// truncate shortens s to max runes, marking the cut with "..."
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
