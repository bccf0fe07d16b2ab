package commands

import (
	"context"
	"fmt"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/spf13/cobra"

	"github.com/diogo/geminiworkshop/internal/api"
	"github.com/diogo/geminiworkshop/internal/config"
	"github.com/diogo/geminiworkshop/internal/conversation"
	"github.com/diogo/geminiworkshop/internal/history"
	"github.com/diogo/geminiworkshop/internal/models"
	"github.com/diogo/geminiworkshop/internal/query"
	"github.com/diogo/geminiworkshop/internal/render"
	"github.com/diogo/geminiworkshop/internal/snapshot"
	"github.com/diogo/geminiworkshop/internal/tui"
)

var (
	screenFlag string
	resumeFlag string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive workshop",
	Long: `Open the workshop. Press ctrl+o for the screen menu.

Screens: text (text-only question), image (question about images), chat.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		route, err := tui.ParseRoute(screenFlag)
		if err != nil {
			return err
		}
		return runTUI(cmdContext(cmd), route)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Open the workshop on the chat screen. Every completed turn is saved
to the local history (see 'geminiworkshop history').

--resume continues a saved conversation: ` + history.ListAliases(),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmdContext(cmd), tui.RouteChat)
	},
}

func init() {
	tuiCmd.Flags().StringVarP(&screenFlag, "screen", "s", "text", "Screen to open: text, image or chat")
	chatCmd.Flags().StringVarP(&resumeFlag, "resume", "r", "", "Continue a saved conversation (ID, index or @last)")
}

// workshop owns the client and stores behind the three screens
type workshop struct {
	client    api.GeminiClientInterface
	snapshots snapshot.Store
	recorder  *history.Recorder
	ctrls     tui.Controllers
}

// openWorkshop builds the controllers. Snapshot and history failures only
// cost persistence, so they are reported and the workshop still opens.
func openWorkshop(cfg config.Config) (*workshop, error) {
	textModel := resolveModel(cfg.TextModel)
	client, err := deps.NewClient(cfg, textModel)
	if err != nil {
		return nil, err
	}

	w := &workshop{client: client}

	w.snapshots, err = deps.OpenSnapshots(cfg)
	if err != nil {
		ancli.PrintWarn(fmt.Sprintf("screen state will not be saved: %v\n", err))
		w.snapshots = snapshot.NewMemoryStore()
	}

	chatModel := resolveModel(cfg.ChatModel)
	var chatOpts []conversation.Option
	if store, err := deps.OpenHistory(); err != nil {
		ancli.PrintWarn(fmt.Sprintf("chat history will not be saved: %v\n", err))
	} else {
		w.recorder = history.NewRecorder(store, chatModel.Name)
		chatOpts = append(chatOpts, conversation.WithRecorder(w.recorder))
	}

	w.ctrls = tui.Controllers{
		TextOnly:  query.NewTextOnly(client, textModel, query.WithSnapshotStore(w.snapshots)),
		TextImage: query.NewTextImage(client, resolveModel(cfg.VisionModel), query.WithSnapshotStore(w.snapshots)),
		Chat:      conversation.NewTurnController(client, chatModel, chatOpts...),
	}
	return w, nil
}

// resume loads a saved transcript into the chat screen; later turns are
// appended to the same transcript
func (w *workshop) resume(ref string) error {
	_, conv, err := resolveConversation(ref)
	if err != nil {
		return err
	}

	turns := make([]models.Content, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		role := models.RoleUser
		if msg.Role == history.RoleModel {
			role = models.RoleModel
		}
		turns = append(turns, models.TextContent(role, msg.Content))
	}
	if err := w.ctrls.Chat.Resume(turns); err != nil {
		return err
	}
	if w.recorder != nil {
		w.recorder.Continue(conv.ID)
	}
	return nil
}

// Close saves the query screens, detaches them from the snapshot store and
// releases the client and stores
func (w *workshop) Close() {
	for _, c := range []*query.Controller{w.ctrls.TextOnly, w.ctrls.TextImage} {
		if err := c.Close(); err != nil {
			ancli.PrintWarn(fmt.Sprintf("failed to save %s state: %v\n", c.Variant(), err))
		}
	}
	if err := w.snapshots.Close(); err != nil {
		ancli.PrintWarn(fmt.Sprintf("failed to close state store: %v\n", err))
	}
	w.client.Close()

	if w.recorder != nil {
		if id := w.recorder.ConversationID(); id != "" {
			ancli.PrintOK(fmt.Sprintf("chat saved as %s\n", id))
		}
	}
}

func runTUI(ctx context.Context, start tui.Route) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.TUITheme != "" && !render.SetTUITheme(cfg.TUITheme) {
		ancli.PrintWarn(fmt.Sprintf("unknown tui_theme %q, using %s\n", cfg.TUITheme, render.DefaultTUITheme))
	}
	tui.UpdateTheme()

	w, err := openWorkshop(cfg)
	if err != nil {
		tui.PrintError(err)
		return err
	}
	defer w.Close()

	if start == tui.RouteChat && resumeFlag != "" {
		if err := w.resume(resumeFlag); err != nil {
			return fmt.Errorf("failed to resume %s: %w", resumeFlag, err)
		}
	}

	return deps.TUI.Run(ctx, w.ctrls, tui.Options{
		Start:             start,
		Render:            render.FromConfig(cfg.Markdown),
		ImageMaxDimension: cfg.ImageMaxDimension,
	})
}
