package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/geminiworkshop/internal/clipboard"
	"github.com/diogo/geminiworkshop/internal/conversation"
	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/render"
)

// chatScreen shows the transcript of the turn controller
type chatScreen struct {
	ctx    context.Context
	ctrl   *conversation.TurnController
	render render.Options

	input    textarea.Model
	viewport viewport.Model

	conv      conversation.Conversation
	updates   <-chan conversation.Conversation
	cancel    func()
	frame     int
	animating bool
	notice    string

	width  int
	height int
}

func newChatScreen(ctx context.Context, ctrl *conversation.TurnController, opts Options) *chatScreen {
	s := &chatScreen{
		ctx:      ctx,
		ctrl:     ctrl,
		render:   opts.Render,
		input:    newTextarea("Type your message here..."),
		viewport: viewport.New(80, 10),
		conv:     ctrl.Snapshot(),
	}
	s.updates, s.cancel = ctrl.Subscribe()
	s.refresh()
	return s
}

func (s *chatScreen) Init() tea.Cmd {
	return listenChat(s.updates)
}

func (s *chatScreen) Focus() tea.Cmd {
	return s.input.Focus()
}

func (s *chatScreen) Blur() {
	s.input.Blur()
}

func (s *chatScreen) Close() {
	s.cancel()
}

func (s *chatScreen) SetSize(width, height int) {
	s.width = width
	s.height = height

	contentWidth := width - 4
	vpHeight := height - 9
	if vpHeight < 3 {
		vpHeight = 3
	}
	s.viewport.Width = contentWidth
	s.viewport.Height = vpHeight
	s.input.SetWidth(contentWidth - 2)
	s.refresh()
}

func (s *chatScreen) awaiting() bool {
	return s.conv.Status == conversation.StatusAwaitingResponse
}

func (s *chatScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case chatStateMsg:
		s.conv = msg.conv
		s.refresh()
		cmds := []tea.Cmd{listenChat(s.updates)}
		if s.awaiting() && !s.animating {
			s.animating = true
			s.frame = 0
			cmds = append(cmds, animationTick(RouteChat))
		}
		return tea.Batch(cmds...)

	case animationTickMsg:
		if !s.awaiting() {
			s.animating = false
			return nil
		}
		s.frame++
		return animationTick(RouteChat)

	case submitDoneMsg:
		if errors.Is(msg.err, apierrors.ErrBusy) {
			s.notice = "Wait for the current reply before sending another message"
		} else if msg.err != nil {
			s.notice = msg.err.Error()
		}
		return nil

	case copiedMsg:
		if msg.err != nil {
			s.notice = "copy failed: " + msg.err.Error()
		} else {
			s.notice = "Message copied to clipboard"
		}
		return nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.viewport, cmd = s.viewport.Update(msg)
	return cmd
}

func (s *chatScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		return s.submit()
	case "ctrl+r":
		s.notice = ""
		s.input.Reset()
		s.ctrl.Reset()
		return nil
	case "ctrl+y":
		return s.copyLast()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		s.viewport, cmd = s.viewport.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *chatScreen) submit() tea.Cmd {
	text := s.input.Value()
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if s.awaiting() {
		s.notice = "Wait for the current reply before sending another message"
		return nil
	}
	if trimmed == "/reset" {
		s.input.Reset()
		s.ctrl.Reset()
		return nil
	}
	s.notice = ""
	s.input.Reset()

	ctx := s.ctx
	return func() tea.Msg {
		return submitDoneMsg{route: RouteChat, err: s.ctrl.Submit(ctx, text)}
	}
}

// copyLast copies the newest agent reply
func (s *chatScreen) copyLast() tea.Cmd {
	var text string
	for i := len(s.conv.Messages) - 1; i >= 0; i-- {
		if s.conv.Messages[i].Author == conversation.AuthorAgent {
			text = s.conv.Messages[i].Text
			break
		}
	}
	return func() tea.Msg {
		return copiedMsg{route: RouteChat, err: clipboard.Copy(text)}
	}
}

// refresh re-renders the transcript into the viewport
func (s *chatScreen) refresh() {
	var content strings.Builder
	bubbleWidth := s.viewport.Width - 6

	for i, msg := range s.conv.Messages {
		if i > 0 {
			content.WriteString("\n")
		}
		switch msg.Author {
		case conversation.AuthorUser:
			content.WriteString(userLabelStyle.Render("⬤ You") + "\n")
			content.WriteString(userBubbleStyle.Width(bubbleWidth).Render(msg.Text))
			if msg.Pending {
				content.WriteString("\n" + pendingStyle.Render("sending…"))
			}
		case conversation.AuthorAgent:
			content.WriteString(assistantLabelStyle.Render("✦ Gemini") + "\n")
			rendered := render.Answer(msg.Text, s.render.WithWidth(bubbleWidth-4))
			content.WriteString(assistantBubbleStyle.Width(bubbleWidth).Render(rendered))
		case conversation.AuthorError:
			content.WriteString(errorLabelStyle.Render("✗ Error") + "\n")
			content.WriteString(errorBubbleStyle.Width(bubbleWidth).Render(msg.Text))
		}
	}

	s.viewport.SetContent(content.String())
	s.viewport.GotoBottom()
}

func (s *chatScreen) View() string {
	contentWidth := s.width - 4
	var sections []string

	body := s.viewport.View()
	if s.conv.Len() == 0 {
		width := s.viewport.Width - 4
		body = lipgloss.JoinVertical(lipgloss.Center,
			"",
			welcomeIconStyle.Width(width).Render("✦"),
			welcomeTitleStyle.Width(width).Render("Welcome to Gemini Chat"),
			hintStyle.Width(width).Align(lipgloss.Center).Render("Start a conversation by typing a message below"),
		)
	}
	sections = append(sections, panelStyle.Width(contentWidth).Height(s.viewport.Height).Render(body))

	var input string
	if s.awaiting() {
		input = renderLoadingAnimation(s.frame, "Gemini is thinking")
	} else {
		input = lipgloss.JoinVertical(lipgloss.Left, inputLabelStyle.Render("You"), s.input.View())
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(input))

	if s.notice != "" {
		sections = append(sections, noticeStyle.Render("  "+s.notice))
	}

	keys := []shortcut{{"Enter", "Send"}, {"Ctrl+R", "Reset"}}
	if clipboardAvailable() {
		keys = append(keys, shortcut{"Ctrl+Y", "Copy"})
	}
	keys = append(keys, shortcut{"PgUp/PgDn", "Scroll"}, shortcut{"Ctrl+O", "Menu"}, shortcut{"Ctrl+C", "Quit"})
	sections = append(sections, renderStatusBar(contentWidth, keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
