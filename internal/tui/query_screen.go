package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/geminiworkshop/internal/clipboard"
	"github.com/diogo/geminiworkshop/internal/imaging"
	"github.com/diogo/geminiworkshop/internal/query"
	"github.com/diogo/geminiworkshop/internal/render"
)

// queryScreen drives one single-shot controller. The image variant adds a
// field for image paths and globs.
type queryScreen struct {
	ctx    context.Context
	route  Route
	ctrl   *query.Controller
	render render.Options
	maxDim int

	input     textarea.Model
	images    textinput.Model
	imageMode bool
	onImages  bool
	viewport  viewport.Model

	state     query.State
	updates   <-chan query.State
	cancel    func()
	frame     int
	animating bool
	notice    string

	width  int
	height int
}

func newQueryScreen(ctx context.Context, route Route, ctrl *query.Controller, opts Options) *queryScreen {
	ta := newTextarea("Ask Gemini anything...")
	ti := textinput.New()
	ti.Placeholder = "photos/*.png, diagram.jpg"
	ti.Prompt = ""
	ti.CharLimit = 1024

	s := &queryScreen{
		ctx:       ctx,
		route:     route,
		ctrl:      ctrl,
		render:    opts.Render,
		maxDim:    opts.ImageMaxDimension,
		input:     ta,
		images:    ti,
		imageMode: route == RouteTextImage,
		viewport:  viewport.New(80, 10),
		state:     ctrl.Snapshot(),
	}
	s.input.SetValue(s.state.InputText)
	s.updates, s.cancel = ctrl.Subscribe()
	s.refresh()
	return s
}

func newTextarea(placeholder string) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle
	return ta
}

func (s *queryScreen) Init() tea.Cmd {
	return listenQuery(s.route, s.updates)
}

func (s *queryScreen) Focus() tea.Cmd {
	if s.onImages {
		return s.images.Focus()
	}
	return s.input.Focus()
}

func (s *queryScreen) Blur() {
	s.input.Blur()
	s.images.Blur()
}

func (s *queryScreen) Close() {
	s.cancel()
}

func (s *queryScreen) SetSize(width, height int) {
	s.width = width
	s.height = height

	contentWidth := width - 4
	inputHeight := 5
	if s.imageMode {
		inputHeight += 3
	}
	vpHeight := height - inputHeight - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	s.viewport.Width = contentWidth
	s.viewport.Height = vpHeight
	s.input.SetWidth(contentWidth - 2)
	s.images.Width = contentWidth - 10
	s.refresh()
}

func (s *queryScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case queryStateMsg:
		s.state = msg.state
		s.refresh()
		cmds := []tea.Cmd{listenQuery(s.route, s.updates)}
		if s.state.IsLoading && !s.animating {
			s.animating = true
			s.frame = 0
			cmds = append(cmds, animationTick(s.route))
		}
		return tea.Batch(cmds...)

	case animationTickMsg:
		if !s.state.IsLoading {
			s.animating = false
			return nil
		}
		s.frame++
		return animationTick(s.route)

	case submitDoneMsg:
		if msg.err != nil {
			s.notice = msg.err.Error()
		}
		return nil

	case copiedMsg:
		if msg.err != nil {
			s.notice = "copy failed: " + msg.err.Error()
		} else {
			s.notice = "Response copied to clipboard"
		}
		return nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.viewport, cmd = s.viewport.Update(msg)
	return cmd
}

func (s *queryScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		return s.submit()
	case "ctrl+l":
		s.notice = ""
		s.input.Reset()
		s.images.Reset()
		s.ctrl.Clear()
		return nil
	case "ctrl+y":
		return s.copyResponse()
	case "tab":
		if s.imageMode {
			s.onImages = !s.onImages
			s.Blur()
			return s.Focus()
		}
	case "pgup", "pgdown", "up", "down":
		if !s.onImages && s.input.Value() == "" {
			var cmd tea.Cmd
			s.viewport, cmd = s.viewport.Update(msg)
			return cmd
		}
	}

	var cmd tea.Cmd
	if s.onImages {
		s.images, cmd = s.images.Update(msg)
		return cmd
	}
	s.input, cmd = s.input.Update(msg)
	if s.input.Value() != s.state.InputText {
		s.ctrl.UpdateInput(s.input.Value())
	}
	return cmd
}

// submit starts a request unless one is in flight
func (s *queryScreen) submit() tea.Cmd {
	if s.state.IsLoading {
		return nil
	}
	text := s.input.Value()
	s.ctrl.UpdateInput(text)
	s.notice = ""

	if !s.imageMode {
		return s.submitCmd(func(ctx context.Context) error {
			return s.ctrl.Submit(ctx)
		})
	}

	patterns := strings.FieldsFunc(s.images.Value(), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(patterns) == 0 {
		s.notice = "Add at least one image path (tab to switch fields)"
		return nil
	}
	atts, err := imaging.LoadAll(patterns, s.maxDim)
	if err != nil {
		s.notice = err.Error()
		return nil
	}
	s.notice = fmt.Sprintf("%d image(s) attached", len(atts))
	return s.submitCmd(func(ctx context.Context) error {
		return s.ctrl.SubmitWithImages(ctx, text, atts)
	})
}

func (s *queryScreen) submitCmd(run func(ctx context.Context) error) tea.Cmd {
	ctx, route := s.ctx, s.route
	return func() tea.Msg {
		return submitDoneMsg{route: route, err: run(ctx)}
	}
}

func (s *queryScreen) copyResponse() tea.Cmd {
	text := s.state.ResponseText
	route := s.route
	return func() tea.Msg {
		return copiedMsg{route: route, err: clipboard.Copy(text)}
	}
}

// refresh re-renders the response into the viewport
func (s *queryScreen) refresh() {
	var content string
	switch {
	case s.state.IsError:
		content = errorStyle.Render("✗ " + s.state.ResponseText)
	case s.state.ResponseText != "":
		content = render.Answer(s.state.ResponseText, s.render.WithWidth(s.viewport.Width-2))
	}
	s.viewport.SetContent(content)
	s.viewport.GotoTop()
}

func (s *queryScreen) View() string {
	contentWidth := s.width - 4
	var sections []string

	var body string
	switch {
	case s.state.IsLoading:
		body = renderLoadingAnimation(s.frame, "Gemini is thinking")
	case s.state.ResponseText == "":
		body = s.renderWelcome()
	default:
		body = s.viewport.View()
	}
	sections = append(sections, panelStyle.Width(contentWidth).Height(s.viewport.Height).Render(body))

	if s.imageMode {
		label := inputLabelStyle.Render("Images")
		if s.onImages {
			label = inputLabelStyle.Foreground(colorAccent).Render("Images")
		}
		sections = append(sections, inputPanelStyle.Width(contentWidth).Render(
			lipgloss.JoinHorizontal(lipgloss.Center, label, s.images.View()),
		))
	}

	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, inputLabelStyle.Render("Prompt"), s.input.View()),
	))

	if s.notice != "" {
		sections = append(sections, noticeStyle.Render("  "+s.notice))
	}

	keys := []shortcut{{"Enter", "Send"}, {"Ctrl+L", "Clear"}}
	if clipboardAvailable() {
		keys = append(keys, shortcut{"Ctrl+Y", "Copy"})
	}
	if s.imageMode {
		keys = append(keys, shortcut{"Tab", "Field"})
	}
	keys = append(keys, shortcut{"Ctrl+O", "Menu"}, shortcut{"Ctrl+C", "Quit"})
	sections = append(sections, renderStatusBar(contentWidth, keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (s *queryScreen) renderWelcome() string {
	title := "Ask a question"
	sub := "Type a prompt below and press Enter"
	if s.imageMode {
		title = "Ask about images"
		sub = "List image paths or globs, then type a prompt"
	}
	width := s.viewport.Width - 4
	return lipgloss.JoinVertical(lipgloss.Center,
		"",
		welcomeIconStyle.Width(width).Render("✦"),
		welcomeTitleStyle.Width(width).Render(title),
		hintStyle.Width(width).Align(lipgloss.Center).Render(sub),
	)
}
