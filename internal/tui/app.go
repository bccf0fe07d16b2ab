package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/geminiworkshop/internal/conversation"
	"github.com/diogo/geminiworkshop/internal/query"
	"github.com/diogo/geminiworkshop/internal/render"
)

// Route names a screen reachable from the drawer
type Route int

const (
	RouteTextOnly Route = iota
	RouteTextImage
	RouteChat
)

var routes = []Route{RouteTextOnly, RouteTextImage, RouteChat}

func (r Route) String() string {
	switch r {
	case RouteTextImage:
		return "textAndImage"
	case RouteChat:
		return "chatScreen"
	default:
		return "textOnly"
	}
}

// Title is the drawer label of the route
func (r Route) Title() string {
	switch r {
	case RouteTextImage:
		return "Text & image"
	case RouteChat:
		return "Chat"
	default:
		return "Text only"
	}
}

// ParseRoute accepts a route name or its short form (text, image, chat)
func ParseRoute(name string) (Route, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "textonly":
		return RouteTextOnly, nil
	case "image", "textandimage":
		return RouteTextImage, nil
	case "chat", "chatscreen":
		return RouteChat, nil
	}
	return RouteTextOnly, fmt.Errorf("unknown screen %q (use text, image or chat)", name)
}

// Controllers are the long-lived controllers behind the three screens.
// They outlive navigation so every screen comes back as it was left.
type Controllers struct {
	TextOnly  *query.Controller
	TextImage *query.Controller
	Chat      *conversation.TurnController
}

// Options configure the app shell
type Options struct {
	Start             Route
	Render            render.Options
	ImageMaxDimension int
}

// screen is one drawer destination
type screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View() string
	SetSize(width, height int)
	Focus() tea.Cmd
	Blur()
	Close()
}

// App is the root bubbletea model: a drawer over three screens
type App struct {
	route   Route
	screens map[Route]screen

	drawerOpen   bool
	drawerCursor int

	width  int
	height int
}

// NewApp builds the shell. ctx bounds every request started from the UI.
func NewApp(ctx context.Context, ctrls Controllers, opts Options) App {
	return App{
		route: opts.Start,
		screens: map[Route]screen{
			RouteTextOnly:  newQueryScreen(ctx, RouteTextOnly, ctrls.TextOnly, opts),
			RouteTextImage: newQueryScreen(ctx, RouteTextImage, ctrls.TextImage, opts),
			RouteChat:      newChatScreen(ctx, ctrls.Chat, opts),
		},
		drawerCursor: int(opts.Start),
	}
}

// Route returns the screen on display
func (a App) Route() Route {
	return a.route
}

// Init initializes every screen; background screens keep following their controller
func (a App) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(routes)+1)
	for _, r := range routes {
		cmds = append(cmds, a.screens[r].Init())
	}
	cmds = append(cmds, a.screens[a.route].Focus())
	return tea.Batch(cmds...)
}

// Navigate switches to route. Selecting the current route does nothing.
func (a App) Navigate(route Route) (App, tea.Cmd) {
	a.drawerOpen = false
	if route == a.route {
		return a, nil
	}
	a.screens[a.route].Blur()
	a.route = route
	a.drawerCursor = int(route)
	return a, a.screens[route].Focus()
}

// Update handles messages and updates the model
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		for _, r := range routes {
			a.screens[r].SetSize(msg.Width, msg.Height-headerHeight)
		}
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.Close()
			return a, tea.Quit
		case "ctrl+o":
			a.drawerOpen = !a.drawerOpen
			a.drawerCursor = int(a.route)
			return a, nil
		}
		if a.drawerOpen {
			return a.updateDrawer(msg)
		}
		return a, a.screens[a.route].Update(msg)

	case routedMsg:
		// State updates go to their owner even when it is in the background
		return a, a.screens[msg.target()].Update(msg)
	}

	return a, a.screens[a.route].Update(msg)
}

func (a App) updateDrawer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		a.drawerOpen = false
	case "up", "k":
		if a.drawerCursor > 0 {
			a.drawerCursor--
		}
	case "down", "j":
		if a.drawerCursor < len(routes)-1 {
			a.drawerCursor++
		}
	case "1", "2", "3":
		return a.Navigate(routes[int(msg.Runes[0]-'1')])
	case "enter":
		return a.Navigate(routes[a.drawerCursor])
	}
	return a, nil
}

// Close releases the screens' subscriptions
func (a App) Close() {
	for _, r := range routes {
		a.screens[r].Close()
	}
}

const headerHeight = 3

// View renders the TUI
func (a App) View() string {
	if a.width == 0 {
		return loadingStyle.Render("  Initializing...")
	}

	header := headerStyle.Width(a.width - 2).Render(lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("✦ Gemini Workshop"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(a.route.Title()),
		hintStyle.Render("  •  ctrl+o menu"),
	))

	body := a.screens[a.route].View()
	if a.drawerOpen {
		body = lipgloss.JoinHorizontal(lipgloss.Top, a.renderDrawer(), " ", body)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func (a App) renderDrawer() string {
	var sb strings.Builder
	sb.WriteString(drawerTitleStyle.Render("Screens"))
	for i, r := range routes {
		sb.WriteString("\n")
		label := fmt.Sprintf("%d  %s", i+1, r.Title())
		if r == a.route {
			label += drawerCurrentStyle.Render("  ●")
		}
		if i == a.drawerCursor {
			sb.WriteString(drawerSelectedStyle.Render("> " + label))
		} else {
			sb.WriteString(drawerItemStyle.Render(label))
		}
	}
	return drawerStyle.Render(sb.String())
}

// Run starts the TUI on opts.Start and blocks until the user quits
func Run(ctx context.Context, ctrls Controllers, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := NewApp(ctx, ctrls, opts)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
