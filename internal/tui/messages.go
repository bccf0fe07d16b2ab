package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/diogo/geminiworkshop/internal/conversation"
	"github.com/diogo/geminiworkshop/internal/query"
)

// routedMsg is delivered to the screen that owns it, active or not
type routedMsg interface {
	target() Route
}

type (
	// queryStateMsg carries a state published by a query controller
	queryStateMsg struct {
		route Route
		state query.State
	}
	// chatStateMsg carries a transcript published by the turn controller
	chatStateMsg struct {
		conv conversation.Conversation
	}
	// submitDoneMsg reports that a blocking Submit returned
	submitDoneMsg struct {
		route Route
		err   error
	}
	// copiedMsg reports the outcome of a clipboard copy
	copiedMsg struct {
		route Route
		err   error
	}
)

func (m queryStateMsg) target() Route    { return m.route }
func (m chatStateMsg) target() Route     { return RouteChat }
func (m submitDoneMsg) target() Route    { return m.route }
func (m copiedMsg) target() Route        { return m.route }
func (m animationTickMsg) target() Route { return m.route }

// listenQuery waits for the next state of a query controller
func listenQuery(route Route, ch <-chan query.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return queryStateMsg{route: route, state: s}
	}
}

// listenChat waits for the next transcript of the turn controller
func listenChat(ch <-chan conversation.Conversation) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return chatStateMsg{conv: c}
	}
}
