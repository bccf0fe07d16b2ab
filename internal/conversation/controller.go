package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"

	"github.com/diogo/geminiworkshop/internal/api"
	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/models"
	"github.com/diogo/geminiworkshop/internal/state"
)

// Recorder persists completed exchanges outside the controller
type Recorder interface {
	RecordTurn(userText, agentText, thoughts string) error
	// Restart begins a fresh transcript; called on Reset
	Restart()
}

// TurnController drives a chat transcript one turn at a time.
// At most one request is in flight; a second Submit is refused with ErrBusy.
type TurnController struct {
	gen      api.Generator
	model    models.Model
	recorder Recorder
	store    *state.Store[Conversation]

	mu      sync.Mutex // Serializes transitions and guards session
	session *api.ChatSession
}

// Option configures a TurnController
type Option func(*TurnController)

// WithRecorder records each successful exchange
func WithRecorder(r Recorder) Option {
	return func(c *TurnController) {
		c.recorder = r
	}
}

// NewTurnController creates a controller sending through gen with model
func NewTurnController(gen api.Generator, model models.Model, opts ...Option) *TurnController {
	c := &TurnController{
		gen:   gen,
		model: model,
		store: state.New(Conversation{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = api.NewChatSession(gen, model)
	return c
}

// Submit sends text as the next user turn and blocks until the turn resolves.
// Blank text is ignored. Failures are recorded as error messages in the
// transcript; the only error returned is ErrBusy.
func (c *TurnController) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	if c.store.Get().Status == StatusAwaitingResponse {
		c.mu.Unlock()
		return apierrors.ErrBusy
	}
	pending := newMessage(AuthorUser, text, true)
	c.store.Update(func(conv Conversation) Conversation {
		next := conv.with(pending)
		next.Status = StatusAwaitingResponse
		return next
	})
	session := c.session
	c.mu.Unlock()

	output, err := session.SendMessage(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	var reply Message
	if err != nil {
		reply = newMessage(AuthorError, apierrors.Describe(err), false)
	} else {
		reply = newMessage(AuthorAgent, output.Text(), false)
	}

	resolved := false
	c.store.Update(func(conv Conversation) Conversation {
		idx := conv.indexOf(pending.ID)
		if idx < 0 {
			// Reset while in flight; the reply belongs to a transcript that no longer exists
			return conv
		}
		next := conv.with(reply)
		next.Messages[idx].Pending = false
		next.Status = StatusIdle
		resolved = true
		return next
	})

	if resolved && err == nil && c.recorder != nil {
		if recErr := c.recorder.RecordTurn(text, output.Text(), output.Thoughts()); recErr != nil {
			ancli.PrintWarn("failed to record chat turn: " + recErr.Error() + "\n")
		}
	}
	return nil
}

// Reset clears the transcript and the model-facing history in one step
func (c *TurnController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = api.NewChatSession(c.gen, c.model)
	c.store.Set(Conversation{})
	if c.recorder != nil {
		c.recorder.Restart()
	}
}

// Resume replaces the transcript and the model-facing history with saved
// turns. It is refused with ErrBusy while a reply is awaited.
func (c *TurnController) Resume(turns []models.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Get().Status == StatusAwaitingResponse {
		return apierrors.ErrBusy
	}

	msgs := make([]Message, 0, len(turns))
	for _, turn := range turns {
		author := AuthorUser
		if turn.Role == models.RoleModel {
			author = AuthorAgent
		}
		msgs = append(msgs, newMessage(author, turn.Text(), false))
	}

	c.session = api.NewChatSession(c.gen, c.model)
	c.session.SetHistory(turns)
	c.store.Set(Conversation{Messages: msgs})
	return nil
}

// Snapshot returns the current transcript
func (c *TurnController) Snapshot() Conversation {
	return c.store.Get()
}

// Subscribe streams transcript snapshots after every change
func (c *TurnController) Subscribe() (<-chan Conversation, func()) {
	return c.store.Subscribe()
}

// History returns the context sent with the next request
func (c *TurnController) History() []models.Content {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	return session.History()
}

// Model returns the model the controller sends to
func (c *TurnController) Model() models.Model {
	return c.model
}
