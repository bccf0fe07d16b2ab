package api

import (
	"context"
	"sync"

	"github.com/diogo/geminiworkshop/internal/models"
)

// ChatSession maintains conversation context across messages.
// The history is sent with every request; it only grows after a turn succeeds.
type ChatSession struct {
	gen     Generator
	model   models.Model
	mu      sync.RWMutex // Protects history
	history []models.Content
}

// NewChatSession creates a session that sends through gen
func NewChatSession(gen Generator, model models.Model) *ChatSession {
	return &ChatSession{
		gen:   gen,
		model: model,
	}
}

// SendMessage sends a message in the chat session and updates context
func (s *ChatSession) SendMessage(ctx context.Context, prompt string) (*models.ModelOutput, error) {
	// Read current state with read lock
	s.mu.RLock()
	opts := &GenerateOptions{
		Model:   s.model,
		History: models.CopyHistory(s.history), // Copy to avoid race
	}
	s.mu.RUnlock()

	output, err := s.gen.GenerateContent(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.history = append(s.history,
		models.TextContent(models.RoleUser, prompt),
		models.TextContent(models.RoleModel, output.Text()),
	)
	s.mu.Unlock()

	return output, nil
}

// History returns a copy of the turns exchanged so far
func (s *ChatSession) History() []models.Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CopyHistory(s.history)
}

// SetHistory replaces the history when a saved conversation is resumed
func (s *ChatSession) SetHistory(history []models.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = models.CopyHistory(history)
}
