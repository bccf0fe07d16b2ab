package api

import (
	"context"
	"sync"

	"github.com/diogo/geminiworkshop/internal/models"
)

// MockGeminiClient is a mock implementation of GeminiClientInterface for testing.
// GenerateFunc, when set, takes precedence over the canned return values.
type MockGeminiClient struct {
	Model              models.Model
	GenerateContentVal *models.ModelOutput
	GenerateContentErr error
	GenerateFunc       func(ctx context.Context, prompt string, opts *GenerateOptions) (*models.ModelOutput, error)

	mu          sync.Mutex
	CloseCalled bool
	Calls       []MockCall
}

// MockCall records one GenerateContent invocation
type MockCall struct {
	Prompt  string
	Model   models.Model
	Images  int
	History []models.Content
}

// Ensure MockGeminiClient implements GeminiClientInterface
var _ GeminiClientInterface = (*MockGeminiClient)(nil)

// NewMockReply returns a mock that always answers with text
func NewMockReply(text string) *MockGeminiClient {
	return &MockGeminiClient{
		Model:              models.DefaultModel,
		GenerateContentVal: &models.ModelOutput{Model: models.DefaultModel.Name, Candidates: []models.Candidate{{Text: text}}},
	}
}

func (m *MockGeminiClient) GenerateContent(ctx context.Context, prompt string, opts *GenerateOptions) (*models.ModelOutput, error) {
	call := MockCall{Prompt: prompt}
	if opts != nil {
		call.Model = opts.Model
		call.Images = len(opts.Images)
		call.History = models.CopyHistory(opts.History)
	}
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, opts)
	}
	return m.GenerateContentVal, m.GenerateContentErr
}

// CallCount returns how many times GenerateContent ran
func (m *MockGeminiClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent invocation
func (m *MockGeminiClient) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return MockCall{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}

func (m *MockGeminiClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
}
