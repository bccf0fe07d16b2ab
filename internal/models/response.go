package models

// Candidate represents a single response candidate from Gemini
type Candidate struct {
	Text         string
	Thoughts     string // Only populated for thinking models
	FinishReason string
}

// Usage holds the token accounting reported with a response
type Usage struct {
	PromptTokens     int64
	CandidatesTokens int64
	TotalTokens      int64
}

// ModelOutput represents the complete API response from Gemini
type ModelOutput struct {
	Model       string
	Candidates  []Candidate
	Chosen      int // Index of selected candidate
	BlockReason string
	Usage       Usage
}

// Text returns the chosen candidate's text
func (m *ModelOutput) Text() string {
	if c := m.ChosenCandidate(); c != nil {
		return c.Text
	}
	return ""
}

// Thoughts returns the chosen candidate's thoughts
func (m *ModelOutput) Thoughts() string {
	if c := m.ChosenCandidate(); c != nil {
		return c.Thoughts
	}
	return ""
}

// ChosenCandidate returns a pointer to the chosen candidate
func (m *ModelOutput) ChosenCandidate() *Candidate {
	if m == nil || len(m.Candidates) == 0 {
		return nil
	}
	if m.Chosen < 0 || m.Chosen >= len(m.Candidates) {
		return &m.Candidates[0]
	}
	return &m.Candidates[m.Chosen]
}
