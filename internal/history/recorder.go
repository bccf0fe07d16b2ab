package history

import "sync"

// Recorder appends chat turns to one transcript, creating it on the first
// turn. Restart makes the next turn open a new transcript.
type Recorder struct {
	store *Store
	model string

	mu     sync.Mutex
	convID string
}

// NewRecorder creates a recorder writing to store
func NewRecorder(store *Store, model string) *Recorder {
	return &Recorder{store: store, model: model}
}

// RecordTurn stores one completed exchange
func (r *Recorder) RecordTurn(userText, agentText, thoughts string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.convID == "" {
		conv, err := r.store.CreateConversation(r.model)
		if err != nil {
			return err
		}
		r.convID = conv.ID
	}

	if err := r.store.AddMessage(r.convID, RoleUser, userText, ""); err != nil {
		return err
	}
	return r.store.AddMessage(r.convID, RoleModel, agentText, thoughts)
}

// Restart detaches from the current transcript
func (r *Recorder) Restart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convID = ""
}

// Continue makes later turns append to the existing transcript id
func (r *Recorder) Continue(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convID = id
}

// ConversationID returns the transcript being written, if any
func (r *Recorder) ConversationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.convID
}
