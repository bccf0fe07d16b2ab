// Package conversation implements the multi-turn chat controller.
package conversation

import "github.com/oklog/ulid/v2"

// Author identifies who produced a message
type Author string

const (
	AuthorUser  Author = "user"
	AuthorAgent Author = "agent"
	AuthorError Author = "error"
)

// Message is one entry of the transcript.
// Only user messages awaiting a reply are ever Pending.
type Message struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Author  Author `json:"author"`
	Pending bool   `json:"pending"`
}

func newMessage(author Author, text string, pending bool) Message {
	return Message{
		ID:      ulid.Make().String(),
		Text:    text,
		Author:  author,
		Pending: pending,
	}
}

// Status is the controller's turn state
type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingResponse
)

func (s Status) String() string {
	switch s {
	case StatusAwaitingResponse:
		return "awaiting_response"
	default:
		return "idle"
	}
}

// Conversation is an immutable snapshot of the transcript.
// Messages are in display order.
type Conversation struct {
	Messages []Message
	Status   Status
}

// Pending returns the message awaiting a reply, if any
func (c Conversation) Pending() (Message, bool) {
	for _, m := range c.Messages {
		if m.Pending {
			return m, true
		}
	}
	return Message{}, false
}

// Len returns the number of messages
func (c Conversation) Len() int {
	return len(c.Messages)
}

// Last returns the most recent message
func (c Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// with returns a copy of c with msgs appended. The original is left intact
// so earlier snapshots never change under a reader.
func (c Conversation) with(msgs ...Message) Conversation {
	out := make([]Message, 0, len(c.Messages)+len(msgs))
	out = append(out, c.Messages...)
	out = append(out, msgs...)
	return Conversation{Messages: out, Status: c.Status}
}

// indexOf returns the position of the message with id, or -1
func (c Conversation) indexOf(id string) int {
	for i, m := range c.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}
