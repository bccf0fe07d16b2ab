package models

// Role is the author of a history entry as the API names it
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Blob is inline binary data attached to a prompt
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one piece of a Content: text or inline data
type Part struct {
	Text       string
	InlineData *Blob
}

// Content represents one turn in the running history sent for multi-turn context
type Content struct {
	Role  Role
	Parts []Part
}

// TextContent builds a single-part text Content
func TextContent(role Role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// Text concatenates the text parts of the content
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		out += p.Text
	}
	return out
}

// CopyHistory returns a deep-enough copy of a history slice so callers can
// hand it to a request without sharing the backing array.
func CopyHistory(h []Content) []Content {
	if h == nil {
		return nil
	}
	out := make([]Content, len(h))
	for i, c := range h {
		parts := make([]Part, len(c.Parts))
		copy(parts, c.Parts)
		out[i] = Content{Role: c.Role, Parts: parts}
	}
	return out
}
