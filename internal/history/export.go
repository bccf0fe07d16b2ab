package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExportFormat represents the format for exporting conversations
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat accepts "md", "markdown" or "json"
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (use markdown or json)", s)
}

// Export renders a conversation in the given format
func (s *Store) Export(id string, format ExportFormat, includeThoughts bool) ([]byte, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return nil, err
	}
	if format == ExportFormatJSON {
		return ToJSON(conv, includeThoughts)
	}
	return []byte(ToMarkdown(conv, includeThoughts)), nil
}

// ToMarkdown renders a conversation as Markdown
func ToMarkdown(conv *Conversation, includeThoughts bool) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(conv.Title)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "**Model:** %s\n", conv.Model)
	fmt.Fprintf(&sb, "**Created:** %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Messages:** %d\n\n---\n\n", len(conv.Messages))

	for i, msg := range conv.Messages {
		role := "You"
		if msg.Role == RoleModel {
			role = "Gemini"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		if !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, " (%s)", msg.Timestamp.Format("15:04:05"))
		}
		sb.WriteString("\n\n")

		if includeThoughts && msg.Thoughts != "" {
			sb.WriteString("<details>\n<summary>Thinking</summary>\n\n")
			sb.WriteString(msg.Thoughts)
			sb.WriteString("\n\n</details>\n\n")
		}

		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if i < len(conv.Messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

// ToJSON renders a conversation as indented JSON
func ToJSON(conv *Conversation, includeThoughts bool) ([]byte, error) {
	out := *conv
	out.Messages = make([]Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	if !includeThoughts {
		for i := range out.Messages {
			out.Messages[i].Thoughts = ""
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// SearchResult represents a search match in conversations
type SearchResult struct {
	Conversation *Conversation
	MatchSnippet string // Snippet where the term was found
	MatchField   string // "title" or "content"
	MatchIndex   int    // Message index for content matches, -1 for title
}

// SearchConversations searches titles and optionally message content
func (s *Store) SearchConversations(query string, searchContent bool) ([]*SearchResult, error) {
	conversations, err := s.ListConversations()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var results []*SearchResult

	for _, conv := range conversations {
		if strings.Contains(strings.ToLower(conv.Title), queryLower) {
			results = append(results, &SearchResult{
				Conversation: conv,
				MatchSnippet: conv.Title,
				MatchField:   "title",
				MatchIndex:   -1,
			})
			continue
		}

		if !searchContent {
			continue
		}
		for i, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), queryLower) {
				results = append(results, &SearchResult{
					Conversation: conv,
					MatchSnippet: extractSnippet(msg.Content, query, 80),
					MatchField:   "content",
					MatchIndex:   i,
				})
				break // One match per conversation
			}
		}
	}

	return results, nil
}

// extractSnippet cuts maxLen bytes around the first occurrence of query
func extractSnippet(content, query string, maxLen int) string {
	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx == -1 || len(content) <= maxLen {
		if len(content) > maxLen {
			return content[:maxLen] + "..."
		}
		return content
	}

	half := maxLen / 2
	start := max(0, idx-half)
	end := min(len(content), start+maxLen)
	if end-start < maxLen {
		start = max(0, end-maxLen)
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

// FormatRelativeTime formats t relative to now, e.g. "2h ago" or "yesterday"
func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
