// Package query implements the single-shot text and text+image controllers.
package query

// State is the flat, serializable screen state of a query controller
type State struct {
	InputText    string `json:"input_text"`
	ResponseText string `json:"response_text"`
	IsLoading    bool   `json:"is_loading"`
	IsError      bool   `json:"is_error"`
}

// HasResponse reports whether a finished request left text to show
func (s State) HasResponse() bool {
	return !s.IsLoading && s.ResponseText != ""
}

// Variant selects the controller flavour and its snapshot key
type Variant int

const (
	VariantTextOnly Variant = iota
	VariantTextImage
)

// Snapshot keys
const (
	TextOnlyStateKey  = "text_only_state_key"
	TextImageStateKey = "text_image_state_key"
)

// Key returns the snapshot key for the variant
func (v Variant) Key() string {
	if v == VariantTextImage {
		return TextImageStateKey
	}
	return TextOnlyStateKey
}

func (v Variant) String() string {
	if v == VariantTextImage {
		return "text+image"
	}
	return "text"
}

// stateSchema rejects anything that is not the flat State record
const stateSchema = `{
	"type": "object",
	"properties": {
		"input_text": {"type": "string"},
		"response_text": {"type": "string"},
		"is_loading": {"type": "boolean"},
		"is_error": {"type": "boolean"}
	},
	"required": ["input_text", "response_text", "is_loading", "is_error"],
	"additionalProperties": false
}`
