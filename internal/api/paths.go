package api

// GJSON paths for extracting values from generateContent responses.
const (
	PathCandidates   = "candidates"
	PathBlockReason  = "promptFeedback.blockReason"
	PathErrorMessage = "error.message"
	PathErrorStatus  = "error.status"

	// Candidate paths (relative to a candidate object)
	PathCandParts        = "content.parts"
	PathCandFinishReason = "finishReason"

	// Part paths (relative to a part object)
	PathPartText    = "text"
	PathPartThought = "thought"

	// Usage paths
	PathUsagePrompt     = "usageMetadata.promptTokenCount"
	PathUsageCandidates = "usageMetadata.candidatesTokenCount"
	PathUsageTotal      = "usageMetadata.totalTokenCount"
	PathModelVersion    = "modelVersion"
)

// finish reasons that mean the candidate was withheld by a filter
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
	"IMAGE_SAFETY":       true,
}
