package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/models"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics
const maxErrorBody = 4096

// GenerateOptions contains options for content generation
type GenerateOptions struct {
	Model   models.Model
	Images  []models.Blob    // Decoded, already downscaled image attachments
	History []models.Content // Prior turns, oldest first
}

// Request body schema for generateContent
type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

// GenerateContent sends a prompt to Gemini and returns the response
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, opts *GenerateOptions) (*models.ModelOutput, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apierrors.ErrEmptyPrompt
	}

	if c.IsClosed() {
		return nil, apierrors.ErrClientClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, apierrors.NewNetworkError(models.GenerateContentPath, err)
	}

	model := c.GetModel()
	var images []models.Blob
	var history []models.Content
	if opts != nil {
		if opts.Model.Name != "" {
			model = opts.Model
		}
		images = opts.Images
		history = opts.History
	}

	body, err := buildPayload(prompt, images, history)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	// The key goes in a header; transport errors quote the URL verbatim
	endpoint := c.baseURL + fmt.Sprintf(models.GenerateContentPath, url.PathEscape(model.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range models.DefaultHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set(models.APIKeyHeader, c.apiKey)

	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.Noticef("generateContent model=%s images=%d history=%d\n", model.Name, len(images), len(history))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Prefer the context's reason when the caller gave up
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, apierrors.NewNetworkError(endpointLabel(model), err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := gjson.GetBytes(errorBody, PathErrorMessage).String()
		return nil, apierrors.NewAPIError(resp.StatusCode, endpointLabel(model), message, string(errorBody))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewNetworkError(endpointLabel(model), err)
	}

	output, err := parseResponse(raw, model.Name)
	if err != nil {
		return nil, err
	}

	if c.verbose {
		ancli.Noticef("[verbose] %s answered in %s (%d tokens)\n", output.Model, time.Since(start).Round(time.Millisecond), output.Usage.TotalTokens)
	}

	return output, nil
}

// endpointLabel names the endpoint for diagnostics without leaking the API key
func endpointLabel(model models.Model) string {
	return fmt.Sprintf(models.GenerateContentPath, model.Name)
}

// buildPayload creates the JSON request body. History comes first, then the
// new user turn with images ahead of the prompt text.
func buildPayload(prompt string, images []models.Blob, history []models.Content) ([]byte, error) {
	req := generateRequest{
		Contents: make([]content, 0, len(history)+1),
	}

	for _, h := range history {
		c := content{Role: string(h.Role)}
		for _, p := range h.Parts {
			c.Parts = append(c.Parts, toPart(p))
		}
		if len(c.Parts) == 0 {
			continue
		}
		req.Contents = append(req.Contents, c)
	}

	turn := content{Role: string(models.RoleUser)}
	for _, img := range images {
		turn.Parts = append(turn.Parts, toPart(models.Part{InlineData: &img}))
	}
	turn.Parts = append(turn.Parts, part{Text: prompt})
	req.Contents = append(req.Contents, turn)

	if misc.Truthy(os.Getenv("DEBUG")) && len(images) == 0 {
		ancli.Noticef("payload: %v\n", debug.IndentedJsonFmt(req))
	}

	return json.Marshal(req)
}

func toPart(p models.Part) part {
	if p.InlineData != nil {
		mimeType := p.InlineData.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		return part{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
		}}
	}
	return part{Text: p.Text}
}

// parseResponse parses a generateContent response
func parseResponse(body []byte, modelName string) (*models.ModelOutput, error) {
	if !gjson.ValidBytes(body) {
		return nil, apierrors.NewParseError("response is not valid JSON")
	}

	parsed := gjson.ParseBytes(body)

	if reason := parsed.Get(PathBlockReason).String(); reason != "" {
		return nil, apierrors.NewBlockedError(reason)
	}

	candidateList := parsed.Get(PathCandidates)
	if !candidateList.Exists() {
		return nil, apierrors.NewEmptyError("")
	}
	if !candidateList.IsArray() {
		return nil, apierrors.NewParseError("candidates is not an array")
	}

	var candidates []models.Candidate
	candidateList.ForEach(func(_, candValue gjson.Result) bool {
		var text, thoughts strings.Builder
		candValue.Get(PathCandParts).ForEach(func(_, partValue gjson.Result) bool {
			if partValue.Get(PathPartThought).Bool() {
				thoughts.WriteString(partValue.Get(PathPartText).String())
			} else {
				text.WriteString(partValue.Get(PathPartText).String())
			}
			return true
		})

		candidates = append(candidates, models.Candidate{
			Text:         text.String(),
			Thoughts:     thoughts.String(),
			FinishReason: candValue.Get(PathCandFinishReason).String(),
		})
		return true
	})

	if len(candidates) == 0 {
		return nil, apierrors.NewEmptyError("")
	}

	output := &models.ModelOutput{
		Model:      modelName,
		Candidates: candidates,
		Chosen:     0,
		Usage: models.Usage{
			PromptTokens:     parsed.Get(PathUsagePrompt).Int(),
			CandidatesTokens: parsed.Get(PathUsageCandidates).Int(),
			TotalTokens:      parsed.Get(PathUsageTotal).Int(),
		},
	}
	if v := parsed.Get(PathModelVersion).String(); v != "" {
		output.Model = v
	}

	chosen := output.ChosenCandidate()
	if strings.TrimSpace(chosen.Text) == "" {
		if blockedFinishReasons[chosen.FinishReason] {
			return nil, apierrors.NewBlockedError(chosen.FinishReason)
		}
		return nil, apierrors.NewEmptyError("")
	}

	return output, nil
}
