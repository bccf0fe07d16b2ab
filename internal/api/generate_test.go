package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/models"
)

// urlErrorDoer fails the way the transport does, quoting the request URL
type urlErrorDoer struct{}

func (urlErrorDoer) Do(req *fhttp.Request) (*fhttp.Response, error) {
	return nil, &url.Error{Op: "Post", URL: req.URL.String(), Err: errors.New("dial tcp 127.0.0.1:1: connection refused")}
}

func TestBuildPayload(t *testing.T) {
	t.Run("text only", func(t *testing.T) {
		body, err := buildPayload("What is Go?", nil, nil)
		if err != nil {
			t.Fatalf("buildPayload() error: %v", err)
		}
		parsed := gjson.ParseBytes(body)
		if n := len(parsed.Get("contents").Array()); n != 1 {
			t.Fatalf("contents length = %d, want 1", n)
		}
		if role := parsed.Get("contents.0.role").String(); role != "user" {
			t.Errorf("role = %s", role)
		}
		if text := parsed.Get("contents.0.parts.0.text").String(); text != "What is Go?" {
			t.Errorf("text = %s", text)
		}
	})

	t.Run("images precede text", func(t *testing.T) {
		img := models.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}}
		body, err := buildPayload("describe", []models.Blob{img, {Data: []byte{4}}}, nil)
		if err != nil {
			t.Fatalf("buildPayload() error: %v", err)
		}
		parts := gjson.GetBytes(body, "contents.0.parts").Array()
		if len(parts) != 3 {
			t.Fatalf("parts length = %d, want 3", len(parts))
		}
		if mt := parts[0].Get("inlineData.mimeType").String(); mt != "image/png" {
			t.Errorf("first mimeType = %s", mt)
		}
		if data := parts[0].Get("inlineData.data").String(); data != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
			t.Errorf("data = %s", data)
		}
		if mt := parts[1].Get("inlineData.mimeType").String(); mt != "image/jpeg" {
			t.Errorf("missing mime type should default to image/jpeg, got %s", mt)
		}
		if parts[2].Get("text").String() != "describe" {
			t.Errorf("last part should be the prompt, got %s", parts[2].Raw)
		}
	})

	t.Run("history first", func(t *testing.T) {
		history := []models.Content{
			models.TextContent(models.RoleUser, "Hello, I have 2 dogs in my house."),
			models.TextContent(models.RoleModel, "Great to meet you."),
			{Role: models.RoleUser}, // no parts, skipped
		}
		body, err := buildPayload("How many paws?", nil, history)
		if err != nil {
			t.Fatalf("buildPayload() error: %v", err)
		}
		contents := gjson.GetBytes(body, "contents").Array()
		if len(contents) != 3 {
			t.Fatalf("contents length = %d, want 3", len(contents))
		}
		wantRoles := []string{"user", "model", "user"}
		for i, c := range contents {
			if c.Get("role").String() != wantRoles[i] {
				t.Errorf("contents[%d].role = %s, want %s", i, c.Get("role").String(), wantRoles[i])
			}
		}
		if contents[2].Get("parts.0.text").String() != "How many paws?" {
			t.Errorf("last turn = %s", contents[2].Raw)
		}
	})
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantText   string
		wantKind   apierrors.Kind
		wantErrIs  error
		wantModel  string
		wantTokens int64
	}{
		{
			name:       "joins text parts",
			body:       okBody,
			wantText:   "Hello world",
			wantModel:  "gemini-2.5-flash-001",
			wantTokens: 5,
		},
		{
			name:      "thought parts kept apart",
			body:      `{"candidates":[{"content":{"parts":[{"text":"thinking...","thought":true},{"text":"answer"}]}}]}`,
			wantText:  "answer",
			wantModel: "test-model",
		},
		{
			name:     "invalid json",
			body:     `{"candidates":`,
			wantKind: apierrors.KindParse,
		},
		{
			name:      "no candidates",
			body:      `{}`,
			wantKind:  apierrors.KindEmpty,
			wantErrIs: apierrors.ErrNoContent,
		},
		{
			name:      "empty candidate list",
			body:      `{"candidates":[]}`,
			wantKind:  apierrors.KindEmpty,
			wantErrIs: apierrors.ErrNoContent,
		},
		{
			name:     "candidates not an array",
			body:     `{"candidates":"nope"}`,
			wantKind: apierrors.KindParse,
		},
		{
			name:      "whitespace-only text",
			body:      `{"candidates":[{"content":{"parts":[{"text":"   "}]},"finishReason":"STOP"}]}`,
			wantKind:  apierrors.KindEmpty,
			wantErrIs: apierrors.ErrNoContent,
		},
		{
			name:     "prompt blocked",
			body:     `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantKind: apierrors.KindBlocked,
		},
		{
			name:     "candidate withheld",
			body:     `{"candidates":[{"finishReason":"RECITATION"}]}`,
			wantKind: apierrors.KindBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := parseResponse([]byte(tt.body), "test-model")
			if tt.wantKind != apierrors.KindUnknown {
				if err == nil {
					t.Fatalf("expected error of kind %v", tt.wantKind)
				}
				if got := apierrors.GetKind(err); got != tt.wantKind {
					t.Errorf("kind = %v, want %v", got, tt.wantKind)
				}
				if tt.wantErrIs != nil && !errors.Is(err, tt.wantErrIs) {
					t.Errorf("errors.Is(%v, %v) = false", err, tt.wantErrIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.Text() != tt.wantText {
				t.Errorf("Text() = %q, want %q", output.Text(), tt.wantText)
			}
			if output.Model != tt.wantModel {
				t.Errorf("Model = %s, want %s", output.Model, tt.wantModel)
			}
			if output.Usage.TotalTokens != tt.wantTokens {
				t.Errorf("TotalTokens = %d, want %d", output.Usage.TotalTokens, tt.wantTokens)
			}
		})
	}
}

func TestParseResponse_Thoughts(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"hmm","thought":true},{"text":"42"}]}}]}`
	output, err := parseResponse([]byte(body), "m")
	if err != nil {
		t.Fatal(err)
	}
	if output.Thoughts() != "hmm" {
		t.Errorf("Thoughts() = %q", output.Thoughts())
	}
}

func TestGenerateContent(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		doer := &fakeDoer{body: okBody}
		client := newTestClient(t, doer)

		output, err := client.GenerateContent(context.Background(), "Say hello", nil)
		if err != nil {
			t.Fatalf("GenerateContent() error: %v", err)
		}
		if output.Text() != "Hello world" {
			t.Errorf("Text() = %q", output.Text())
		}

		req := doer.lastRequest()
		if req.Method != "POST" {
			t.Errorf("method = %s", req.Method)
		}
		if req.URL.Host != "example.test" {
			t.Errorf("host = %s", req.URL.Host)
		}
		if req.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("path = %s", req.URL.Path)
		}
		if req.Header.Get(models.APIKeyHeader) != "test-key" {
			t.Errorf("%s = %s", models.APIKeyHeader, req.Header.Get(models.APIKeyHeader))
		}
		if req.URL.RawQuery != "" {
			t.Errorf("query = %s, want none", req.URL.RawQuery)
		}
		if req.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %s", req.Header.Get("Content-Type"))
		}
		if got := gjson.Get(doer.lastPayload(), "contents.0.parts.0.text").String(); got != "Say hello" {
			t.Errorf("payload prompt = %s", got)
		}
	})

	t.Run("model override", func(t *testing.T) {
		doer := &fakeDoer{body: okBody}
		client := newTestClient(t, doer)

		_, err := client.GenerateContent(context.Background(), "hi", &GenerateOptions{Model: models.ModelPro})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(doer.lastRequest().URL.Path, models.ModelPro.Name) {
			t.Errorf("path = %s, want model %s", doer.lastRequest().URL.Path, models.ModelPro.Name)
		}
	})

	t.Run("empty prompt", func(t *testing.T) {
		doer := &fakeDoer{body: okBody}
		client := newTestClient(t, doer)

		_, err := client.GenerateContent(context.Background(), "  \n", nil)
		if !errors.Is(err, apierrors.ErrEmptyPrompt) {
			t.Errorf("expected ErrEmptyPrompt, got %v", err)
		}
		if doer.lastRequest() != nil {
			t.Error("no request should be sent for an empty prompt")
		}
	})

	t.Run("api error", func(t *testing.T) {
		doer := &fakeDoer{status: 400, body: `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`}
		client := newTestClient(t, doer)

		_, err := client.GenerateContent(context.Background(), "hi", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if apierrors.GetHTTPStatus(err) != 400 {
			t.Errorf("status = %d", apierrors.GetHTTPStatus(err))
		}
		if !strings.Contains(err.Error(), "API key not valid") {
			t.Errorf("error = %v", err)
		}
		if strings.Contains(apierrors.GetEndpoint(err), "test-key") {
			t.Error("endpoint must not carry the API key")
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		client := newTestClient(t, &fakeDoer{status: 429, body: `{}`})
		_, err := client.GenerateContent(context.Background(), "hi", nil)
		if !apierrors.IsRateLimitError(err) {
			t.Errorf("expected rate limit error, got %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		client := newTestClient(t, &fakeDoer{err: errors.New("connection refused")})
		_, err := client.GenerateContent(context.Background(), "hi", nil)
		if !apierrors.IsNetworkError(err) {
			t.Errorf("expected network error, got %v", err)
		}
	})

	t.Run("transport failure does not expose the key", func(t *testing.T) {
		client := newTestClient(t, urlErrorDoer{})
		_, err := client.GenerateContent(context.Background(), "hi", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if msg := apierrors.Describe(err); strings.Contains(msg, "test-key") {
			t.Errorf("Describe() leaks the API key: %s", msg)
		}
		if !strings.Contains(apierrors.Describe(err), "connection refused") {
			t.Errorf("Describe() = %s", apierrors.Describe(err))
		}
	})

	t.Run("percent in base URL", func(t *testing.T) {
		doer := &fakeDoer{body: okBody}
		client := newTestClient(t, doer, WithBaseURL("https://example.test/p%25x"))

		if _, err := client.GenerateContent(context.Background(), "hi", nil); err != nil {
			t.Fatal(err)
		}
		if got := doer.lastRequest().URL.Path; got != "/p%x/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("path = %s", got)
		}
	})

	t.Run("cancelled before send", func(t *testing.T) {
		doer := &fakeDoer{body: okBody}
		client := newTestClient(t, doer)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.GenerateContent(ctx, "hi", nil)
		if apierrors.GetKind(err) != apierrors.KindCanceled {
			t.Errorf("kind = %v, want canceled", apierrors.GetKind(err))
		}
		if doer.lastRequest() != nil {
			t.Error("no request should be sent after cancellation")
		}
	})
}
