package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const anthropicVersion = "2023-06-01"

// Default model variants. The analysis path runs on the cheaper haiku tier.
const (
	RatingModel   = "claude-sonnet-4-20250514"
	AnalysisModel = "claude-3-5-haiku-20241022"
)

// ChatRequest is one multimodal message: an image block plus a text block.
type ChatRequest struct {
	Model       string
	ImageBase64 string
	MediaType   string
	Prompt      string
	MaxTokens   int
}

// ChatUsage mirrors the provider's usage object.
type ChatUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
}

// ChatProvider issues multimodal chat requests against the LLM provider.
// Complete returns the provider's raw response envelope: the rating proxy
// passes it through verbatim. Stream returns the raw upstream byte stream,
// which the caller re-frames through a StreamReframer.
type ChatProvider interface {
	Configured() bool
	Complete(ctx context.Context, req ChatRequest) ([]byte, error)
	Stream(ctx context.Context, req ChatRequest) (io.ReadCloser, error)
}

type AnthropicService struct {
	APIKey  string
	BaseURL string
	// one client with a deadline for single-shot calls, one without for
	// long-lived streams
	client       *http.Client
	streamClient *http.Client
}

func NewAnthropicService(cfg *Config) *AnthropicService {
	return &AnthropicService{
		APIKey:       cfg.AnthropicAPIKey,
		BaseURL:      cfg.AnthropicBaseURL,
		client:       &http.Client{Timeout: 60 * time.Second},
		streamClient: &http.Client{},
	}
}

func (s *AnthropicService) Configured() bool {
	return s.APIKey != ""
}

func (s *AnthropicService) buildPayload(req ChatRequest, stream bool) ([]byte, error) {
	payload := map[string]interface{}{
		"model":      req.Model,
		"max_tokens": req.MaxTokens,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "image",
						"source": map[string]string{
							"type":       "base64",
							"media_type": req.MediaType,
							"data":       req.ImageBase64,
						},
					},
					{
						"type": "text",
						"text": req.Prompt,
					},
				},
			},
		},
	}
	if stream {
		payload["stream"] = true
	}
	return json.Marshal(payload)
}

func (s *AnthropicService) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return httpReq, nil
}

// upstreamError extracts the provider's error message from a non-2xx body.
func upstreamError(statusCode int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("provider error (%d): %s", statusCode, envelope.Error.Message)
	}
	return fmt.Errorf("provider error (%d): %s", statusCode, string(body))
}

func (s *AnthropicService) Complete(ctx context.Context, req ChatRequest) ([]byte, error) {
	body, err := s.buildPayload(req, false)
	if err != nil {
		return nil, err
	}
	httpReq, err := s.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// Stream issues the same request with stream=true. The returned body is the
// provider's raw SSE stream; closing it abandons the upstream read.
func (s *AnthropicService) Stream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	body, err := s.buildPayload(req, true)
	if err != nil {
		return nil, err
	}
	httpReq, err := s.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	resp, err := s.streamClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, upstreamError(resp.StatusCode, respBody)
	}
	return resp.Body, nil
}

// ExtractEnvelopeText pulls content[0].text out of a raw response envelope.
// Used by the analysis path; the rating path never interprets the envelope.
func ExtractEnvelopeText(envelope []byte) (string, *ChatUsage, error) {
	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage ChatUsage `json:"usage"`
	}
	if err := json.Unmarshal(envelope, &parsed); err != nil {
		return "", nil, err
	}
	if len(parsed.Content) == 0 {
		return "", nil, fmt.Errorf("provider response has no content blocks")
	}
	return parsed.Content[0].Text, &parsed.Usage, nil
}
