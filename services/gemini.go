package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"
)

type LLMResponse struct {
	Response         string `json:"response"`
	InputTokenCount  int32  `json:"input_token_count"`
	OutputTokenCount int32  `json:"output_token_count"`
	TotalTokenCount  int32  `json:"total_token_count"`
}

// AnalysisProvider runs the structured outfit-analysis request. One
// implementation rides on Gemini, one on the chat provider; the worker and
// handler only see this interface.
type AnalysisProvider interface {
	Configured() bool
	AnalyzeOutfit(ctx context.Context, imageBase64, mediaType, prompt string) (*LLMResponse, error)
}

type GeminiAnalysisService struct {
	APIKey string
	Model  string
}

func NewGeminiAnalysisService(cfg *Config) *GeminiAnalysisService {
	return &GeminiAnalysisService{
		APIKey: cfg.GoogleAPIKey,
		Model:  "gemini-2.5-flash-lite-preview-06-17",
	}
}

func (s *GeminiAnalysisService) Configured() bool {
	return s.APIKey != ""
}

func (s *GeminiAnalysisService) AnalyzeOutfit(ctx context.Context, imageBase64, mediaType, prompt string) (*LLMResponse, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid image payload: %v", err)
	}

	parts := []*genai.Part{
		{
			InlineData: &genai.Blob{
				MIMEType: mediaType,
				Data:     imageData,
			},
		},
		{Text: prompt},
	}

	result, err := client.Models.GenerateContent(ctx, s.Model, []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		CandidateCount:   1,
		MaxOutputTokens:  int32(AnalysisMaxTokens()),
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason, result.PromptFeedback.BlockReasonMessage)
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}

	var inputTokenCount int32
	var outputTokenCount int32
	var totalTokenCount int32
	if result.UsageMetadata != nil {
		inputTokenCount = result.UsageMetadata.PromptTokenCount
		outputTokenCount = result.UsageMetadata.CandidatesTokenCount
		totalTokenCount = result.UsageMetadata.TotalTokenCount
	} else {
		fmt.Println("UsageMetadata is nil!")
	}

	return &LLMResponse{
		Response:         result.Text(),
		InputTokenCount:  inputTokenCount,
		OutputTokenCount: outputTokenCount,
		TotalTokenCount:  totalTokenCount,
	}, nil
}

// AnthropicAnalysisService runs the same analysis request through the chat
// provider on the cheaper model variant.
type AnthropicAnalysisService struct {
	Chat ChatProvider
}

func (s *AnthropicAnalysisService) Configured() bool {
	return s.Chat != nil && s.Chat.Configured()
}

func (s *AnthropicAnalysisService) AnalyzeOutfit(ctx context.Context, imageBase64, mediaType, prompt string) (*LLMResponse, error) {
	envelope, err := s.Chat.Complete(ctx, ChatRequest{
		Model:       AnalysisModel,
		ImageBase64: imageBase64,
		MediaType:   mediaType,
		Prompt:      prompt,
		MaxTokens:   AnalysisMaxTokens(),
	})
	if err != nil {
		return nil, err
	}
	text, usage, err := ExtractEnvelopeText(envelope)
	if err != nil {
		return nil, err
	}
	return &LLMResponse{
		Response:         text,
		InputTokenCount:  usage.InputTokens,
		OutputTokenCount: usage.OutputTokens,
		TotalTokenCount:  usage.InputTokens + usage.OutputTokens,
	}, nil
}
