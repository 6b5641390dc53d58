package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GenAISummarizer summarizes with a Gemini model through the unified
// google.golang.org/genai SDK.
type GenAISummarizer struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGenAISummarizer(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GenAISummarizer, error) {
	return newGenAISummarizer(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, logger)
}

func newGenAISummarizer(ctx context.Context, cfg *genai.ClientConfig, model string, logger *zap.Logger) (*GenAISummarizer, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAISummarizer{client: client, model: model, logger: logger.Named("genai")}, nil
}

func buildSummaryPrompt(text string, minLength, maxLength int) string {
	return fmt.Sprintf("Summarize the following text in plain prose. "+
		"Use at least %d and at most %d words. "+
		"Return only the summary.\n\nTEXT:\n%s", minLength, maxLength, text)
}

func (s *GenAISummarizer) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	temperature := float32(0.2)
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(buildSummaryPrompt(text, minLength, maxLength)),
		&genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: int32(maxLength * 2),
		})
	if err != nil {
		return "", fmt.Errorf("GenAI API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("GenAI returned no candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			out.WriteString(part.Text)
		}
	}
	s.logger.Debug("summary generated", zap.Int("input_chars", len(text)), zap.Int("summary_chars", out.Len()))
	return strings.TrimSpace(out.String()), nil
}
