package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceSummarizer calls a summarization model on the Hugging Face
// Inference API.
type HuggingFaceSummarizer struct {
	token      string
	endpoint   string
	httpClient *http.Client
}

func NewHuggingFaceSummarizer(baseURL, model, token string) *HuggingFaceSummarizer {
	return &HuggingFaceSummarizer{
		token:      token,
		endpoint:   strings.TrimRight(baseURL, "/") + "/" + model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type hfSummaryRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters hfSummaryParameters `json:"parameters"`
}

type hfSummaryParameters struct {
	MinLength int  `json:"min_length"`
	MaxLength int  `json:"max_length"`
	DoSample  bool `json:"do_sample"`
}

type hfSummary struct {
	SummaryText string `json:"summary_text"`
}

type hfError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

func (s *HuggingFaceSummarizer) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	payload, err := json.Marshal(hfSummaryRequest{
		Inputs:     text,
		Parameters: hfSummaryParameters{MinLength: minLength, MaxLength: maxLength, DoSample: false},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarization request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read summarization response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr hfError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.EstimatedTime > 0 {
				return "", fmt.Errorf("summarization model is loading (about %.0fs): %s", apiErr.EstimatedTime, apiErr.Error)
			}
			return "", fmt.Errorf("summarization API error (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("summarization API error (status %d)", resp.StatusCode)
	}

	var summaries []hfSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return "", fmt.Errorf("unexpected summarization response: %w", err)
	}
	if len(summaries) == 0 {
		return "", fmt.Errorf("summarization API returned no candidates")
	}
	return summaries[0].SummaryText, nil
}
