package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

func TestHuggingFaceSummarizer(t *testing.T) {
	var got hfSummaryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/Falconsai/text_summarization", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode([]hfSummary{{SummaryText: "first"}, {SummaryText: "second"}})
	}))
	defer srv.Close()

	s := NewHuggingFaceSummarizer(srv.URL+"/models/", "Falconsai/text_summarization", "hf-token")
	out, err := s.Summarize(context.Background(), "lecture text", 50, 500)
	require.NoError(t, err)
	assert.Equal(t, "first", out)
	assert.Equal(t, hfSummaryRequest{
		Inputs:     "lecture text",
		Parameters: hfSummaryParameters{MinLength: 50, MaxLength: 500, DoSample: false},
	}, got)
}

func TestHuggingFaceSummarizer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"model loading", http.StatusServiceUnavailable, `{"error":"Model is loading","estimated_time":20}`, "loading"},
		{"api error", http.StatusBadRequest, `{"error":"bad input"}`, "bad input"},
		{"opaque error", http.StatusBadGateway, `<html></html>`, "status 502"},
		{"no candidates", http.StatusOK, `[]`, "no candidates"},
		{"wrong shape", http.StatusOK, `{"summary_text":"x"}`, "unexpected"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHuggingFaceSummarizer(srv.URL, "m", "t").Summarize(context.Background(), "x", 1, 2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestGenAISummarizer(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)

		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Contents[0].Parts[0].Text

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  A concise summary. "}]}}]}`))
	}))
	defer srv.Close()

	s, err := newGenAISummarizer(context.Background(), &genai.ClientConfig{
		APIKey:      "test",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	}, "gemini-test", zap.NewNop())
	require.NoError(t, err)

	out, err := s.Summarize(context.Background(), "the lecture", 50, 500)
	require.NoError(t, err)
	assert.Equal(t, "A concise summary.", out)
	assert.Contains(t, prompt, "at least 50 and at most 500 words")
	assert.Contains(t, prompt, "the lecture")
}
