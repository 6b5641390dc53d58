package services

import (
	"context"
	"fmt"
	"strings"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"knowledgegpt-backend/internal/models"
)

var preferredTranscriptLangs = []string{"en", "en-US", "en-GB"}

// YouTubeService resolves video URLs and fetches their caption text.
type YouTubeService struct {
	fetch  func(videoID string, languages []string) ([]string, error)
	logger *zap.Logger
}

func NewYouTubeService(logger *zap.Logger) *YouTubeService {
	api := ytapi.NewYouTubeTranscriptApi()
	return &YouTubeService{
		fetch: func(videoID string, languages []string) ([]string, error) {
			transcript, err := api.GetTranscript(videoID, languages)
			if err != nil {
				return nil, err
			}
			lines := make([]string, 0, len(transcript.Entries))
			for _, entry := range transcript.Entries {
				lines = append(lines, entry.Text)
			}
			return lines, nil
		},
		logger: logger.Named("youtube"),
	}
}

// Transcript accepts a full YouTube URL or a bare video id and returns the
// caption text as a single paragraph. English captions are preferred; any
// available language is used otherwise.
func (s *YouTubeService) Transcript(ctx context.Context, videoURL string) (string, error) {
	videoID, err := yt.ExtractVideoID(strings.TrimSpace(videoURL))
	if err != nil {
		return "", fmt.Errorf("%w: not a YouTube video URL: %v", models.ErrInvalidInput, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lines, err := s.fetch(videoID, preferredTranscriptLangs)
	if err != nil {
		s.logger.Debug("no English transcript, trying any language", zap.String("video_id", videoID), zap.Error(err))
		lines, err = s.fetch(videoID, nil)
		if err != nil {
			return "", fmt.Errorf("no subtitles available for video %s: %w", videoID, err)
		}
	}

	var fullText strings.Builder
	for _, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteString(" ")
		}
		fullText.WriteString(text)
	}
	if fullText.Len() == 0 {
		return "", fmt.Errorf("subtitle track for video %s is empty", videoID)
	}
	return fullText.String(), nil
}
