package study

import (
	"strings"

	"knowledgegpt-backend/internal/models"
)

// WarningThreshold is the score below which a conversation is flagged.
const WarningThreshold = 40

// DefaultKeywords are the terms that mark a message as unsafe.
var DefaultKeywords = []string{"kill", "hate", "hack", "bomb", "attack", "explode", "homicide"}

// SafetyReport is the result of scoring a conversation.
type SafetyReport struct {
	Score          int  `json:"score"`
	Unsafe         int  `json:"unsafe"`
	UnsafeMessages int  `json:"unsafe_messages"`
	TotalMessages  int  `json:"total_messages"`
	Warning        bool `json:"warning"`
}

// Scorer rates how safe a conversation is on a 0-100 scale.
type Scorer interface {
	Score(messages []models.Message) SafetyReport
}

// KeywordScorer counts messages containing any keyword as a case-insensitive
// substring. Substring matching means "skill" counts as a hit for "kill".
type KeywordScorer struct {
	keywords []string
}

func NewKeywordScorer(keywords ...string) *KeywordScorer {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &KeywordScorer{keywords: lowered}
}

// Score returns 100 - floor(100*unsafe/total), or 100 for an empty conversation.
func (s *KeywordScorer) Score(messages []models.Message) SafetyReport {
	report := SafetyReport{Score: 100, TotalMessages: len(messages)}
	if len(messages) == 0 {
		return report
	}

	for _, m := range messages {
		if s.flagged(m.Content) {
			report.UnsafeMessages++
		}
	}

	report.Score = 100 - (100*report.UnsafeMessages)/report.TotalMessages
	report.Unsafe = 100 - report.Score
	report.Warning = report.Score < WarningThreshold
	return report
}

func (s *KeywordScorer) flagged(content string) bool {
	content = strings.ToLower(content)
	for _, k := range s.keywords {
		if strings.Contains(content, k) {
			return true
		}
	}
	return false
}
