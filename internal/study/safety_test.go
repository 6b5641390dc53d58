package study

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"knowledgegpt-backend/internal/models"
)

func msgs(contents ...string) []models.Message {
	out := make([]models.Message, 0, len(contents))
	for i, c := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out = append(out, models.Message{Role: role, Content: c})
	}
	return out
}

func TestKeywordScorer_Score(t *testing.T) {
	scorer := NewKeywordScorer()

	tests := []struct {
		name       string
		messages   []models.Message
		wantScore  int
		wantUnsafe int
		warning    bool
	}{
		{"empty conversation", nil, 100, 0, false},
		{"all clean", msgs("hello", "hi there"), 100, 0, false},
		{"one of three flagged", msgs("I hate mondays", "sorry", "ok"), 67, 1, false},
		{"case insensitive", msgs("BOMB", "Attack"), 0, 2, true},
		{"substring match", msgs("new skill unlocked"), 0, 1, true},
		{"multiple hits count once", msgs("hack and attack", "fine"), 50, 1, false},
		{"below threshold", msgs("kill", "hate", "ok", "explode", "fine"), 40, 3, false},
		{"just below threshold", msgs("kill", "hate", "homicide", "ok", "explode", "fine", "bomb"), 29, 5, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report := scorer.Score(tc.messages)
			assert.Equal(t, tc.wantScore, report.Score)
			assert.Equal(t, tc.wantUnsafe, report.UnsafeMessages)
			assert.Equal(t, 100-tc.wantScore, report.Unsafe)
			assert.Equal(t, len(tc.messages), report.TotalMessages)
			assert.Equal(t, tc.warning, report.Warning)
		})
	}
}

func TestKeywordScorer_ScoreIsBounded(t *testing.T) {
	scorer := NewKeywordScorer()
	contents := []string{"kill", "ok", "hack", "hello", "bomb", "fine", "explode"}
	for n := 1; n <= len(contents); n++ {
		report := scorer.Score(msgs(contents[:n]...))
		assert.GreaterOrEqual(t, report.Score, 0)
		assert.LessOrEqual(t, report.Score, 100)
	}
}

func TestNewKeywordScorer_CustomKeywords(t *testing.T) {
	scorer := NewKeywordScorer(" Cheat ", "")
	report := scorer.Score(msgs("how do I cheat", "kill time"))
	assert.Equal(t, 1, report.UnsafeMessages)
	assert.Equal(t, 50, report.Score)
}
