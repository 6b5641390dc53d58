// Package study holds the pure study helpers used by a session: flashcard
// prompting and parsing, and conversation safety scoring.
package study

import (
	"fmt"
	"strings"

	"knowledgegpt-backend/internal/models"
)

// MaxFlashcards is the largest set a single generation produces.
const MaxFlashcards = 10

// FlashcardPrompt builds the model prompt for a flashcard set on topic.
func FlashcardPrompt(topic string) string {
	return fmt.Sprintf("Create 10 educational flashcards for the topic '%s'. \n"+
		"Each flashcard should be formatted as:\n"+
		"Q: <Term or Question>\n"+
		"A: <Short, clear definition or answer>", topic)
}

// ParseFlashcards scans model output line by line. A "Q:" line sets the
// pending question, replacing any earlier one. An "A:" line completes a card
// only when both sides are non-empty after trimming. Lines that match neither
// prefix are ignored, and only the first MaxFlashcards cards are kept.
func ParseFlashcards(raw string) []models.Flashcard {
	cards := make([]models.Flashcard, 0, MaxFlashcards)
	var question string

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		switch {
		case strings.HasPrefix(line, "Q:"):
			question = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "A:"):
			answer := strings.TrimSpace(line[2:])
			if question != "" && answer != "" {
				cards = append(cards, models.Flashcard{Question: question, Answer: answer})
				question = ""
			}
		}
	}

	if len(cards) > MaxFlashcards {
		cards = cards[:MaxFlashcards]
	}
	return cards
}
