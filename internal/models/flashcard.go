package models

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FlashcardView is the card under the cursor. Position is zero based.
type FlashcardView struct {
	Card     Flashcard `json:"card"`
	Position int       `json:"position"`
	Total    int       `json:"total"`
}

type GenerateFlashcardsRequest struct {
	Topic string `json:"topic"`
}

type GenerateFlashcardsResponse struct {
	Flashcards []Flashcard    `json:"flashcards"`
	Current    *FlashcardView `json:"current"`
	Warning    string         `json:"warning,omitempty"`
}
