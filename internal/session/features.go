package session

// Feature is a panel of the study UI that a user can show or hide.
type Feature string

const (
	FeatureFlashcards Feature = "flashcards"
	FeatureSafety     Feature = "safety"
	FeatureFeedback   Feature = "feedback"
	FeatureSummarizer Feature = "summarizer"
)

// AllFeatures lists every feature in display order.
var AllFeatures = []Feature{FeatureFlashcards, FeatureSafety, FeatureFeedback, FeatureSummarizer}

func ParseFeature(s string) (Feature, bool) {
	for _, f := range AllFeatures {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}
