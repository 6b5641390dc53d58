package models

type SummarizeRequest struct {
	Text string `json:"text"`
}

type SummarizeVideoRequest struct {
	URL string `json:"url"`
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
}

type FeedbackRequest struct {
	Text string `json:"text"`
}

type FeedbackResponse struct {
	Feedback string `json:"feedback"`
}

type FeatureState struct {
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}
