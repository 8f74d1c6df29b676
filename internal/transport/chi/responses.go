package chi

type matchItem struct {
	ImagePath       string  `json:"image_path"`
	SimilarityScore float64 `json:"similarity_score"`
}

type searchResponse struct {
	Success bool        `json:"success"`
	Results []matchItem `json:"results"`
}

type compareResponse struct {
	Success         bool    `json:"success"`
	SimilarityScore float64 `json:"similarity_score"`
	MatchPercentage float64 `json:"match_percentage"`
}

// errorResponse is returned for validation and pipeline failures, and for
// failures the inference process declares itself.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
