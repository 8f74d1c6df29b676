package client

import (
	"fmt"
	"os"
	"path/filepath"
)

// Image is an upload: the file name sent to the server and its bytes.
type Image struct {
	Name string
	Data []byte
}

// OpenImage reads an image from disk.
func OpenImage(path string) (Image, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Image{}, fmt.Errorf("celebtwin: read image: %w", err)
	}
	return Image{Name: filepath.Base(path), Data: data}, nil
}

// Match is a single ranked gallery hit.
type Match struct {
	ImagePath       string  `json:"image_path"`
	SimilarityScore float64 `json:"similarity_score"`
}

// SearchResult is the outcome of a search. When Success is false the
// inference process declined the image and Error says why.
type SearchResult struct {
	Success bool    `json:"success"`
	Results []Match `json:"results"`
	Error   string  `json:"error,omitempty"`
}

// CompareResult is the outcome of a comparison.
type CompareResult struct {
	Success         bool    `json:"success"`
	SimilarityScore float64 `json:"similarity_score"`
	MatchPercentage float64 `json:"match_percentage"`
	Error           string  `json:"error,omitempty"`
}

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}
