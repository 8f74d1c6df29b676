package result

import (
	"bytes"
	"encoding/json"

	"github.com/aldr4GO/celebtwin/internal/domain"
)

type searchWire struct {
	Success *bool        `json:"success"`
	Results *[]matchWire `json:"results"`
	Error   string       `json:"error"`
}

type matchWire struct {
	ImagePath       *string  `json:"image_path"`
	SimilarityScore *float64 `json:"similarity_score"`
}

type compareWire struct {
	Success         *bool    `json:"success"`
	SimilarityScore *float64 `json:"similarity_score"`
	MatchPercentage *float64 `json:"match_percentage"`
	Error           string   `json:"error"`
}

// DecodeSearch validates payload against the search schema.
func DecodeSearch(payload []byte) (Search, error) {
	var w searchWire
	if err := unmarshal(payload, &w); err != nil {
		return Search{}, err
	}
	if w.Success == nil {
		return Search{}, domain.NewDetailError(domain.ErrSchemaMismatch, `missing "success"`)
	}
	if !*w.Success {
		return Search{errMsg: w.Error}, nil
	}
	if w.Results == nil {
		return Search{}, domain.NewDetailError(domain.ErrSchemaMismatch, `missing "results"`)
	}

	matches := make([]Match, 0, len(*w.Results))
	for i, m := range *w.Results {
		if m.ImagePath == nil || *m.ImagePath == "" {
			return Search{}, domain.Detailf(domain.ErrSchemaMismatch, `results[%d]: missing "image_path"`, i)
		}
		if m.SimilarityScore == nil {
			return Search{}, domain.Detailf(domain.ErrSchemaMismatch, `results[%d]: missing "similarity_score"`, i)
		}
		matches = append(matches, NewMatch(*m.ImagePath, *m.SimilarityScore))
	}
	return NewSearch(matches), nil
}

// DecodeCompare validates payload against the compare schema.
// match_percentage is derived from the score when the process omits it.
func DecodeCompare(payload []byte) (Compare, error) {
	var w compareWire
	if err := unmarshal(payload, &w); err != nil {
		return Compare{}, err
	}
	if w.Success == nil {
		return Compare{}, domain.NewDetailError(domain.ErrSchemaMismatch, `missing "success"`)
	}
	if !*w.Success {
		return Compare{errMsg: w.Error}, nil
	}
	if w.SimilarityScore == nil {
		return Compare{}, domain.NewDetailError(domain.ErrSchemaMismatch, `missing "similarity_score"`)
	}

	pct := *w.SimilarityScore * 100
	if w.MatchPercentage != nil {
		pct = *w.MatchPercentage
	}
	return NewCompare(*w.SimilarityScore, pct), nil
}

func unmarshal(payload []byte, v any) error {
	if err := json.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return domain.NewDetailError(domain.ErrSchemaMismatch, err.Error())
	}
	return nil
}
