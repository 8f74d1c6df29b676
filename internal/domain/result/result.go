// Package result maps payloads emitted by the inference process to the
// records returned to callers. Each operation has an explicit schema; a
// payload that does not satisfy it is rejected with domain.ErrSchemaMismatch.
package result

// Match is a single ranked gallery hit.
type Match struct {
	imagePath string
	score     float64
}

// NewMatch creates a match.
func NewMatch(imagePath string, score float64) Match {
	return Match{imagePath: imagePath, score: score}
}

// ImagePath returns the gallery image the query matched.
func (m *Match) ImagePath() string { return m.imagePath }

// Score returns the similarity score.
func (m *Match) Score() float64 { return m.score }

// Search is the outcome of a search invocation.
// When Success is false, Error holds the reason the process declared.
type Search struct {
	success bool
	matches []Match
	errMsg  string
}

// NewSearch creates a successful search outcome.
func NewSearch(matches []Match) Search {
	return Search{success: true, matches: matches}
}

// Success reports whether the process declared success.
func (s *Search) Success() bool { return s.success }

// Matches returns hits in the order the process ranked them.
func (s *Search) Matches() []Match { return s.matches }

// Error returns the process-declared failure reason.
func (s *Search) Error() string { return s.errMsg }

// Compare is the outcome of a compare invocation.
type Compare struct {
	success    bool
	score      float64
	percentage float64
	errMsg     string
}

// NewCompare creates a successful compare outcome.
func NewCompare(score, percentage float64) Compare {
	return Compare{success: true, score: score, percentage: percentage}
}

// Success reports whether the process declared success.
func (c *Compare) Success() bool { return c.success }

// Score returns the similarity score.
func (c *Compare) Score() float64 { return c.score }

// Percentage returns the match percentage.
func (c *Compare) Percentage() float64 { return c.percentage }

// Error returns the process-declared failure reason.
func (c *Compare) Error() string { return c.errMsg }
