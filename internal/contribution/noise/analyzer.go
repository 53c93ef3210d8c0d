// Package noise scores background noise in a stored voice sample. The real
// analysis runs in an external model service; this package only defines the
// boundary and a fixed-score implementation used until that service is wired.
package noise

import "context"

// Analyzer returns a noise score in [0,100], lower is better.
type Analyzer interface {
	Analyze(ctx context.Context, audioPath string) (int, error)
}

type staticAnalyzer struct {
	score int
}

// NewStaticAnalyzer returns an Analyzer that reports a fixed score.
func NewStaticAnalyzer(score int) Analyzer {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return &staticAnalyzer{score: score}
}

func (a *staticAnalyzer) Analyze(context.Context, string) (int, error) {
	return a.score, nil
}
