package sentiment

import (
	"context"

	"github.com/pkg/errors"

	analysis "github.com/zhouzirui/ai-chat/backend/internal/analysis/sentiment"
)

// Label is the coarse sentiment class.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

const threshold = 0.1

// Scorer produces polarity in [-1, 1] and subjectivity in [0, 1].
type Scorer interface {
	Score(text string) (analysis.Score, error)
}

// Result is the classified reading returned to clients.
type Result struct {
	Sentiment    Label   `json:"sentiment"`
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
}

// Service classifies scorer output.
type Service struct {
	scorer Scorer
}

// NewService wraps scorer; a nil scorer uses the built-in lexicon.
func NewService(scorer Scorer) *Service {
	if scorer == nil {
		scorer = analysis.Scorer{}
	}
	return &Service{scorer: scorer}
}

// Analyze scores text and attaches a label. Scores pass through unchanged.
func (s *Service) Analyze(_ context.Context, text string) (Result, error) {
	score, err := s.scorer.Score(text)
	if err != nil {
		return Result{}, errors.Wrap(err, "score sentiment")
	}
	return Result{
		Sentiment:    Classify(score.Polarity),
		Polarity:     score.Polarity,
		Subjectivity: score.Subjectivity,
	}, nil
}

// Classify maps polarity onto a label: above 0.1 positive, below -0.1 negative.
func Classify(polarity float64) Label {
	switch {
	case polarity > threshold:
		return Positive
	case polarity < -threshold:
		return Negative
	default:
		return Neutral
	}
}
