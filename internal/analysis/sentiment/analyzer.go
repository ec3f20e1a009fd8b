package sentiment

import (
	"strings"
	"unicode"
)

// Score is the raw lexicon reading of a text.
type Score struct {
	Polarity     float64 // [-1, 1]
	Subjectivity float64 // [0, 1]
}

type entry struct {
	polarity     float64
	subjectivity float64
}

// lexicon holds adjective-like cue words with their polarity and subjectivity.
var lexicon = map[string]entry{
	"good":          {0.7, 0.6},
	"great":         {0.8, 0.75},
	"excellent":     {1.0, 1.0},
	"awesome":       {1.0, 1.0},
	"amazing":       {0.6, 0.9},
	"wonderful":     {1.0, 1.0},
	"fantastic":     {0.4, 0.9},
	"best":          {1.0, 0.3},
	"better":        {0.5, 0.5},
	"nice":          {0.6, 1.0},
	"happy":         {0.8, 1.0},
	"glad":          {0.5, 1.0},
	"love":          {0.5, 0.6},
	"like":          {0.2, 0.4},
	"beautiful":     {0.85, 1.0},
	"fun":           {0.3, 0.2},
	"helpful":       {0.5, 0.4},
	"perfect":       {1.0, 1.0},
	"pleasant":      {0.73, 0.97},
	"thanks":        {0.2, 0.2},
	"cool":          {0.35, 0.65},
	"interesting":   {0.5, 0.5},
	"easy":          {0.43, 0.83},
	"fast":          {0.2, 0.6},
	"bad":           {-0.7, 0.67},
	"worse":         {-0.4, 0.6},
	"worst":         {-1.0, 1.0},
	"terrible":      {-1.0, 1.0},
	"awful":         {-1.0, 1.0},
	"horrible":      {-1.0, 1.0},
	"poor":          {-0.4, 0.6},
	"sad":           {-0.5, 1.0},
	"angry":         {-0.5, 1.0},
	"hate":          {-0.8, 0.9},
	"boring":        {-1.0, 1.0},
	"ugly":          {-0.7, 1.0},
	"disappointing": {-0.6, 0.7},
	"disappointed":  {-0.75, 0.75},
	"annoying":      {-0.8, 0.9},
	"broken":        {-0.4, 0.4},
	"slow":          {-0.3, 0.39},
	"wrong":         {-0.5, 0.9},
	"difficult":     {-0.5, 1.0},
	"stupid":        {-0.8, 1.0},
	"useless":       {-0.5, 0.0},
	"upset":         {-0.4, 0.5},
	"hard":          {-0.29, 0.54},
	"fine":          {0.42, 0.5},
	"ok":            {0.5, 0.5},
	"okay":          {0.5, 0.5},
}

// intensifiers scale the next cue word.
var intensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"extremely":  1.5,
	"so":         1.2,
	"too":        1.2,
	"quite":      1.1,
	"incredibly": 1.5,
	"slightly":   0.5,
	"somewhat":   0.7,
}

var negations = map[string]struct{}{
	"not":    {},
	"never":  {},
	"no":     {},
	"isn't":  {},
	"don't":  {},
	"didn't": {},
	"wasn't": {},
	"aren't": {},
	"can't":  {},
	"won't":  {},
}

const negationFactor = -0.5

// Analyze averages the cue words found in text. Text with no cue words is
// neutral and objective.
func Analyze(text string) Score {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Score{}
	}

	var (
		polaritySum     float64
		subjectivitySum float64
		hits            int
		modifier        = 1.0
		negated         bool
	)

	for _, tok := range tokens {
		if _, ok := negations[tok]; ok {
			negated = true
			continue
		}
		if factor, ok := intensifiers[tok]; ok {
			modifier *= factor
			continue
		}

		e, ok := lexicon[tok]
		if !ok {
			modifier = 1.0
			negated = false
			continue
		}

		polarity := e.polarity * modifier
		subjectivity := e.subjectivity * modifier
		if negated {
			polarity *= negationFactor
		}
		polaritySum += polarity
		subjectivitySum += subjectivity
		hits++

		modifier = 1.0
		negated = false
	}

	if hits == 0 {
		return Score{}
	}

	polarity := polaritySum / float64(hits)
	if exclaims := strings.Count(text, "!"); exclaims > 0 && polarity != 0 {
		polarity *= 1 + 0.1*float64(min(exclaims, 3))
	}

	return Score{
		Polarity:     clamp(polarity, -1, 1),
		Subjectivity: clamp(subjectivitySum/float64(hits), 0, 1),
	}
}

// Scorer adapts Analyze to an error-returning scorer.
type Scorer struct{}

// Score implements the sentiment scorer contract.
func (Scorer) Score(text string) (Score, error) {
	return Analyze(text), nil
}

func tokenize(text string) []string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
