package sentiment

import "testing"

func TestAnalyzePositive(t *testing.T) {
	score := Analyze("This is a great and wonderful day")
	if score.Polarity <= 0.1 {
		t.Fatalf("expected positive polarity, got %f", score.Polarity)
	}
	if score.Subjectivity <= 0 || score.Subjectivity > 1 {
		t.Fatalf("subjectivity out of range: %f", score.Subjectivity)
	}
}

func TestAnalyzeNegative(t *testing.T) {
	score := Analyze("The service was terrible, truly awful")
	if score.Polarity >= -0.1 {
		t.Fatalf("expected negative polarity, got %f", score.Polarity)
	}
}

func TestAnalyzeNoCueWordsIsNeutral(t *testing.T) {
	score := Analyze("The train leaves at nine")
	if score.Polarity != 0 || score.Subjectivity != 0 {
		t.Fatalf("expected zero score, got %+v", score)
	}
	if empty := Analyze("   "); empty != (Score{}) {
		t.Fatalf("expected zero score for blank text, got %+v", empty)
	}
}

func TestAnalyzeNegationFlipsPolarity(t *testing.T) {
	plain := Analyze("this is good")
	negated := Analyze("this is not good")
	if plain.Polarity <= 0 {
		t.Fatalf("expected positive baseline, got %f", plain.Polarity)
	}
	if negated.Polarity >= 0 {
		t.Fatalf("expected negation to flip polarity, got %f", negated.Polarity)
	}
}

func TestAnalyzeIntensifierBoosts(t *testing.T) {
	plain := Analyze("good")
	boosted := Analyze("very good")
	if boosted.Polarity <= plain.Polarity {
		t.Fatalf("expected intensifier to boost: plain=%f boosted=%f", plain.Polarity, boosted.Polarity)
	}
}

func TestAnalyzeClampsRange(t *testing.T) {
	score := Analyze("extremely incredibly perfect!!!")
	if score.Polarity > 1 || score.Subjectivity > 1 {
		t.Fatalf("expected clamped score, got %+v", score)
	}
}
