package query

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/fuzzy"
)

var vocab = []string{"and", "generate", "of", "panels", "power", "solar", "the", "turbines", "wind"}

func newPipeline() *Pipeline {
	return NewPipeline(tokenizer.New(tokenizer.Options{}), fuzzy.NewCorrector(vocab, fuzzy.DefaultThreshold))
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		terms       []string
		corrections []Correction
	}{
		{"plain", "Solar Power", []string{"solar", "power"}, nil},
		{"typo corrected", "solor power", []string{"solar", "power"}, []Correction{{From: "solor", To: "solar"}}},
		{"stopwords removed", "the power of wind", []string{"power", "wind"}, nil},
		{"all stopwords", "the and of", []string{}, nil},
		{"unknown kept", "quantum", []string{"quantum"}, nil},
		{"repeated token kept", "solar solar", []string{"solar", "solar"}, nil},
		{"empty", "", []string{}, nil},
		{"punctuation only", "?!", []string{}, nil},
	}
	p := newPipeline()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			plan := p.Analyze(tc.raw)
			if !reflect.DeepEqual(plan.Terms, tc.terms) {
				t.Fatalf("terms = %#v; want %#v", plan.Terms, tc.terms)
			}
			if !reflect.DeepEqual(plan.Corrections, tc.corrections) {
				t.Fatalf("corrections = %#v; want %#v", plan.Corrections, tc.corrections)
			}
			if plan.Raw != tc.raw {
				t.Fatalf("raw = %q", plan.Raw)
			}
		})
	}
}

func TestAnalyzeStagesAreRecorded(t *testing.T) {
	plan := newPipeline().Analyze("The solor panels")
	if !reflect.DeepEqual(plan.Tokens, []string{"the", "solor", "panels"}) {
		t.Fatalf("tokens = %v", plan.Tokens)
	}
	if !reflect.DeepEqual(plan.Corrected, []string{"the", "solar", "panels"}) {
		t.Fatalf("corrected = %v", plan.Corrected)
	}
	if plan.Empty() {
		t.Fatal("plan should not be empty")
	}
}

func TestAnalyzeWithoutCorrector(t *testing.T) {
	p := NewPipeline(tokenizer.New(tokenizer.Options{}), nil)
	plan := p.Analyze("solor")
	if !reflect.DeepEqual(plan.Terms, []string{"solor"}) || plan.Corrections != nil {
		t.Fatalf("plan = %+v", plan)
	}
}
