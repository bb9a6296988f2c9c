package passfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	f := New(
		map[string]string{"partLoader": "PartLoader: Compiling", "model": "ModelLoader"},
		map[string]string{"texture": "Texture", "audio": "AudioLoader"},
	)

	tests := []struct {
		name    string
		message string
		want    Result
	}{
		{"double only", "PartLoader: Compiling Part 'x'", Result{MatchesDouble: true, Rule: "partLoader"}},
		{"single only", "Texture not found", Result{MatchesSingle: true, Rule: "texture"}},
		{"double suppresses single", "ModelLoader failed on Texture", Result{MatchesDouble: true, Rule: "model"}},
		{"case sensitive", "texture not found", Result{}},
		{"no match", "NullReferenceException", Result{}},
		{"empty message", "", Result{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Classify(tt.message))
		})
	}
}

func TestEmptyRuleSetsMatchNothing(t *testing.T) {
	f := New(nil, map[string]string{})
	assert.Equal(t, Result{}, f.Classify("anything at all"))

	var nilFilter *Filter
	assert.Equal(t, Result{}, nilFilter.Classify("anything"))
}

func TestEmptyPatternIgnored(t *testing.T) {
	s := NewRuleSet(map[string]string{"blank": "", "real": "boom"})
	assert.Equal(t, 1, s.Len())

	_, ok := s.Match("nothing here")
	assert.False(t, ok)
}

func TestFirstMatchIsByRuleName(t *testing.T) {
	s := NewRuleSet(map[string]string{"zeta": "fail", "alpha": "fail"})
	r, ok := s.Match("it will fail")
	assert.True(t, ok)
	assert.Equal(t, "alpha", r.Name)
	assert.Equal(t, []Rule{{"alpha", "fail"}, {"zeta", "fail"}}, s.Rules())
}
