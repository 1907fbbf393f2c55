package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialRatio_Similarity(t *testing.T) {
	m := NewPartialRatio()

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "Shivam", "Shivam", 100},
		{"case folded", "SHIVAM", "shivam", 100},
		{"substring", "jockey", "JOCKEY BRIEF 85CM", 100},
		{"missing letter", "shivm", "Shivam", 80},
		{"unrelated", "sonu", "shivm", 25},
		{"empty", "", "Shivam", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Similarity(tt.a, tt.b))
		})
	}
}

func TestPartialRatio_IsSymmetric(t *testing.T) {
	m := NewPartialRatio()
	assert.Equal(t, m.Similarity("shivm", "Shivam"), m.Similarity("Shivam", "shivm"))
}

func TestBestMatch(t *testing.T) {
	m := NewPartialRatio()
	roster := []string{"Gaurav", "Sahil", "Shivam", "Sonu"}

	// GIVEN: a misspelt name with trailing whitespace
	// WHEN: matching against the roster
	got, score, ok := m.BestMatch("shivm ", roster)

	// THEN: the closest roster entry wins
	assert.True(t, ok)
	assert.Equal(t, "Shivam", got)
	assert.Equal(t, 80, score)
}

func TestBestMatch_TiesKeepFirst(t *testing.T) {
	m := Func(func(a, b string) int { return 50 })

	got, score, ok := m.BestMatch("x", []string{"first", "second"})

	assert.True(t, ok)
	assert.Equal(t, "first", got)
	assert.Equal(t, 50, score)
}

func TestBestMatch_NoCandidates(t *testing.T) {
	_, _, ok := NewPartialRatio().BestMatch("x", nil)
	assert.False(t, ok)
}

func TestMatchesAny(t *testing.T) {
	m := NewPartialRatio()
	vocab := []string{"PETI", "PETICOT", "UNDERWEAR", "INNERWEAR", "JOCKEY"}

	assert.True(t, MatchesAny(m, "Ladies Peticot Cotton", vocab, DefaultThreshold))
	assert.True(t, MatchesAny(m, "innerwar", vocab, DefaultThreshold))
	assert.False(t, MatchesAny(m, "DENIM JEANS", vocab, DefaultThreshold))
}
