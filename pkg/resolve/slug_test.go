package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Strength of Materials & Structures", "strength-of-materials-structures"},
		{"1. Simple Stress and Strain", "1-simple-stress-and-strain"},
		{"  Mixed -- Hyphens\tand\nspaces  ", "mixed-hyphens-and-spaces"},
		{"Élasticité (basics)", "lasticit-basics"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugMatches(t *testing.T) {
	tests := []struct {
		title    string
		fragment string
		want     bool
	}{
		{"Strength of Materials & Structures", "strength-of-materials-structures", true},
		{"Strength of Materials & Structures", "strength-materials-structures", true},
		{"Design for Shafts or Keys", "design-shafts-keys", true},
		{"Strength of Materials", "strength-of-structures", false},
		{"", "", false},
		{"Beams", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.title+"#"+tt.fragment, func(t *testing.T) {
			assert.Equal(t, tt.want, SlugMatches(tt.title, tt.fragment))
		})
	}
}

func TestProgressStem(t *testing.T) {
	assert.Equal(t, "strength-of-materials", ProgressStem("Strength of Materials", "https://x.example/a/"))

	stem := ProgressStem("Механика", "https://x.example/a/")
	assert.Equal(t, "run-", stem[:4])
	assert.Len(t, stem, 16)
	assert.Equal(t, stem, ProgressStem("???", "https://x.example/a/"))
	assert.NotEqual(t, stem, ProgressStem("???", "https://x.example/b/"))
}
