package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim and lower", "  Paris  ", "paris"},
		{"collapse whitespace", "New   York\tCity", "new york city"},
		{"strip diacritics", "Café Crème", "cafe creme"},
		{"umlauts", "Über Ünïcödé", "uber unicode"},
		{"punctuation kept", "paris!", "paris!"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAnswer(tt.input))
		})
	}
}

func TestSquashLabel(t *testing.T) {
	assert.Equal(t, "300fragen", SquashLabel("300-Fragen"))
	assert.Equal(t, "300fragen", SquashLabel(" 300 fragen "))
	assert.Equal(t, "300fragen", SquashLabel("300_FRAGEN"))
	assert.Equal(t, "bayern", SquashLabel("Bayern"))
}
