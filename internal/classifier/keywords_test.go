package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

func toLower(s string) string {
	return strings.ToLower(s)
}

func TestContainsSensitiveKeywords(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{text: "Check out my OnlyFans", want: true},
		{text: "BEST CASINO bonus", want: true},
		{text: "buy bitcoin now", want: true},
		{text: "Payday Loan approved", want: true},
		{text: "New single out on Spotify", want: false},
		{text: "Premium Content", want: false},
		{text: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsSensitiveKeywords(tt.text))
		})
	}
}

func TestKeywords(t *testing.T) {
	kws := Keywords(entity.CategoryAdult)
	assert.Contains(t, kws, "onlyfans")

	kws[0] = "mutated"
	assert.NotContains(t, Keywords(entity.CategoryAdult), "mutated")

	assert.Empty(t, Keywords(entity.CategoryNone))
}

func TestSanitizeForCrawlers(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "My OnlyFans page", want: "My exclusive page"},
		{text: "casino and POKER night", want: "gaming and gaming night"},
		{text: "crypto signals group", want: "digital investing"},
		{text: "no payday loan here", want: "no financial financial here"},
		{text: "Listen on Spotify", want: "Listen on Spotify"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := SanitizeForCrawlers(tt.text)

			assert.Equal(t, tt.want, got)
			assert.False(t, ContainsSensitiveKeywords(got))
		})
	}
}

func TestSanitizeForCrawlers_Idempotent(t *testing.T) {
	inputs := []string{
		"sexxxx",
		"NSFW onlyfans XXX",
		"btcbitcoinnft",
		"hookup dating tinder",
		"a perfectly ordinary sentence",
		"Essex weekend",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := SanitizeForCrawlers(in)

			assert.Equal(t, once, SanitizeForCrawlers(once))
			assert.False(t, ContainsSensitiveKeywords(once))
		})
	}
}
