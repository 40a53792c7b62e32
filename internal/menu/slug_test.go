package menu

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "simple", input: "Spicy Buffalo Chicken Sandwich", maxLen: 50, want: "spicy-buffalo-chicken-sandwich"},
		{name: "punctuation dropped", input: "Mac & Cheese!", maxLen: 50, want: "mac--cheese"},
		{name: "trimmed", input: "  Tater Tots  ", maxLen: 50, want: "tater-tots"},
		{name: "digits kept", input: "2% Milk", maxLen: 50, want: "2-milk"},
		{name: "truncated", input: strings.Repeat("a", 70), maxLen: 60, want: strings.Repeat("a", 60)},
		{name: "no limit", input: strings.Repeat("b", 70), maxLen: 0, want: strings.Repeat("b", 70)},
		{name: "hyphens kept", input: "Mac-n-Cheese", maxLen: 50, want: "mac-n-cheese"},
		{name: "unicode letters", input: "Jalapeño Poppers", maxLen: 50, want: "jalapeño-poppers"},
		{name: "empty", input: "!!!", maxLen: 50, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Slug(tc.input, tc.maxLen))
		})
	}
}

func TestSlugIsIdempotent(t *testing.T) {
	t.Parallel()

	names := []string{
		"Spicy Buffalo Chicken Sandwich",
		"Scrambled Eggs",
		"Chicken Noodle Soup 2",
		"a b  c   d",
		strings.Repeat("Grilled Cheese ", 8),
	}
	for _, name := range names {
		once := Slug(name, DefaultSlugLength)
		require.Equal(t, once, Slug(once, DefaultSlugLength), "slug of %q", name)
	}
}

func TestSlugTruncatesByCharacter(t *testing.T) {
	t.Parallel()

	require.Equal(t, strings.Repeat("a", 49)+"ñ", Slug(strings.Repeat("a", 49)+"ño", 50))

	got := Slug(strings.Repeat("Crème Brûlée ", 6), DefaultSlugLength)
	require.Equal(t, DefaultSlugLength, utf8.RuneCountInString(got))
	require.True(t, strings.HasPrefix(got, "crème-brûlée-crème-brûlée"))
}

func TestCompactID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "starbuckswalc", CompactID("Starbucks @ WALC"))
	require.Equal(t, "1bowl", CompactID("1 Bowl"))
	require.Empty(t, CompactID("  --  "))
}
