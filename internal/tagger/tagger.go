// Package tagger assigns mood tags to dish names using keyword heuristics.
package tagger

import "strings"

// Tag values in the fixed vocabulary.
const (
	Cozy    = "cozy"
	Sick    = "sick"
	Healthy = "healthy"
	Spicy   = "spicy"
	Sweet   = "sweet"
	Protein = "protein"
	Value   = "value"
)

// Rule triggers Tag when any keyword is a substring of the lowercased name.
type Rule struct {
	Tag      string
	Keywords []string
}

// DefaultRules is the keyword table used by the menu uploads. Order defines
// the order tags are returned in.
var DefaultRules = []Rule{
	{Tag: Cozy, Keywords: []string{"soup", "mac", "cheese", "pasta", "stew", "chili", "mashed", "potato", "casserole", "biscuits", "gravy"}},
	{Tag: Sick, Keywords: []string{"soup", "broth", "noodle", "toast", "tea", "cracker", "ginger", "rice", "plain"}},
	{Tag: Healthy, Keywords: []string{"salad", "grilled", "roasted", "steamed", "vegetable", "fruit", "tofu", "vegan", "fresh", "garden"}},
	{Tag: Spicy, Keywords: []string{"spicy", "buffalo", "jalapeno", "cajun", "curry", "sriracha", "hot", "pepper", "fiesta"}},
	{Tag: Sweet, Keywords: []string{"cookie", "cake", "brownie", "pie", "pudding", "chocolate", "sugar", "cinnamon", "donut", "muffin"}},
	{Tag: Protein, Keywords: []string{"chicken", "beef", "pork", "steak", "turkey", "fish", "tuna", "egg", "sausage", "bacon", "tofu", "beans"}},
	{Tag: Value, Keywords: []string{"burger", "pizza", "sandwich", "pasta", "rice", "burrito", "bowl"}},
}

// KeywordTagger implements menu.Tagger with substring rules.
type KeywordTagger struct {
	rules []Rule
}

// New builds a KeywordTagger. With no rules it uses DefaultRules.
func New(rules ...Rule) *KeywordTagger {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		normalized = append(normalized, Rule{Tag: r.Tag, Keywords: kws})
	}
	return &KeywordTagger{rules: normalized}
}

// Tags returns the matching tags in rule order. The result is never nil so it
// overwrites stored tags with an empty list rather than null.
func (k *KeywordTagger) Tags(name string) []string {
	lower := strings.ToLower(name)
	tags := []string{}
	seen := make(map[string]struct{}, len(k.rules))
	for _, r := range k.rules {
		if _, dup := seen[r.Tag]; dup {
			continue
		}
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, r.Tag)
				seen[r.Tag] = struct{}{}
				break
			}
		}
	}
	return tags
}
