package domain

import "strings"

// Classifier assigns a category to free-form product text. Implementations
// are pure and swappable; the catalog only depends on this interface.
type Classifier interface {
	Classify(text string) (category string, confidence float64)
}

// DefaultCategory is used when no rule matches.
const DefaultCategory = "general"

// KeywordClassifier is a rule-based Classifier matching known keywords
// against the lower-cased input. Confidence grows with the number of hits.
type KeywordClassifier struct {
	rules map[string][]string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{rules: map[string][]string{
		"electronics": {"phone", "laptop", "tablet", "camera", "headphone", "charger", "usb", "monitor"},
		"clothing":    {"shirt", "pants", "jacket", "dress", "shoe", "sneaker", "sock", "hat"},
		"home":        {"chair", "table", "lamp", "sofa", "curtain", "pillow", "kitchen"},
		"sports":      {"ball", "racket", "bike", "yoga", "dumbbell", "fitness"},
		"books":       {"book", "novel", "magazine", "comic"},
	}}
}

func (c *KeywordClassifier) Classify(text string) (string, float64) {
	normalized := strings.ToLower(text)
	bestCategory := DefaultCategory
	bestHits := 0
	for category, keywords := range c.rules {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(normalized, kw) {
				hits++
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && category < bestCategory) {
			bestCategory = category
			bestHits = hits
		}
	}
	if bestHits == 0 {
		return DefaultCategory, 0
	}
	confidence := float64(bestHits) / float64(bestHits+1)
	return bestCategory, confidence
}
