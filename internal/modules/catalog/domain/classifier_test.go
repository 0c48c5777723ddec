package domain

import "testing"

func TestKeywordClassifier(t *testing.T) {
	classifier := NewKeywordClassifier()

	cases := map[string]string{
		"Wireless phone charger with usb cable": "electronics",
		"Cotton shirt and matching hat":         "clothing",
		"Mystery novel":                         "books",
		"Something entirely unmatched":          DefaultCategory,
	}
	for text, want := range cases {
		got, _ := classifier.Classify(text)
		if got != want {
			t.Fatalf("Classify(%q) expected %q got %q", text, want, got)
		}
	}
}

func TestKeywordClassifierConfidence(t *testing.T) {
	classifier := NewKeywordClassifier()

	_, none := classifier.Classify("nothing matches here")
	if none != 0 {
		t.Fatalf("expected zero confidence, got %v", none)
	}

	_, one := classifier.Classify("a phone")
	_, two := classifier.Classify("a phone with a charger")
	if one <= 0 || two <= one {
		t.Fatalf("confidence should grow with keyword hits: one=%v two=%v", one, two)
	}
}
