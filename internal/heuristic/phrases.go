package heuristic

import "regexp"

// sensationalPhrases are common clickbait markers. Matching is
// case-insensitive substring containment, each phrase counted once.
var sensationalPhrases = []string{
	"shocking", "unbelievable", "you won't believe", "this will shock you",
	"celebrities hate", "doctors hate", "government doesn't want you to know",
	"one weird trick", "number 7 will blow your mind", "he did what?!",
	"she secretly", "he secretly", "this is why", "the truth about",
}

// suspiciousPatterns flag low-credibility markup. Each match adds a
// fixed penalty independent of how often it occurs.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[!?]{3,}`),
	regexp.MustCompile(`(?i)you won't believe`),
	regexp.MustCompile(`(?i)sponsored content`),
}
