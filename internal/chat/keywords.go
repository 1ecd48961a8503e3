package chat

import "strings"

// courseKeywords is the fixed vocabulary of assignment and project names
// that gates retrieval. A false negative only skips the enrichment step; it
// never blocks the turn.
var courseKeywords = []string{
	"metrosim",
	"passengerqueue",
	"calcyoulater",
	"gerp",
	"zap",
	"splendor",
	"arraylist",
	"linkedlist",
	"binarysearchtree",
	"sixdegrees",
	"huffman",
	"rpn",
}

// CourseRelated reports whether the message mentions a known assignment.
func CourseRelated(message string) bool {
	m := strings.ToLower(message)
	for _, kw := range courseKeywords {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}
