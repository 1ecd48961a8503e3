package llmproxy

import (
	"fmt"
	"strings"
)

const contextPreamble = "The following is additional context that may be " +
	"helpful in answering the query. Use them only if it is relevant to the " +
	"user's query."

// FormatContext renders retrieved passages into the block appended to the
// system prompt before generation. Empty input yields an empty string.
func FormatContext(passages []Passage) string {
	if len(passages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(contextPreamble)
	for i, p := range passages {
		fmt.Fprintf(&b, "\n#%d %s\n", i+1, p.DocSummary)
		for j, chunk := range p.Chunks {
			fmt.Fprintf(&b, "#%d.%d %s\n", i+1, j+1, chunk)
		}
	}
	return b.String()
}
