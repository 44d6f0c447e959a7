package llm

import (
	"fmt"
	"regexp"
	"strings"
)

var numberingPrefix = regexp.MustCompile(`^\d+[.)]\s*`)

// ParseList splits a model response into exactly expectedCount items.
// Bullets ("•", "-", "*") and "1." / "1)" numbering are stripped. Missing
// items are padded with positional placeholders; extra items are dropped.
func ParseList(text string, expectedCount int) []string {
	if expectedCount < 0 {
		expectedCount = 0
	}
	items := make([]string, 0, expectedCount)
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "•-*"))
		line = numberingPrefix.ReplaceAllString(line, "")
		if line == "" {
			continue
		}
		items = append(items, line)
	}
	for len(items) < expectedCount {
		items = append(items, fmt.Sprintf("Additional item %d", len(items)+1))
	}
	return items[:expectedCount]
}
