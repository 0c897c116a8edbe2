package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// sudReadingPattern matches standalone 0-10 readings, optionally with one
// decimal ("7", "7.5", "7,5").
var sudReadingPattern = regexp.MustCompile(`(?:^|[^0-9.,])(10|[0-9](?:[.,][0-9])?)(?:[^0-9]|$)`)

// ExtractSud returns the last 0-10 reading found in the message, if any.
// This is the stub hint parser: full inline-hint parsing is the dialogue
// agent's business, the gateway only needs a number.
func ExtractSud(text string) (float64, bool) {
	matches := sudReadingPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}

	raw := strings.ReplaceAll(matches[len(matches)-1][1], ",", ".")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 10 {
		return 0, false
	}
	return v, true
}
