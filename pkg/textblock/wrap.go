// Package textblock splits free text into the fixed-width lines the
// downstream order interface accepts.
package textblock

import "strings"

// LineWidth is the widest line the order text interface accepts.
const LineWidth = 132

// Wrap normalizes line endings and splits text into lines of at most
// LineWidth characters. Long lines are cut hard, without word
// awareness, because the receiving system reassembles them by simple
// concatenation. Empty lines survive so paragraph breaks round-trip.
func Wrap(text string) []string {
	if text == "" {
		return nil
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var out []string
	for _, line := range strings.Split(normalized, "\n") {
		if line == "" {
			out = append(out, "")
			continue
		}
		runes := []rune(line)
		for len(runes) > LineWidth {
			out = append(out, string(runes[:LineWidth]))
			runes = runes[LineWidth:]
		}
		out = append(out, string(runes))
	}
	return out
}
