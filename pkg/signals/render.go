package signals

import (
	"fmt"
	"strings"
)

// Render formats s as a plain-text block for a language-model prompt. An
// empty transcript renders as an empty string so no fake confidence reaches
// the model.
func Render(s Signals) string {
	if s.Empty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("Delivery signals (estimated from transcript text only):\n")
	fmt.Fprintf(&b, "- Words: %d across %d sentences (%.1f words per sentence)\n",
		s.WordCount, s.SentenceCount, s.AverageWordsPerSentence)
	fmt.Fprintf(&b, "- Filler words: %d\n", s.FillerWordCount)
	fmt.Fprintf(&b, "- Repeated words: %d\n", s.RepetitionCount)
	fmt.Fprintf(&b, "- Uncertainty markers: %d\n", s.UncertaintyMarkerCount)
	fmt.Fprintf(&b, "- Question marks: %d, exclamation marks: %d, ellipses: %d\n",
		s.QuestionMarkCount, s.ExclamationMarkCount, s.EllipsisCount)

	active := s.Active()
	if len(active) == 0 {
		b.WriteString("- Indicators: none")
	} else {
		b.WriteString("- Indicators: " + strings.Join(active, ", "))
	}
	return b.String()
}
