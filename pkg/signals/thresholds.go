package signals

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// ProfileTranscript is tuned for freeform text typed or pasted by a user.
	ProfileTranscript = "transcript"
	// ProfileProviderResponse is tuned for text returned by a speech-to-text
	// provider, which tends to be longer and keeps more disfluencies.
	ProfileProviderResponse = "provider_response"
)

// Thresholds holds the policy numbers behind each flag. A count must be
// strictly above an "Above" value to raise a flag, and at or below every
// "AtMost" value for Confidence.
type Thresholds struct {
	NervousFillerWordsAbove       int     `toml:"nervous_filler_words_above" json:"nervousFillerWordsAbove"`
	NervousRepetitionsAbove       int     `toml:"nervous_repetitions_above" json:"nervousRepetitionsAbove"`
	NervousUncertaintyAbove       int     `toml:"nervous_uncertainty_above" json:"nervousUncertaintyAbove"`
	HesitantEllipsesAbove         int     `toml:"hesitant_ellipses_above" json:"hesitantEllipsesAbove"`
	HesitantQuestionsAbove        int     `toml:"hesitant_questions_above" json:"hesitantQuestionsAbove"`
	HesitantUncertaintyAbove      int     `toml:"hesitant_uncertainty_above" json:"hesitantUncertaintyAbove"`
	EnthusiasticExclamationsAbove int     `toml:"enthusiastic_exclamations_above" json:"enthusiasticExclamationsAbove"`
	RushedWordsPerSentenceAbove   float64 `toml:"rushed_words_per_sentence_above" json:"rushedWordsPerSentenceAbove"`
	ConfidentFillerWordsAtMost    int     `toml:"confident_filler_words_at_most" json:"confidentFillerWordsAtMost"`
	ConfidentRepetitionsAtMost    int     `toml:"confident_repetitions_at_most" json:"confidentRepetitionsAtMost"`
	ConfidentQuestionsAtMost      int     `toml:"confident_questions_at_most" json:"confidentQuestionsAtMost"`
	ConfidentUncertaintyAtMost    int     `toml:"confident_uncertainty_at_most" json:"confidentUncertaintyAtMost"`
}

func TranscriptThresholds() Thresholds {
	return Thresholds{
		NervousFillerWordsAbove:       3,
		NervousRepetitionsAbove:       1,
		NervousUncertaintyAbove:       2,
		HesitantEllipsesAbove:         1,
		HesitantQuestionsAbove:        1,
		HesitantUncertaintyAbove:      2,
		EnthusiasticExclamationsAbove: 1,
		RushedWordsPerSentenceAbove:   20,
		ConfidentFillerWordsAtMost:    2,
	}
}

func ProviderResponseThresholds() Thresholds {
	return Thresholds{
		NervousFillerWordsAbove:       5,
		NervousRepetitionsAbove:       2,
		NervousUncertaintyAbove:       3,
		HesitantEllipsesAbove:         2,
		HesitantQuestionsAbove:        2,
		HesitantUncertaintyAbove:      3,
		EnthusiasticExclamationsAbove: 2,
		RushedWordsPerSentenceAbove:   25,
		ConfidentFillerWordsAtMost:    3,
	}
}

// Evaluate derives the delivery flags for c.
func (t Thresholds) Evaluate(c Counts) Flags {
	return Flags{
		Nervousness: c.FillerWordCount > t.NervousFillerWordsAbove ||
			c.RepetitionCount > t.NervousRepetitionsAbove ||
			c.UncertaintyMarkerCount > t.NervousUncertaintyAbove,
		Hesitation: c.EllipsisCount > t.HesitantEllipsesAbove ||
			c.QuestionMarkCount > t.HesitantQuestionsAbove ||
			c.UncertaintyMarkerCount > t.HesitantUncertaintyAbove,
		Enthusiasm: c.ExclamationMarkCount > t.EnthusiasticExclamationsAbove,
		Rushed:     c.AverageWordsPerSentence > t.RushedWordsPerSentenceAbove,
		Confidence: c.FillerWordCount <= t.ConfidentFillerWordsAtMost &&
			c.RepetitionCount <= t.ConfidentRepetitionsAtMost &&
			c.QuestionMarkCount <= t.ConfidentQuestionsAtMost &&
			c.UncertaintyMarkerCount <= t.ConfidentUncertaintyAtMost,
	}
}

// Validate rejects negative thresholds, which would make a flag fire on
// every transcript.
func (t Thresholds) Validate() error {
	values := map[string]float64{
		"nervous_filler_words_above":      float64(t.NervousFillerWordsAbove),
		"nervous_repetitions_above":       float64(t.NervousRepetitionsAbove),
		"nervous_uncertainty_above":       float64(t.NervousUncertaintyAbove),
		"hesitant_ellipses_above":         float64(t.HesitantEllipsesAbove),
		"hesitant_questions_above":        float64(t.HesitantQuestionsAbove),
		"hesitant_uncertainty_above":      float64(t.HesitantUncertaintyAbove),
		"enthusiastic_exclamations_above": float64(t.EnthusiasticExclamationsAbove),
		"rushed_words_per_sentence_above": t.RushedWordsPerSentenceAbove,
		"confident_filler_words_at_most":  float64(t.ConfidentFillerWordsAtMost),
		"confident_repetitions_at_most":   float64(t.ConfidentRepetitionsAtMost),
		"confident_questions_at_most":     float64(t.ConfidentQuestionsAtMost),
		"confident_uncertainty_at_most":   float64(t.ConfidentUncertaintyAtMost),
	}

	negative := make([]string, 0)
	for name, value := range values {
		if value < 0 {
			negative = append(negative, name)
		}
	}
	if len(negative) == 0 {
		return nil
	}

	sort.Strings(negative)
	return fmt.Errorf("thresholds must not be negative: %s", strings.Join(negative, ", "))
}

// Profiles maps profile names to threshold sets.
type Profiles map[string]Thresholds

func DefaultProfiles() Profiles {
	return Profiles{
		ProfileTranscript:       TranscriptThresholds(),
		ProfileProviderResponse: ProviderResponseThresholds(),
	}
}

func (p Profiles) Lookup(name string) (Thresholds, bool) {
	t, ok := p[strings.TrimSpace(name)]
	return t, ok
}

func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
