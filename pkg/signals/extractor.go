package signals

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	DefaultFillerWords = []string{
		"uh", "um", "er", "ah", "like", "you know", "so", "well", "actually", "basically", "literally",
	}
	DefaultUncertaintyMarkers = []string{
		"maybe", "perhaps", "might", "could", "i think", "i guess", "sort of", "kind of",
	}

	ellipsisPattern   = regexp.MustCompile(`\.{2,}`)
	sentenceBoundary  = regexp.MustCompile(`[.!?]+`)
	defaultExtractor  = NewExtractor()
	providerExtractor = NewExtractor(WithProfile(ProfileProviderResponse, ProviderResponseThresholds()))
)

const minRepeatedTokenSize = 3

// Extract measures transcript with the transcript profile.
func Extract(transcript string) Signals {
	return defaultExtractor.Extract(transcript)
}

// ExtractProviderResponse measures transcript with the provider_response profile.
func ExtractProviderResponse(transcript string) Signals {
	return providerExtractor.Extract(transcript)
}

type Extractor struct {
	profile     string
	thresholds  Thresholds
	fillers     []*regexp.Regexp
	uncertainty []*regexp.Regexp
}

type Option func(*extractorConfig)

type extractorConfig struct {
	profile     string
	thresholds  Thresholds
	fillers     []string
	uncertainty []string
}

// WithProfile sets the thresholds and the profile name reported in Signals.
func WithProfile(name string, thresholds Thresholds) Option {
	return func(cfg *extractorConfig) {
		cfg.profile = name
		cfg.thresholds = thresholds
	}
}

// WithFillerWords replaces the filler vocabulary. Multi-word entries match
// across any run of whitespace.
func WithFillerWords(words ...string) Option {
	return func(cfg *extractorConfig) {
		cfg.fillers = append([]string(nil), words...)
	}
}

func WithUncertaintyMarkers(markers ...string) Option {
	return func(cfg *extractorConfig) {
		cfg.uncertainty = append([]string(nil), markers...)
	}
}

func NewExtractor(opts ...Option) *Extractor {
	cfg := extractorConfig{
		profile:     ProfileTranscript,
		thresholds:  TranscriptThresholds(),
		fillers:     DefaultFillerWords,
		uncertainty: DefaultUncertaintyMarkers,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return &Extractor{
		profile:     cfg.profile,
		thresholds:  cfg.thresholds,
		fillers:     compileVocabulary(cfg.fillers),
		uncertainty: compileVocabulary(cfg.uncertainty),
	}
}

func (e *Extractor) Profile() string {
	return e.profile
}

func (e *Extractor) Thresholds() Thresholds {
	return e.thresholds
}

func (e *Extractor) Extract(transcript string) Signals {
	counts := e.Counts(transcript)
	return Signals{
		Counts:  counts,
		Flags:   e.thresholds.Evaluate(counts),
		Profile: e.profile,
	}
}

// Counts tallies transcript without evaluating any thresholds.
func (e *Extractor) Counts(transcript string) Counts {
	words := strings.Fields(transcript)
	sentences := countSentences(transcript)

	c := Counts{
		FillerWordCount:        countMatches(e.fillers, transcript),
		RepetitionCount:        countRepetitions(words),
		QuestionMarkCount:      strings.Count(transcript, "?"),
		ExclamationMarkCount:   strings.Count(transcript, "!"),
		EllipsisCount:          len(ellipsisPattern.FindAllStringIndex(transcript, -1)),
		UncertaintyMarkerCount: countMatches(e.uncertainty, transcript),
		WordCount:              len(words),
		SentenceCount:          sentences,
	}
	if sentences > 0 {
		c.AverageWordsPerSentence = float64(c.WordCount) / float64(sentences)
	}
	return c
}

// compileVocabulary builds one case-insensitive whole-word pattern per term.
// Blank terms are skipped.
func compileVocabulary(terms []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		parts := strings.Fields(term)
		if len(parts) == 0 {
			continue
		}
		for i, part := range parts {
			parts[i] = regexp.QuoteMeta(part)
		}
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+strings.Join(parts, `\s+`)+`\b`))
	}
	return patterns
}

func countMatches(patterns []*regexp.Regexp, text string) int {
	total := 0
	for _, pattern := range patterns {
		total += len(pattern.FindAllStringIndex(text, -1))
	}
	return total
}

// countRepetitions counts adjacent identical tokens, ignoring short ones such
// as "a a" or "am am".
func countRepetitions(words []string) int {
	repeats := 0
	for i := 1; i < len(words); i++ {
		current := strings.ToLower(words[i])
		if current != strings.ToLower(words[i-1]) {
			continue
		}
		if utf8.RuneCountInString(current) >= minRepeatedTokenSize {
			repeats++
		}
	}
	return repeats
}

func countSentences(text string) int {
	sentences := 0
	for _, fragment := range sentenceBoundary.Split(text, -1) {
		if strings.TrimSpace(fragment) != "" {
			sentences++
		}
	}
	return sentences
}
