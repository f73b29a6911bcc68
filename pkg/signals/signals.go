// Package signals estimates how a pitch was delivered from its transcript text
// alone: filler words, stuttered repeats, punctuation and hedging phrases are
// counted and folded into coarse delivery flags.
//
// Everything here is a pure function of the input string. An Extractor is
// immutable once built and may be shared between goroutines.
package signals

// Counts are the raw tallies taken from a transcript.
type Counts struct {
	FillerWordCount         int     `json:"fillerWordCount"`
	RepetitionCount         int     `json:"repetitionCount"`
	QuestionMarkCount       int     `json:"questionMarkCount"`
	ExclamationMarkCount    int     `json:"exclamationMarkCount"`
	EllipsisCount           int     `json:"ellipsisCount"`
	UncertaintyMarkerCount  int     `json:"uncertaintyMarkerCount"`
	WordCount               int     `json:"wordCount"`
	SentenceCount           int     `json:"sentenceCount"`
	AverageWordsPerSentence float64 `json:"averageWordsPerSentence"`
}

// Flags are the delivery indicators derived from Counts. They are not
// mutually exclusive.
type Flags struct {
	Nervousness bool `json:"nervousness"`
	Hesitation  bool `json:"hesitation"`
	Enthusiasm  bool `json:"enthusiasm"`
	Rushed      bool `json:"rushed"`
	Confidence  bool `json:"confidence"`
}

// Signals is the full result of one extraction.
type Signals struct {
	Counts
	Flags
	Profile string `json:"profile"`
}

// Empty reports whether the transcript had no words at all. In that case
// Confidence is set by the flag rules but means "nothing to measure".
func (s Signals) Empty() bool {
	return s.WordCount == 0
}

// Active lists the names of the flags that are set, in a fixed order.
func (f Flags) Active() []string {
	active := make([]string, 0, 5)
	if f.Nervousness {
		active = append(active, "nervousness")
	}
	if f.Hesitation {
		active = append(active, "hesitation")
	}
	if f.Enthusiasm {
		active = append(active, "enthusiasm")
	}
	if f.Rushed {
		active = append(active, "rushed")
	}
	if f.Confidence {
		active = append(active, "confidence")
	}
	return active
}
