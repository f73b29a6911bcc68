package config

import (
	"bytes"
	"os"
	"sort"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	"github.com/pelletier/go-toml/v2"
)

// SignalsConfig holds the delivery-signal policy and transcription hints.
type SignalsConfig struct {
	Profiles           signals.Profiles
	FillerWords        []string
	UncertaintyMarkers []string
	Keywords           []model.AudioKeyword
}

type signalsFile struct {
	FillerWords        []string                  `toml:"filler_words"`
	UncertaintyMarkers []string                  `toml:"uncertainty_markers"`
	Keywords           []model.AudioKeyword      `toml:"keywords"`
	Profiles           map[string]map[string]any `toml:"profiles"`
}

func DefaultSignalsConfig() SignalsConfig {
	return SignalsConfig{
		Profiles:           signals.DefaultProfiles(),
		FillerWords:        append([]string(nil), signals.DefaultFillerWords...),
		UncertaintyMarkers: append([]string(nil), signals.DefaultUncertaintyMarkers...),
	}
}

func LoadSignalsFile(path string) (SignalsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SignalsConfig{}, utils.WrapIfNotNil(err)
	}
	cfg, err := ParseSignals(data)
	if err != nil {
		return SignalsConfig{}, utils.WrapIfNotNil(err, path)
	}
	return cfg, nil
}

// ParseSignals overlays a TOML document on the defaults. Profile tables only
// need the thresholds they change; a new profile starts from the transcript
// thresholds. Unknown threshold keys are rejected.
func ParseSignals(data []byte) (SignalsConfig, error) {
	var file signalsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return SignalsConfig{}, utils.WrapIfNotNil(err)
	}

	cfg := DefaultSignalsConfig()
	if len(file.FillerWords) > 0 {
		cfg.FillerWords = file.FillerWords
	}
	if len(file.UncertaintyMarkers) > 0 {
		cfg.UncertaintyMarkers = file.UncertaintyMarkers
	}
	cfg.Keywords = file.Keywords

	names := make([]string, 0, len(file.Profiles))
	for name := range file.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		thresholds, ok := cfg.Profiles[name]
		if !ok {
			thresholds = signals.TranscriptThresholds()
		}

		raw, err := toml.Marshal(file.Profiles[name])
		if err != nil {
			return SignalsConfig{}, utils.WrapIfNotNil(err, "profile "+name)
		}
		decoder := toml.NewDecoder(bytes.NewReader(raw))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&thresholds); err != nil {
			return SignalsConfig{}, utils.WrapIfNotNil(err, "profile "+name)
		}
		if err := thresholds.Validate(); err != nil {
			return SignalsConfig{}, utils.WrapIfNotNil(err, "profile "+name)
		}
		cfg.Profiles[name] = thresholds
	}

	return cfg, nil
}

// ExtractorOptions converts the vocabulary settings into extractor options.
func (s SignalsConfig) ExtractorOptions() []signals.Option {
	return []signals.Option{
		signals.WithFillerWords(s.FillerWords...),
		signals.WithUncertaintyMarkers(s.UncertaintyMarkers...),
	}
}
