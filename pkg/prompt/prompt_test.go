package prompt

import (
	"strings"
	"testing"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
	"github.com/stretchr/testify/suite"
)

type PromptSuite struct {
	suite.Suite
}

func TestPromptSuite(t *testing.T) {
	suite.Run(t, new(PromptSuite))
}

func (s *PromptSuite) TestBuildFeedbackPromptTranscriptOnly() {
	p := BuildFeedbackPrompt("  We help clinics cut wait times.  ", nil, nil)

	s.Equal(CoachSystemPrompt, p.System)
	s.Equal("Please analyze this pitch transcript:\n\nWe help clinics cut wait times.", p.User)
}

func (s *PromptSuite) TestBuildFeedbackPromptIncludesContextFields() {
	p := BuildFeedbackPrompt("Pitch text.", &model.PitchContext{
		Audience:  "investors",
		Goal:      " raise funding ",
		Duration:  "3 minutes",
		ToneStyle: "confident",
	}, nil)

	s.Contains(p.User, "\n\nContext:\n- Audience: investors\n- Goal: raise funding\n- Duration: 3 minutes\n- Tone: confident\n")
	s.NotContains(p.User, "Scenario")
}

func (s *PromptSuite) TestBuildFeedbackPromptSkipsEmptyContext() {
	p := BuildFeedbackPrompt("Pitch text.", &model.PitchContext{}, nil)
	s.NotContains(p.User, "Context:")
}

func (s *PromptSuite) TestBuildFeedbackPromptAppendsDeliverySignals() {
	transcript := "Um, so, like, you know, we maybe ship."
	delivery := signals.Extract(transcript)

	p := BuildFeedbackPrompt(transcript, nil, &delivery)

	s.Contains(p.User, "Delivery signals")
	s.Contains(p.User, "- Indicators: nervousness")
	s.True(strings.HasPrefix(p.User, "Please analyze this pitch transcript:"))
}

func (s *PromptSuite) TestBuildFeedbackPromptOmitsSignalsForEmptyTranscript() {
	delivery := signals.Extract("")
	p := BuildFeedbackPrompt("", nil, &delivery)
	s.NotContains(p.User, "Delivery signals")
}

func (s *PromptSuite) TestBuildContextExtractionPromptEmbedsDescription() {
	out := BuildContextExtractionPrompt("  I'm pitching to investors for three minutes ")

	s.Contains(out, "User description:\nI'm pitching to investors for three minutes\n")
	s.NotContains(out, "%DESCRIPTION%")
}

func (s *PromptSuite) TestParseContextPlainJSON() {
	ctx, err := ParseContext(`{"audience":"investors","goal":"raise funding","english_level":null}`)

	s.Require().NoError(err)
	s.Equal("investors", ctx.Audience)
	s.Equal("raise funding", ctx.Goal)
	s.Empty(ctx.EnglishLevel)
}

func (s *PromptSuite) TestParseContextStripsFences() {
	ctx, err := ParseContext("```json\n{\"duration\": \"30 seconds\", \"tone_style\": \"casual\"}\n```")

	s.Require().NoError(err)
	s.Equal("30 seconds", ctx.Duration)
	s.Equal("casual", ctx.ToneStyle)
}

func (s *PromptSuite) TestParseContextIgnoresSurroundingProse() {
	ctx, err := ParseContext("Here you go:\n{\"scenario\": \"job interview intro\"}\nHope that helps.")

	s.Require().NoError(err)
	s.Equal("job interview intro", ctx.Scenario)
}

func (s *PromptSuite) TestParseContextErrors() {
	_, err := ParseContext("   ")
	s.Require().Error(err)

	_, err = ParseContext("not json at all")
	s.Require().Error(err)
}
