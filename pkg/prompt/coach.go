// Package prompt builds the text sent to language-model providers.
package prompt

import (
	"strings"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
)

const CoachSystemPrompt = `You are an expert pitch and communication coach. Your job is to analyze pitches and give clear, concise, and practical feedback that helps users improve quickly. Assume the user is practicing and wants honest but encouraging coaching.

When you respond, ALWAYS follow this structure and formatting (use markdown):

1. Summary (2–3 sentences)
   - Briefly describe what the pitch is about and what you understood as the main message.

2. Scores (0–10)
   - Clarity:
   - Structure:
   - Persuasiveness:
   - Energy and delivery (based only on what can be inferred from text):
   - Fit for audience/goal (if context is provided):

3. What worked well
   - 3–5 short bullet points highlighting strengths.
   - Focus on content, message, and any strong moments.

4. What to improve
   - 3–7 bullet points.
   - Be specific and actionable (e.g., "Open with a 1-sentence problem statement" instead of "Be more concise").

5. Concrete suggestions and examples
   - Rewrite key parts of the pitch:
     - A stronger opening (2–3 options).
     - A clearer value proposition (1–2 options).
     - A more compelling closing / call to action.
   - Keep the suggestions in the same approximate length as the original pitch.

6. Next practice exercise
   - Give the user one short exercise they can do for their next attempt (e.g., "Try to deliver the same pitch in 30 seconds focusing only on the problem and solution").

Guidelines:
- Be encouraging but direct. The goal is improvement, not flattery.
- Never apologize for being critical; frame it as helpful coaching.
- Do NOT invent details that are not present in the transcript or context.
- If the pitch is very short or incomplete, say so explicitly and suggest what the user should add.
- If the user provides context (e.g., 'investor pitch in 3 minutes' or 'job interview introduction'), adapt your feedback to that scenario.
- If delivery signals are provided, use them for the energy and delivery score and mention the most important one.
- Always write in clear, natural English.`

// BuildFeedbackPrompt assembles the coaching request for transcript. pitchCtx
// and delivery may be nil; delivery for an empty transcript is never included.
func BuildFeedbackPrompt(transcript string, pitchCtx *model.PitchContext, delivery *signals.Signals) model.Prompt {
	var b strings.Builder
	b.WriteString("Please analyze this pitch transcript:\n\n")
	b.WriteString(strings.TrimSpace(transcript))

	if block := renderContext(pitchCtx); block != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(block)
	}

	if delivery != nil {
		if block := signals.Render(*delivery); block != "" {
			b.WriteString("\n\n")
			b.WriteString(block)
		}
	}

	return model.Prompt{
		System: CoachSystemPrompt,
		User:   b.String(),
	}
}

func renderContext(pitchCtx *model.PitchContext) string {
	if pitchCtx == nil {
		return ""
	}

	fields := []struct {
		label string
		value string
	}{
		{"Audience", pitchCtx.Audience},
		{"Goal", pitchCtx.Goal},
		{"Duration", pitchCtx.Duration},
		{"Scenario", pitchCtx.Scenario},
		{"English level", pitchCtx.EnglishLevel},
		{"Tone", pitchCtx.ToneStyle},
		{"Constraints", pitchCtx.Constraints},
		{"Notes", pitchCtx.NotesFromUser},
	}

	var b strings.Builder
	for _, f := range fields {
		value := strings.TrimSpace(f.value)
		if value == "" {
			continue
		}
		b.WriteString("- " + f.label + ": " + value + "\n")
	}
	return b.String()
}
