// Package mcp exposes the pitch coach as Model Context Protocol tools so that
// assistants can score and coach transcripts directly.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/coach"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "pitch-coach"
	serverVersion = "1.0.0"

	ToolAnalyzeDelivery = "analyze_delivery"
	ToolCoachPitch      = "coach_pitch"
	ToolExtractContext  = "extract_context"
)

// Pipeline is the part of the coach the tools call.
type Pipeline interface {
	Profiles() []string
	Signals(transcript, profile string) (signals.Signals, error)
	AnalyzeTranscript(ctx context.Context, req coach.AnalyzeRequest) (*coach.Analysis, error)
	ExtractContext(ctx context.Context, description string) (*model.PitchContext, error)
}

// DeliveryReport is the structured result of analyze_delivery.
type DeliveryReport struct {
	Signals signals.Signals `json:"signals"`
	Summary string          `json:"summary"`
}

type handlers struct {
	pipeline Pipeline
}

// NewServer registers the coaching tools on a new MCP server.
func NewServer(pipeline Pipeline) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	h := &handlers{pipeline: pipeline}
	s.AddTool(analyzeDeliveryTool(pipeline.Profiles()), h.analyzeDelivery)
	s.AddTool(coachPitchTool(), h.coachPitch)
	s.AddTool(extractContextTool(), h.extractContext)
	return s
}

// NewHTTPHandler serves the tools over the streamable HTTP transport.
func NewHTTPHandler(pipeline Pipeline) http.Handler {
	return server.NewStreamableHTTPServer(NewServer(pipeline), server.WithStateLess(true))
}

func analyzeDeliveryTool(profiles []string) mcp.Tool {
	profileOpts := []mcp.PropertyOption{
		mcp.Description("Threshold profile. Use provider_response for speech-to-text output. Defaults to transcript."),
	}
	if len(profiles) > 0 {
		profileOpts = append(profileOpts, mcp.Enum(profiles...))
	}

	return mcp.NewTool(ToolAnalyzeDelivery,
		mcp.WithDescription("Estimate delivery signals (filler words, repetitions, hedging, pace) from a pitch transcript."),
		mcp.WithString("transcript", mcp.Required(), mcp.Description("The spoken pitch as text.")),
		mcp.WithString("profile", profileOpts...),
	)
}

func coachPitchTool() mcp.Tool {
	return mcp.NewTool(ToolCoachPitch,
		mcp.WithDescription("Get markdown coaching feedback on a pitch transcript."),
		mcp.WithString("transcript", mcp.Required(), mcp.Description("The spoken pitch as text.")),
		mcp.WithString("audience", mcp.Description("Who the pitch is for.")),
		mcp.WithString("goal", mcp.Description("What the speaker wants to achieve.")),
		mcp.WithString("duration", mcp.Description("Desired length of the pitch.")),
	)
}

func extractContextTool() mcp.Tool {
	return mcp.NewTool(ToolExtractContext,
		mcp.WithDescription("Turn a free-form description of the pitch situation into structured context."),
		mcp.WithString("description", mcp.Required(), mcp.Description("Who the pitch is for and what it should achieve.")),
	)
}

func (h *handlers) analyzeDelivery(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcript, err := request.RequireString("transcript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	profile := request.GetString("profile", signals.ProfileTranscript)

	result, err := h.pipeline.Signals(transcript, profile)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("analyze delivery", err), nil
	}

	summary := signals.Render(result)
	if summary == "" {
		summary = "No words detected in the transcript."
	}
	return mcp.NewToolResultStructured(DeliveryReport{Signals: result, Summary: summary}, summary), nil
}

func (h *handlers) coachPitch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcript, err := request.RequireString("transcript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pitchCtx := model.PitchContext{
		Audience: strings.TrimSpace(request.GetString("audience", "")),
		Goal:     strings.TrimSpace(request.GetString("goal", "")),
		Duration: strings.TrimSpace(request.GetString("duration", "")),
	}
	req := coach.AnalyzeRequest{Transcript: transcript}
	if !pitchCtx.IsZero() {
		req.Context = &pitchCtx
	}

	analysis, err := h.pipeline.AnalyzeTranscript(ctx, req)
	if err != nil {
		logging.NewLogger(ctx).Errorf("error: %v", err)
		return mcp.NewToolResultErrorFromErr(toolErrorMessage(err), err), nil
	}
	return mcp.NewToolResultText(analysis.Feedback), nil
}

func (h *handlers) extractContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pitchCtx, err := h.pipeline.ExtractContext(ctx, description)
	if err != nil {
		logging.NewLogger(ctx).Errorf("error: %v", err)
		return mcp.NewToolResultErrorFromErr(toolErrorMessage(err), err), nil
	}

	payload, err := json.Marshal(pitchCtx)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}
	return mcp.NewToolResultStructured(pitchCtx, string(payload)), nil
}

func toolErrorMessage(err error) string {
	switch {
	case errors.Is(err, coach.ErrFeedbackUnavailable):
		return "no feedback provider is configured"
	case errors.Is(err, coach.ErrEmptyTranscript), errors.Is(err, coach.ErrEmptyContext):
		return "invalid input"
	default:
		return "coaching failed"
	}
}
