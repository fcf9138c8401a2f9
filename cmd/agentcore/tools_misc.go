package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/turn"
)

type viewImageArgs struct {
	Path string `json:"path"`
}

// viewImageHandler implements dispatch.Handler for "view_image": it
// resolves path against the turn's cwd, reads it as a data: URL, and
// queues it onto the session's pending input for the next turn.
func viewImageHandler(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	var req viewImageArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return "", fmt.Errorf("view_image: invalid arguments: %w", err)
	}
	if req.Path == "" {
		return "", fmt.Errorf("view_image: path is required")
	}
	path := req.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(turnCtx.Cwd, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("view_image: read %s: %w", req.Path, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	item := &models.ResponseItem{
		Type: models.ItemMessage,
		Role: models.RoleUser,
		Content: []models.ContentBlock{
			{Type: models.ContentInputImage, ImageURL: dataURL},
		},
	}
	if err := sess.QueueInput(item); err != nil {
		return "", fmt.Errorf("view_image: %w", err)
	}
	return fmt.Sprintf("attached image %s", req.Path), nil
}

type planStepArg struct {
	Step   string `json:"step"`
	Status string `json:"status"`
}

type updatePlanArgs struct {
	Explanation string        `json:"explanation,omitempty"`
	Plan        []planStepArg `json:"plan"`
}

// updatePlanHandler implements dispatch.Handler for "update_plan": it
// forwards the structured plan straight to the UI over the session's event
// stream, without touching history or the rollout.
func updatePlanHandler(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
	var req updatePlanArgs
	if err := json.Unmarshal(args, &req); err != nil {
		return "", fmt.Errorf("update_plan: invalid arguments: %w", err)
	}
	steps := make([]session.PlanStep, len(req.Plan))
	for i, s := range req.Plan {
		steps[i] = session.PlanStep{Step: s.Step, Status: s.Status}
	}
	sess.Emit(session.Event{Type: session.EventPlanUpdate, Text: req.Explanation, Plan: steps})
	return "plan updated", nil
}

// viewImageToolSpec and updatePlanToolSpec advertise view_image/update_plan
// to the model, per spec.md §4.3.
func viewImageToolSpec() turn.ToolSpec {
	return turn.ToolSpec{
		Name:        "view_image",
		Description: "Attach a local image (by filesystem path) to the conversation context for this turn.",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"path"},
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Local filesystem path to an image file"},
			},
		},
	}
}

func updatePlanToolSpec() turn.ToolSpec {
	return turn.ToolSpec{
		Name:        "update_plan",
		Description: "Share an updated, structured plan with the user.",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"plan"},
			"properties": map[string]any{
				"explanation": map[string]any{"type": "string"},
				"plan": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"step", "status"},
						"properties": map[string]any{
							"step":   map[string]any{"type": "string"},
							"status": map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
						},
					},
				},
			},
		},
	}
}
