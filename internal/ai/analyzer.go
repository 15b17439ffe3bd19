// Package ai runs the deep analysis pass against a model provider and
// recovers structured results from the response stream.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
	"github.com/ovidijusr/shieldai/internal/pkg/errors"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/stream"
)

// Analyzer streams snapshots through a chat model and extracts the audit
// report from the token stream.
type Analyzer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

// NewAnalyzer creates an analyzer. An empty model falls back to GPT-4o.
func NewAnalyzer(apiKey, model string, timeout time.Duration, log *logger.Logger) (*Analyzer, error) {
	if apiKey == "" {
		return nil, errors.ValidationError("model provider API key is not configured", nil)
	}
	if model == "" {
		model = openai.GPT4o
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Analyzer{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		log:     log,
	}, nil
}

const systemPrompt = `You are a container security auditor. You receive a JSON snapshot of a host's container infrastructure plus findings already produced by deterministic checks. Produce a deeper analysis.

Return ONLY a JSON object, no prose, with this shape:
{
  "security_score": <0-100>,
  "summary": "<one paragraph>",
  "findings": [{"severity": "critical|high|medium|low|info", "category": "<snake_case>", "title": "...", "container": "<name or empty>", "description": "...", "risk": "...", "fix": {"kind": "config_replace|host_command|manual", "target_path": "...", "content": "<full replacement file content>", "commands": [], "side_effects": [], "requires_restart": true, "restart_target": "<container>"}}],
  "good_practices": [{"title": "...", "category": "..."}],
  "recommendations": [{"priority": "high|medium|low", "title": "...", "description": "..."}]
}

For config_replace fixes, content must be the complete replacement file, not a fragment. Do not repeat the deterministic findings; extend them.`

// Analyze sends the snapshot and seed findings to the model and returns the
// extractor's result stream. The stream always terminates with an aggregate
// report; when the model output is unusable it is a degraded report carrying
// the seed findings. Transport errors before any token arrives are returned
// directly.
func (a *Analyzer) Analyze(ctx context.Context, snap *audit.Snapshot, seed []finding.Finding) (<-chan stream.Result, error) {
	prompt, err := buildPrompt(snap, seed)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)

	chatStream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		cancel()
		return nil, errors.ProviderAPIError("OpenAI", err)
	}

	fragments := make(chan string)
	go func() {
		defer cancel()
		defer close(fragments)
		defer chatStream.Close()
		for {
			resp, err := chatStream.Recv()
			if err != nil {
				if err != io.EOF {
					a.log.ErrorWithErr(err, "Model stream ended with error, extracting from partial output")
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case fragments <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()

	extractor := stream.New(seed, a.log)
	return extractor.Run(ctx, fragments), nil
}

// buildPrompt renders the snapshot and seed findings as the user message.
// Environment variable values are redacted before leaving the host.
func buildPrompt(snap *audit.Snapshot, seed []finding.Finding) (string, error) {
	redacted := redactSnapshot(snap)

	snapJSON, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return "", errors.Internal("failed to encode snapshot", err)
	}
	seedJSON, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return "", errors.Internal("failed to encode findings", err)
	}

	return fmt.Sprintf("Infrastructure snapshot:\n%s\n\nDeterministic findings already raised:\n%s\n",
		snapJSON, seedJSON), nil
}

// redactSnapshot copies the snapshot with env values masked. Keys stay
// visible so the model can still reason about configuration shape.
func redactSnapshot(snap *audit.Snapshot) *audit.Snapshot {
	out := *snap
	out.Containers = make([]audit.Container, len(snap.Containers))
	copy(out.Containers, snap.Containers)
	for i := range out.Containers {
		env := out.Containers[i].Env
		masked := make([]string, len(env))
		for j, kv := range env {
			if idx := strings.IndexByte(kv, '='); idx >= 0 {
				masked[j] = kv[:idx] + "=***"
			} else {
				masked[j] = kv
			}
		}
		out.Containers[i].Env = masked
	}
	return &out
}
