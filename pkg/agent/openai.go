package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ormasoftchile/webrun/pkg/driver"
)

const systemPrompt = `You operate a web browser to carry out one task.

Rules:
- Target elements by their visible text or label, exactly as shown on the page.
- One page-changing action (navigate, submit, link click) must be the last call in a turn.
- When the task is complete, call "done" with a report. Never announce completion in plain text.
- If an element cannot be found, re-read the page state and try a different label.`

// actionRecord is one executed tool call, kept for the next turn's context.
type actionRecord struct {
	Thought string `json:"thought,omitempty"`
	Action  string `json:"action"`
	Args    string `json:"args"`
	Result  string `json:"result"`
}

// OpenAI drives delegated tasks through an OpenAI-compatible chat API,
// executing the model's tool calls against the browser driver. It also
// serves as the compiler's suggestion-pass client.
type OpenAI struct {
	client *openai.Client
	model  string
	driver driver.Driver
}

// NewOpenAI builds a client. baseURL is optional and selects a compatible
// alternative endpoint. drv may be nil when the client is only used for
// compile-time suggestions.
func NewOpenAI(apiKey, model, baseURL string, drv driver.Driver) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: model, driver: drv}
}

func (a *OpenAI) ModelName() string { return a.model }

// Complete sends a single prompt pair and returns the raw completion text.
func (a *OpenAI) Complete(ctx context.Context, systemMsg, userMsg string) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemMsg),
			openai.UserMessage(userMsg),
		},
		Temperature: openai.Opt[float64](0),
	})
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// RunTask loops the model over the page until it calls done or the step
// budget runs out. Each turn re-reads the page so the model always sees
// current state.
func (a *OpenAI) RunTask(ctx context.Context, task string, maxSteps int) (*TaskResult, error) {
	if a.driver == nil {
		return nil, fmt.Errorf("agent has no browser driver")
	}

	var history []actionRecord
	for step := 1; step <= maxSteps; step++ {
		pageText, err := a.driver.Extract(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("read page state: %w", err)
		}

		resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       a.model,
			Messages:    buildMessages(task, history, pageText),
			Tools:       browserTools(),
			Temperature: openai.Opt[float64](0.1),
		})
		if err != nil {
			return nil, fmt.Errorf("agent turn %d: %w", step, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("agent turn %d: no choices", step)
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			history = append(history, actionRecord{
				Action: "none", Result: "no tool called; respond with tool calls only",
			})
			continue
		}

		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("parse %s arguments: %w", tc.Function.Name, err)
			}
			if tc.Function.Name == doneTool {
				report, _ := args["report"].(string)
				return &TaskResult{Report: report, Steps: step}, nil
			}

			result, err := runTool(ctx, a.driver, tc.Function.Name, args)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", tc.Function.Name, err)
			}
			history = append(history, actionRecord{
				Thought: msg.Content,
				Action:  tc.Function.Name,
				Args:    tc.Function.Arguments,
				Result:  result,
			})
		}
	}
	return nil, &BudgetExceededError{Task: task, MaxSteps: maxSteps}
}

// buildMessages assembles the full context for one turn: system rules, the
// action log as JSONL, then the task and current page text.
func buildMessages(task string, history []actionRecord, pageText string) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}

	if len(history) > 0 {
		var b strings.Builder
		b.WriteString("PREVIOUS ACTIONS (read-only log):\n")
		for i, rec := range history {
			entry, _ := json.Marshal(map[string]any{
				"step":    i + 1,
				"thought": rec.Thought,
				"action":  rec.Action,
				"args":    rec.Args,
				"result":  rec.Result,
			})
			b.Write(entry)
			b.WriteByte('\n')
		}
		messages = append(messages, openai.UserMessage(b.String()))
	}

	messages = append(messages, openai.UserMessage(fmt.Sprintf(
		"TASK: %s\n\nCURRENT PAGE TEXT:\n%s", task, pageText)))
	return messages
}
