package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/promptdeck/engine/pkg/types"
)

const defaultModel = "gpt-4o"

// AssertionTimeout bounds assertion-suggestion calls; the model reads the
// whole project and can be slow.
const AssertionTimeout = 2 * time.Minute

// Client is the OpenAI-backed Generator implementation.
type Client struct {
	api    *openai.Client
	model  string
	logger *slog.Logger
}

// NewClient creates a Client. model defaults to gpt-4o when empty.
func NewClient(apiKey, model string, logger *slog.Logger) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		api:    openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// completeJSON sends a single-turn chat request in JSON mode and returns the
// raw response content.
func (c *Client) completeJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// projectSummary renders the parts of the project the generator needs as
// prompt context.
func projectSummary(p *types.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", p.Name)
	for _, pr := range p.Prompts {
		fmt.Fprintf(&b, "Prompt: %s\n", pr.Text)
	}
	if p.Dataset != nil && len(p.Dataset.Rows) > 0 {
		fmt.Fprintf(&b, "Dataset columns: %s\n", strings.Join(p.Dataset.Headers, ", "))
		sample, _ := json.Marshal(p.Dataset.Rows[0])
		fmt.Fprintf(&b, "First row: %s\n", sample)
	}
	return b.String()
}

func (c *Client) GenerateColumn(ctx context.Context, column string, project *types.Project) ([]string, error) {
	if project.Dataset == nil || len(project.Dataset.Rows) == 0 {
		return nil, fmt.Errorf("generate column %q: dataset has no rows", column)
	}

	rows, err := json.Marshal(project.Dataset.Rows)
	if err != nil {
		return nil, fmt.Errorf("generate column %q: marshal rows: %w", column, err)
	}

	user := fmt.Sprintf(
		"%s\nExisting rows:\n%s\n\nGenerate a value of the column %q for each row, in order. Respond with a JSON object {\"values\": [...]} containing exactly %d strings.",
		projectSummary(project), rows, column, len(project.Dataset.Rows))

	content, err := c.completeJSON(ctx,
		"You generate test dataset columns for LLM evaluation projects. Values must be realistic and consistent with each row.",
		user)
	if err != nil {
		return nil, fmt.Errorf("generate column %q: %w", column, err)
	}

	var parsed struct {
		Values []string `json:"values"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("generate column %q: parse response: %w", column, err)
	}
	if len(parsed.Values) != len(project.Dataset.Rows) {
		return nil, fmt.Errorf("generate column %q: got %d values for %d rows",
			column, len(parsed.Values), len(project.Dataset.Rows))
	}
	return parsed.Values, nil
}

func (c *Client) GenerateRows(ctx context.Context, project *types.Project, count int) ([]map[string]string, error) {
	user := fmt.Sprintf(
		"%s\nGenerate %d diverse test-case rows exercising the prompt's template variables. Respond with a JSON object {\"rows\": [{...}, ...]} where each row maps variable name to value.",
		projectSummary(project), count)

	content, err := c.completeJSON(ctx,
		"You generate test datasets for LLM evaluation projects.", user)
	if err != nil {
		return nil, fmt.Errorf("generate rows: %w", err)
	}

	var parsed struct {
		Rows []map[string]string `json:"rows"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("generate rows: parse response: %w", err)
	}
	if len(parsed.Rows) == 0 {
		return nil, fmt.Errorf("generate rows: empty response")
	}
	return parsed.Rows, nil
}

func (c *Client) GenerateAssertions(ctx context.Context, project *types.Project) ([]types.Assertion, error) {
	ctx, cancel := context.WithTimeout(ctx, AssertionTimeout)
	defer cancel()

	user := fmt.Sprintf(
		"%s\nSuggest assertions to validate this project's outputs. Respond with a JSON object {\"assertions\": [...]} where each assertion has a type, and optionally value, rubric, threshold.",
		projectSummary(project))

	content, err := c.completeJSON(ctx,
		"You suggest pass/fail assertions for LLM evaluation projects. Use only well-known assertion types such as contains, llm-rubric, is-json, factuality, cost, latency.",
		user)
	if err != nil {
		return nil, fmt.Errorf("generate assertions: %w", err)
	}

	var parsed struct {
		Assertions []types.Assertion `json:"assertions"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("generate assertions: parse response: %w", err)
	}
	return parsed.Assertions, nil
}

func (c *Client) AnalyzeResults(ctx context.Context, results []byte) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem,
				Content: "You analyze LLM evaluation results. Summarize failure patterns and suggest concrete prompt or configuration improvements."},
			{Role: openai.ChatMessageRoleUser, Content: string(results)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("analyze results: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("analyze results: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
