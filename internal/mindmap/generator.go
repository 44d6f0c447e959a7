package mindmap

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/llamamind/mindmap/plugin/llm"
)

const (
	// ItemCount is the number of subtopics or steps produced per call.
	ItemCount = 5

	subtopicTokens = 200
	stepTokens     = 250
	analysisTokens = 150
)

// Generator produces the text content of a tree.
type Generator interface {
	Subtopics(ctx context.Context, topic string) ([]string, error)
	Steps(ctx context.Context, topic string) ([]string, error)
	Analysis(ctx context.Context, topic string) (string, error)
}

// Gateway is the part of llm.Client the generator needs.
type Gateway interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

type llmGenerator struct {
	gateway Gateway
}

// NewLLMGenerator builds prompts for gateway. A nil gateway yields a
// generator whose every call fails with llm.ErrMissingToken.
func NewLLMGenerator(gateway Gateway) Generator {
	return &llmGenerator{gateway: gateway}
}

func (g *llmGenerator) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if g.gateway == nil {
		return "", &llm.Error{Kind: llm.KindUpstream, Err: llm.ErrMissingToken}
	}
	return g.gateway.Generate(ctx, prompt, maxTokens)
}

func (g *llmGenerator) Subtopics(ctx context.Context, topic string) ([]string, error) {
	prompt := fmt.Sprintf(`Break down the following task into exactly 5 smaller, actionable sub-tasks.
Each sub-task must be distinct, specific, and contribute to completing the main task.

Task: %s

Return exactly 5 sub-tasks, one per line, without numbering or bullet points.`, topic)
	text, err := g.generate(ctx, prompt, subtopicTokens)
	if err != nil {
		return nil, err
	}
	return llm.ParseList(text, ItemCount), nil
}

func (g *llmGenerator) Steps(ctx context.Context, topic string) ([]string, error) {
	prompt := fmt.Sprintf(`Create exactly 5 clear, actionable steps to complete the following task.
Each step should be practical and easy to follow.

Task: %s

Return exactly 5 steps, one per line, without numbering or bullet points.`, topic)
	text, err := g.generate(ctx, prompt, stepTokens)
	if err != nil {
		return nil, err
	}
	return llm.ParseList(text, ItemCount), nil
}

func (g *llmGenerator) Analysis(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf(`Analyze the following task in no more than 100 words.
Identify the core objective, key requirements, and potential challenges.

Task: %s

Return a single paragraph analysis.`, topic)
	text, err := g.generate(ctx, prompt, analysisTokens)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &llm.Error{Kind: llm.KindUpstream, Err: errors.New("empty analysis")}
	}
	return text, nil
}
