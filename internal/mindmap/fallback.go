package mindmap

import (
	"context"
	"fmt"
	"log/slog"
)

type fallbackGenerator struct {
	next Generator
}

// WithFallback wraps next so that any failure is logged and replaced with
// templated content. It never returns an error.
func WithFallback(next Generator) Generator {
	return &fallbackGenerator{next: next}
}

func (g *fallbackGenerator) Subtopics(ctx context.Context, topic string) ([]string, error) {
	items, err := g.next.Subtopics(ctx, topic)
	if err == nil {
		return items, nil
	}
	slog.Warn("subtopic generation failed, using fallback", "topic", topic, "err", err)
	return FallbackSubtopics(topic), nil
}

func (g *fallbackGenerator) Steps(ctx context.Context, topic string) ([]string, error) {
	items, err := g.next.Steps(ctx, topic)
	if err == nil {
		return items, nil
	}
	slog.Warn("step generation failed, using fallback", "topic", topic, "err", err)
	return FallbackSteps(topic), nil
}

func (g *fallbackGenerator) Analysis(ctx context.Context, topic string) (string, error) {
	text, err := g.next.Analysis(ctx, topic)
	if err == nil {
		return text, nil
	}
	slog.Warn("analysis failed, using fallback", "topic", topic, "err", err)
	return FallbackAnalysis(topic), nil
}

func FallbackSubtopics(topic string) []string {
	return []string{
		fmt.Sprintf("Research and planning for %s", topic),
		fmt.Sprintf("Preparation and setup for %s", topic),
		fmt.Sprintf("Implementation of %s", topic),
		fmt.Sprintf("Testing and validation of %s", topic),
		fmt.Sprintf("Completion and review of %s", topic),
	}
}

func FallbackSteps(topic string) []string {
	return []string{
		fmt.Sprintf("Plan and research %s", topic),
		fmt.Sprintf("Gather necessary resources for %s", topic),
		fmt.Sprintf("Begin implementation of %s", topic),
		fmt.Sprintf("Complete the main work for %s", topic),
		fmt.Sprintf("Review and finalize %s", topic),
	}
}

func FallbackAnalysis(topic string) string {
	return fmt.Sprintf("Analysis of %s: This task requires systematic approach and careful execution.", topic)
}
