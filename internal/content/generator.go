// Package content generates the text payload a task delivers: LLM-backed
// facts and lessons for summary/learning tasks, templated one-liners for
// the rest. The engine treats the payload as opaque.
package content

import (
	"context"
	"errors"
	"fmt"

	"taskmill/internal/task"
)

var ErrUnsupportedKind = errors.New("unsupported content kind")

// Generator produces content for a task kind. Failures propagate as task
// failures, never as engine crashes.
type Generator interface {
	Generate(ctx context.Context, kind task.Kind, p task.Params) (string, error)
}

type Config struct {
	Provider string // "template" (default) or "ollama"
	Host     string
	Model    string
}

// New selects the configured provider.
func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "", "template":
		return Template{}, nil
	case "ollama":
		return newOllama(cfg), nil
	default:
		return nil, fmt.Errorf("unknown content provider %q", cfg.Provider)
	}
}

// Template is a deterministic generator used when no LLM endpoint is
// configured, and in tests.
type Template struct{}

func (Template) Generate(_ context.Context, kind task.Kind, p task.Params) (string, error) {
	switch kind {
	case task.KindSummary:
		sp, _ := p.(task.SummaryParams)
		return fmt.Sprintf("Summary about %s", orTopic(sp.Target)), nil
	case task.KindLearning:
		lp, _ := p.(task.LearningParams)
		return fmt.Sprintf("Lesson on %s", orTopic(lp.Topic)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

func orTopic(s string) string {
	if s == "" {
		return "your topic"
	}
	return s
}
