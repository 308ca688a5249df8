package task

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Params is the kind-specific parameter set handed to the content
// generator. Modeling it as a tagged union (instead of an untyped map)
// gives the executor's kind-specific branches compile-time coverage.
type Params interface {
	ParamsKind() Kind
}

type ReminderParams struct {
	Target   string `json:"target"`
	Priority string `json:"priority,omitempty"` // low, medium, high
}

func (ReminderParams) ParamsKind() Kind { return KindReminder }

type SummaryParams struct {
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
	Format string `json:"format,omitempty"` // short, detailed
	Count  int    `json:"count,omitempty"`
}

func (SummaryParams) ParamsKind() Kind { return KindSummary }

type FetchParams struct {
	Target string `json:"target"`
	Count  int    `json:"count,omitempty"`
	Format string `json:"format,omitempty"` // facts, article, summary
}

func (FetchParams) ParamsKind() Kind { return KindFetch }

type LearningSource struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type LearningParams struct {
	Topic      string           `json:"topic"`
	Format     string           `json:"format,omitempty"`     // article_link, summary, facts
	Difficulty string           `json:"difficulty,omitempty"` // beginner, intermediate, advanced
	Sources    []LearningSource `json:"sources,omitempty"`
}

func (LearningParams) ParamsKind() Kind { return KindLearning }

// EncodeParams serializes params for persistence. Nil params encode as an
// empty string.
func EncodeParams(p Params) (string, error) {
	if p == nil {
		return "", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(b), nil
}

// DecodeParams restores the typed parameter set for a kind. An empty raw
// payload yields the kind's zero-value params so callers never branch on nil.
func DecodeParams(kind Kind, raw string) (Params, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	var (
		p   Params
		err error
	)
	switch kind {
	case KindReminder:
		var v ReminderParams
		err = json.Unmarshal([]byte(raw), &v)
		p = v
	case KindSummary:
		var v SummaryParams
		err = json.Unmarshal([]byte(raw), &v)
		p = v
	case KindFetch:
		var v FetchParams
		err = json.Unmarshal([]byte(raw), &v)
		p = v
	case KindLearning:
		var v LearningParams
		err = json.Unmarshal([]byte(raw), &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s params: %w", kind, err)
	}
	return p, nil
}
