package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taskmill/internal/task"
)

// ollamaClient talks to a local Ollama server's /api/chat endpoint.
type ollamaClient struct {
	host  string
	model string
	http  *http.Client
}

func newOllama(cfg Config) *ollamaClient {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "llama2"
	}
	return &ollamaClient{
		host:  host,
		model: model,
		http:  &http.Client{Timeout: 90 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

func (c *ollamaClient) Generate(ctx context.Context, kind task.Kind, p task.Params) (string, error) {
	var system, user string
	var sources []task.LearningSource

	switch kind {
	case task.KindSummary:
		sp, _ := p.(task.SummaryParams)
		topic := orTopic(sp.Target)
		count := sp.Count
		if count <= 0 {
			count = 2
		}
		style := "Format each fact as a bullet point starting with •."
		if sp.Format == "detailed" {
			style = "Format as a cohesive paragraph."
		}
		system = fmt.Sprintf("You are a helpful assistant that provides interesting and accurate facts about %s. Focus on lesser-known, fascinating, or educational facts.", topic)
		user = fmt.Sprintf("Please provide %d interesting facts about %s. %s", count, topic, style)

	case task.KindLearning:
		lp, _ := p.(task.LearningParams)
		topic := orTopic(lp.Topic)
		difficulty := lp.Difficulty
		if difficulty == "" {
			difficulty = "beginner"
		}
		system = fmt.Sprintf("You are a friendly and engaging teacher explaining %s to a %s student. "+
			"Use analogies, examples, and a conversational tone. Format the content as a lesson with "+
			"a brief introduction, key points, a real-world example, a fun fact, and a thought-provoking question.",
			topic, difficulty)
		user = fmt.Sprintf("Please teach me about %s at a %s level.", topic, difficulty)
		sources = lp.Sources

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}

	out, err := c.chat(ctx, system, user)
	if err != nil {
		return "", err
	}

	if len(sources) > 0 {
		var b strings.Builder
		b.WriteString(out)
		b.WriteString("\n\nWant to learn more? Check out these resources:\n")
		for _, src := range sources {
			fmt.Fprintf(&b, "- %s: %s\n", src.Name, src.URL)
		}
		out = b.String()
	}
	return out, nil
}

func (c *ollamaClient) chat(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama chat: unexpected status %s", resp.Status)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("ollama chat: decode response: %w", err)
	}
	if strings.TrimSpace(cr.Message.Content) == "" {
		return "", fmt.Errorf("ollama chat: empty response")
	}
	return cr.Message.Content, nil
}
