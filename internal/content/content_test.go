package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskmill/internal/task"
)

func TestNewSelectsProvider(t *testing.T) {
	t.Parallel()

	g, err := New(Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := g.(Template); !ok {
		t.Fatalf("default provider is %T, want Template", g)
	}

	g, err = New(Config{Provider: "ollama"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := g.(*ollamaClient); !ok {
		t.Fatalf("provider is %T, want ollama", g)
	}

	if _, err := New(Config{Provider: "gpt9"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestTemplateGenerate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := Template{}

	out, err := g.Generate(ctx, task.KindSummary, task.SummaryParams{Target: "space"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out != "Summary about space" {
		t.Fatalf("Generate = %q", out)
	}

	out, err = g.Generate(ctx, task.KindLearning, task.LearningParams{})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out != "Lesson on your topic" {
		t.Fatalf("Generate = %q", out)
	}

	if _, err := g.Generate(ctx, task.KindReminder, task.ReminderParams{}); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("err = %v, want ErrUnsupportedKind", err)
	}
}

func TestOllamaGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "testmodel" {
			t.Errorf("model = %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "Two facts about space."}})
	}))
	defer srv.Close()

	g := newOllama(Config{Host: srv.URL, Model: "testmodel"})
	out, err := g.Generate(context.Background(), task.KindSummary, task.SummaryParams{Target: "space", Count: 2})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out != "Two facts about space." {
		t.Fatalf("Generate = %q", out)
	}
}

func TestOllamaAppendsLearningSources(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "A lesson on Go."}})
	}))
	defer srv.Close()

	g := newOllama(Config{Host: srv.URL})
	out, err := g.Generate(context.Background(), task.KindLearning, task.LearningParams{
		Topic:   "go",
		Sources: []task.LearningSource{{Name: "blog", URL: "https://go.dev/blog"}},
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !strings.Contains(out, "A lesson on Go.") || !strings.Contains(out, "- blog: https://go.dev/blog") {
		t.Fatalf("Generate = %q", out)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newOllama(Config{Host: srv.URL})
	if _, err := g.Generate(context.Background(), task.KindSummary, task.SummaryParams{}); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestOllamaRejectsUnsupportedKind(t *testing.T) {
	t.Parallel()
	g := newOllama(Config{})
	if _, err := g.Generate(context.Background(), task.KindFetch, task.FetchParams{}); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("err = %v, want ErrUnsupportedKind", err)
	}
}
