package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rahul/stratagent/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// stubModel records the last call and answers with a fixed response.
type stubModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	m.opts = llms.CallOptions{}
	for _, o := range options {
		o(&m.opts)
	}
	return m.resp, m.err
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLLMCompleter_Complete(t *testing.T) {
	model := &stubModel{
		resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
			Content:        "refined",
			GenerationInfo: map[string]any{"PromptTokens": 12, "CompletionTokens": 34},
		}}},
	}
	c := NewStaticCompleter(model)

	resp, err := c.Complete(context.Background(), Request{
		System:      "sys",
		Prompt:      "user prompt",
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "refined" || resp.PromptTokens != 12 || resp.CompletionTokens != 34 {
		t.Errorf("Unexpected response: %+v", resp)
	}

	if len(model.messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(model.messages))
	}
	if model.messages[0].Role != schema.ChatMessageTypeSystem || model.messages[1].Role != schema.ChatMessageTypeHuman {
		t.Errorf("Unexpected roles: %s, %s", model.messages[0].Role, model.messages[1].Role)
	}
	if text := model.messages[1].Parts[0].(llms.TextContent).Text; text != "user prompt" {
		t.Errorf("Unexpected user content: %q", text)
	}
	if model.opts.Temperature != 0.7 || model.opts.MaxTokens != 1000 {
		t.Errorf("Unexpected options: temperature=%v max_tokens=%d", model.opts.Temperature, model.opts.MaxTokens)
	}
}

func TestLLMCompleter_Errors(t *testing.T) {
	boom := errors.New("401 unauthorized")
	c := NewStaticCompleter(&stubModel{err: boom})
	if _, err := c.Complete(context.Background(), Request{Prompt: "p"}); !errors.Is(err, boom) {
		t.Errorf("Expected model error, got %v", err)
	}

	c = NewStaticCompleter(&stubModel{resp: &llms.ContentResponse{}})
	if _, err := c.Complete(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestLLMCompleter_RebuildsOnCredentialChange(t *testing.T) {
	var built []string
	model := &stubModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}
	c := NewLLMCompleter(func(credential string) (llms.Model, error) {
		built = append(built, credential)
		return model, nil
	})

	ctx := context.Background()
	for _, key := range []string{"a", "a", "b"} {
		if _, err := c.Complete(ctx, Request{Prompt: "p", Credential: key}); err != nil {
			t.Fatal(err)
		}
	}
	if len(built) != 2 || built[0] != "a" || built[1] != "b" {
		t.Errorf("Unexpected factory calls: %v", built)
	}
}

func TestLLMCompleter_FactoryError(t *testing.T) {
	c := NewLLMCompleter(func(string) (llms.Model, error) {
		return nil, errors.New("missing token")
	})
	if _, err := c.Complete(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Error("Expected factory error")
	}
}

func TestNewOpenAIFactory(t *testing.T) {
	factory := NewOpenAIFactory(config.ProviderConfig{
		Model:   "openai/gpt-4o-mini",
		BaseURL: "https://openrouter.ai/api/v1",
	})
	model, err := factory("sk-test")
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if model == nil {
		t.Fatal("Expected a model")
	}
}
