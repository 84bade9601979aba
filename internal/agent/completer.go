package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rahul/stratagent/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoCredential is returned when a completion is requested without a key.
var ErrNoCredential = errors.New("no API credential configured")

// Request is one call to the completion service.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// Credential authenticates the call. It is never logged.
	Credential string `json:"-"`
}

// Response is the text of the first choice plus usage, when reported.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Completer is the completion service seen by the workflow.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ModelFactory builds a model authenticated with credential.
type ModelFactory func(credential string) (llms.Model, error)

// LLMCompleter sends completions through a langchaingo model. The model is
// built lazily and rebuilt only when the credential changes.
type LLMCompleter struct {
	factory ModelFactory

	mu         sync.Mutex
	model      llms.Model
	credential string
}

func NewLLMCompleter(factory ModelFactory) *LLMCompleter {
	return &LLMCompleter{factory: factory}
}

// NewStaticCompleter wraps a ready model and ignores the request credential.
func NewStaticCompleter(model llms.Model) *LLMCompleter {
	return &LLMCompleter{
		factory: func(string) (llms.Model, error) { return model, nil },
	}
}

// NewOpenAIFactory returns a factory for OpenAI-compatible endpoints
// (OpenAI itself, or OpenRouter via base_url).
func NewOpenAIFactory(p config.ProviderConfig) ModelFactory {
	return func(credential string) (llms.Model, error) {
		opts := []openai.Option{
			openai.WithToken(credential),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	}
}

func (c *LLMCompleter) modelFor(credential string) (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != nil && c.credential == credential {
		return c.model, nil
	}
	m, err := c.factory(credential)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model: %w", err)
	}
	c.model = m
	c.credential = credential
	return m, nil
}

func (c *LLMCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	model, err := c.modelFor(req.Credential)
	if err != nil {
		return Response{}, err
	}

	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return Response{}, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, errors.New("completion returned no choices")
	}

	choice := resp.Choices[0]
	return Response{
		Text:             choice.Content,
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
