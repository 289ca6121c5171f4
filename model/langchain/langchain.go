// Package langchain adapts any langchaingo llms.Model (Google AI, Ollama,
// Mistral, ...) to model.Model.
package langchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/model"
)

// Options configure the adapter.
type Options struct {
	Name        string // Reported in Info
	Provider    string // Reported in Info
	Temperature float64
	MaxTokens   int
}

// Model wraps an llms.Model.
type Model struct {
	llm  llms.Model
	opts Options
}

// NewModel wraps llm.
func NewModel(llm llms.Model, optFns ...func(o *Options)) *Model {
	opts := Options{
		Name:        "langchain",
		Provider:    "langchain",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{llm: llm, opts: opts}
}

// NewGoogleAI builds a Gemini backed model through langchaingo's googleai
// provider.
func NewGoogleAI(ctx context.Context, apiKey, modelName string, optFns ...func(o *Options)) (*Model, error) {
	if apiKey == "" {
		return nil, errors.New("googleai: api key required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("googleai: %w", err)
	}

	fns := append([]func(o *Options){func(o *Options) {
		o.Name = modelName
		o.Provider = "googleai"
	}}, optFns...)
	return NewModel(llm, fns...), nil
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		callOpts := []llms.CallOption{
			llms.WithTemperature(m.opts.Temperature),
			llms.WithMaxTokens(m.opts.MaxTokens),
		}
		if len(req.Tools) > 0 {
			callOpts = append(callOpts, llms.WithTools(buildTools(req.Tools)))
		}
		if req.Stream {
			callOpts = append(callOpts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				select {
				case out <- model.Response{Partial: true, Content: *core.NewTextContent(core.RoleAssistant, string(chunk))}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}))
		}

		resp, err := m.llm.GenerateContent(ctx, buildMessages(req), callOpts...)
		if err != nil {
			errCh <- fmt.Errorf("langchain generate: %w", err)
			return
		}
		if resp == nil || len(resp.Choices) == 0 {
			errCh <- errors.New("langchain generate: no choices returned")
			return
		}

		out <- toResponse(resp.Choices[0])
	}()

	return out, errCh
}

func toResponse(choice *llms.ContentChoice) model.Response {
	parts := make([]core.Part, 0, len(choice.ToolCalls)+1)
	if choice.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		}})
	}

	finish := choice.StopReason
	if finish == "" {
		finish = "stop"
	}

	return model.Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finish,
	}
}

func buildMessages(req model.Request) []llms.MessageContent {
	var msgs []llms.MessageContent
	if req.Instructions != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.Instructions))
	}

	for _, c := range req.Contents {
		switch c.Role {
		case core.RoleSystem:
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, c.Text()))
		case core.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			for _, p := range c.Parts {
				switch part := p.(type) {
				case core.TextPart:
					if part.Text != "" {
						mc.Parts = append(mc.Parts, llms.TextContent{Text: part.Text})
					}
				case core.FunctionCallPart:
					mc.Parts = append(mc.Parts, llms.ToolCall{
						ID:   part.FunctionCall.ID,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: part.FunctionCall.Arguments,
						},
					})
				}
			}
			if len(mc.Parts) > 0 {
				msgs = append(msgs, mc)
			}
		case core.RoleTool:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeTool}
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok {
					mc.Parts = append(mc.Parts, llms.ToolCallResponse{
						ToolCallID: fr.FunctionResponse.ID,
						Name:       fr.FunctionResponse.Name,
						Content:    fr.FunctionResponse.Text(),
					})
				}
			}
			if len(mc.Parts) > 0 {
				msgs = append(msgs, mc)
			}
		default:
			if text := c.Text(); text != "" {
				msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, text))
			}
		}
	}
	return msgs
}

func buildTools(defs []model.ToolDefinition) []llms.Tool {
	tools := make([]llms.Tool, len(defs))
	for i, d := range defs {
		tools[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Function.Name,
				Description: d.Function.Description,
				Parameters:  d.Function.Parameters,
			},
		}
	}
	return tools
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Name, Provider: m.opts.Provider, SupportsTools: true}
}
