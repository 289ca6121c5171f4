// Package model defines the provider-agnostic abstractions for talking to
// language models.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, FunctionCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate offline runs and tests (MockModel with scripted responses)
//
// Providers live in sub-packages: openai, anthropic and langchain (any
// langchaingo llms.Model, e.g. Google AI).
package model
