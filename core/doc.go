// Package core provides the foundational types shared by the agent loop, the
// tools and the model adapters:
//
//   - Identity (per-process agent id used as ntfy author and channel suffix)
//   - Content and Parts (role-tagged text, data and function call segments)
//   - Events (immutable transcript records with orchestration actions)
//   - Session (per-run transcript with conversation history trimming)
//   - RunContext / ToolContext (scoped execution for a run and a tool call)
//
// Persistence and orchestration live elsewhere; this package only defines the
// data that flows between them.
package core
