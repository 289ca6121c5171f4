// Package agent implements the tool-calling model loop.
//
// An Agent sends the conversation plus tool declarations to a model.Model,
// executes any requested tool calls through a tool.Registry, appends the
// results and repeats until the model answers without tool calls, a tool
// calls stop_loop or the iteration cap is reached.
//
//	a := agent.New(identity, llm, func(o *agent.Options) {
//		o.Tools = registry
//		o.Instruction = agent.NewInstructionFromText("You are {{.agent_id}}.")
//	})
//	res, err := a.Run(ctx, "What is 2+2?")
//
// Tool failures do not abort a run; they are returned to the model as
// function responses carrying the error text.
package agent
