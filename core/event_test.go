package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("run-123", "authorA")
	if e.Author != "authorA" || e.RunID != "run-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	msg := NewMessageEvent("run-123", "agent1", "hello world")
	if msg.Content == nil || msg.Content.Role != RoleAssistant || msg.Text() != "hello world" {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	user := NewUserMessageEvent("run-123", "hi")
	if user.Content == nil || user.Content.Role != RoleUser || user.Author != RoleUser {
		t.Fatalf("NewUserMessageEvent malformed: %+v", user)
	}

	call := NewEvent("run-123", "agent2")
	call.Content = &Content{Role: RoleAssistant, Parts: []Part{
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "do_math", Arguments: `{"a":1}`}},
	}}
	calls := call.GetFunctionCalls()
	if len(calls) != 1 || calls[0].Name != "do_math" || calls[0].Arguments != `{"a":1}` {
		t.Fatalf("GetFunctionCalls extraction failed: %+v", calls)
	}

	ok := NewFunctionResponseEvent("run-123", "agent2", "call-1", "do_math", 42, nil)
	resps := ok.GetFunctionResponses()
	if len(resps) != 1 || resps[0].Response.(int) != 42 || resps[0].Error != "" {
		t.Fatalf("Function response success extraction failed: %+v", resps)
	}

	failed := NewFunctionResponseEvent("run-123", "agent2", "call-2", "do_math", nil, errors.New("boom"))
	resps = failed.GetFunctionResponses()
	if resps[0].Error != "boom" {
		t.Fatalf("Expected error message in function response: %+v", resps[0])
	}

	errEv := NewErrorEvent("run-123", "agent2", errors.New("bad"))
	if errEv.ErrorMessage == nil || *errEv.ErrorMessage != "bad" || errEv.Content != nil {
		t.Fatalf("NewErrorEvent malformed: %+v", errEv)
	}
}

func TestEvent_IsFinalResponseLogic(t *testing.T) {
	e := NewMessageEvent("run", "agent", "done")
	if !e.IsFinalResponse() {
		t.Error("Expected plain message to be final")
	}

	partial := true
	e2 := NewMessageEvent("run", "agent", "par")
	e2.Partial = &partial
	if e2.IsFinalResponse() {
		t.Error("Partial event should not be final")
	}

	e3 := NewEvent("run", "agent")
	e3.Content = &Content{Role: RoleAssistant, Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{Name: "f"}}}}
	if e3.IsFinalResponse() {
		t.Error("Event with function call should not be final")
	}

	e4 := NewFunctionResponseEvent("run", "agent", "id", "f", "x", nil)
	if e4.IsFinalResponse() {
		t.Error("Event with function response should not be final")
	}
}

func TestEvent_StopRequested(t *testing.T) {
	e := NewEvent("run", "agent")
	if e.StopRequested() {
		t.Fatal("fresh event must not request stop")
	}
	stop := true
	e.Actions.StopLoop = &stop
	if !e.StopRequested() {
		t.Fatal("expected stop request")
	}
}

type stringer struct{}

func (stringer) String() string { return "custom" }

func TestFunctionResponse_Text(t *testing.T) {
	tests := []struct {
		name string
		fr   FunctionResponse
		want string
	}{
		{"string", FunctionResponse{Response: "plain"}, "plain"},
		{"nil", FunctionResponse{}, ""},
		{"map", FunctionResponse{Response: map[string]any{"a": 1}}, `{"a":1}`},
		{"number", FunctionResponse{Response: 3.5}, "3.5"},
		{"stringer", FunctionResponse{Response: stringer{}}, "custom"},
		{"error wins", FunctionResponse{Response: "ignored", Error: "boom"}, "error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fr.Text(); got != tt.want {
				t.Fatalf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContent_Text(t *testing.T) {
	var nilContent *Content
	if nilContent.Text() != "" {
		t.Fatal("nil content should render empty")
	}
	c := &Content{Role: RoleAssistant, Parts: []Part{
		TextPart{Text: "a"},
		DataPart{Data: map[string]any{"x": 1}},
		TextPart{Text: "b"},
	}}
	if c.Text() != "ab" {
		t.Fatalf("unexpected text %q", c.Text())
	}
}
