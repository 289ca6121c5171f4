package ntfytool

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/internal/testutil"
	"github.com/hupe1980/agentstarter/ntfy"
	"github.com/hupe1980/agentstarter/tool"
)

func setup(t *testing.T) (*testutil.Relay, *tool.Registry, *core.ToolContext) {
	t.Helper()
	relay := testutil.NewRelay()
	t.Cleanup(relay.Close)

	client, err := ntfy.NewClient(func(o *ntfy.Options) { o.BaseURL = relay.URL })
	require.NoError(t, err)

	reg, err := tool.NewRegistry(Tools(client, ntfy.DefaultChannels())...)
	require.NoError(t, err)

	identity := core.Identity{Name: "agent", Suffix: "1a2b3c4d"}
	return relay, reg, core.NewStandaloneToolContext(context.Background(), identity, nil)
}

func TestTools_Names(t *testing.T) {
	_, reg, _ := setup(t)
	assert.Equal(t, []string{
		"read_ntfy_messages",
		"post_ntfy_message",
		"notify_external_system",
		"send_private_message",
		"notify_user",
		"flag_user",
	}, reg.Names())
}

func TestReadTool(t *testing.T) {
	relay, reg, tc := setup(t)
	relay.Seed("agent_commands", "do the thing", `{"task":"sum"}`)

	out, err := reg.Execute(tc, "read_ntfy_messages", `{"channel":"agent_commands"}`)
	require.NoError(t, err)
	s := out.(string)
	assert.Contains(t, s, "Messages from 'agent_commands' (latest 2):")
	assert.Contains(t, s, "Message: do the thing")
	assert.Contains(t, s, "Parsed JSON:")

	out, err = reg.Execute(tc, "read_ntfy_messages", `{"channel":"agent_commands","limit":1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "(latest 1)")

	out, err = reg.Execute(tc, "read_ntfy_messages", `{"channel":"empty"}`)
	require.NoError(t, err)
	assert.Equal(t, "No messages found in channel: empty", out)
}

func TestReadTool_RelayError(t *testing.T) {
	relay, reg, tc := setup(t)
	relay.FailWith("gone", http.StatusNotFound)

	_, err := reg.Execute(tc, "read_ntfy_messages", `{"channel":"gone"}`)
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeExecution, te.Code)
	assert.ErrorIs(t, err, ntfy.ErrChannelNotFound)
}

func TestPostTool(t *testing.T) {
	relay, reg, tc := setup(t)

	out, err := reg.Execute(tc, "post_ntfy_message", `{"channel":"agent_sync","message":"short","title":"T"}`)
	require.NoError(t, err)
	assert.Equal(t, "Posted to 'agent_sync': short", out)

	long := strings.Repeat("x", 60)
	out, err = reg.Execute(tc, "post_ntfy_message", `{"channel":"agent_sync","message":"`+long+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "Posted to 'agent_sync': "+strings.Repeat("x", 50)+"...", out)

	stored := relay.Messages("agent_sync")
	require.Len(t, stored, 2)
	assert.Equal(t, "T", stored[0].Title)

	_, err = reg.Execute(tc, "post_ntfy_message", `{"channel":"agent_sync"}`)
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeValidation, te.Code)
}

func TestStatusTool(t *testing.T) {
	relay, reg, tc := setup(t)

	out, err := reg.Execute(tc, "notify_external_system", `{"status":"complete","message":"all done"}`)
	require.NoError(t, err)
	assert.Equal(t, "Posted to 'agent_sync': Agent agent_1a2b3c4d - COMPLETE", out)

	_, err = reg.Execute(tc, "notify_external_system", `{"agent_id":"agent_other","status":"error","message":"boom","error":true}`)
	require.NoError(t, err)

	stored := relay.Messages("agent_sync")
	require.Len(t, stored, 2)

	var first ntfy.StatusUpdate
	require.NoError(t, json.Unmarshal([]byte(stored[0].Message), &first))
	assert.Equal(t, "agent_1a2b3c4d", first.AgentID)
	assert.Equal(t, "all done", first.Message)
	assert.NotEmpty(t, first.Timestamp)

	assert.Equal(t, "Agent agent_other - ERROR [ERROR]", stored[1].Title)
	assert.Equal(t, 4, stored[1].Priority)
}

func TestChannelTools(t *testing.T) {
	relay, reg, tc := setup(t)
	channels := ntfy.DefaultChannels()

	tests := []struct {
		tool    string
		channel string
		title   string
		reply   string
	}{
		{"send_private_message", channels.Private, "Inner Scratch Pad", "Sent PM"},
		{"notify_user", channels.User, "User Notifications", "Sent Notification"},
		{"flag_user", channels.Flag, "Flagged User", "Flagged user"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			out, err := reg.Execute(tc, tt.tool, `{"message":"hello"}`)
			require.NoError(t, err)
			assert.Equal(t, tt.reply, out)

			stored := relay.Messages(tt.channel)
			require.Len(t, stored, 1)
			assert.Equal(t, "hello", stored[0].Message)
			assert.Equal(t, tt.title, stored[0].Title)
		})
	}
}
