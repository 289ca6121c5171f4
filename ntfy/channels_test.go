package ntfy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateChannel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		valid   bool
	}{
		{"simple", "agent_commands", true},
		{"dashes and digits", "team-42", true},
		{"max length", strings.Repeat("a", 64), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 65), false},
		{"slash", "a/b", false},
		{"space", "a b", false},
		{"unicode", "kanäle", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChannel(tt.channel)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidChannel)
			}
		})
	}
}

func TestChannels(t *testing.T) {
	d := DefaultChannels()
	require.NoError(t, d.Validate())
	assert.Equal(t, "agent_agent_1a2b3c4d_tasks", d.TasksChannel("agent_1a2b3c4d"))

	partial := Channels{Sync: "custom_sync"}.WithDefaults()
	assert.Equal(t, "custom_sync", partial.Sync)
	assert.Equal(t, d.Commands, partial.Commands)
	assert.Equal(t, d.Flag, partial.Flag)

	bad := d
	bad.User = "not valid"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidChannel)
}
