package ntfy

import (
	"fmt"
	"regexp"
)

var channelPattern = regexp.MustCompile(`^[-_A-Za-z0-9]{1,64}$`)

// ValidateChannel checks name against the relay's topic alphabet.
func ValidateChannel(name string) error {
	if !channelPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, name)
	}
	return nil
}

// Channels names the well-known coordination channels.
type Channels struct {
	Commands    string `json:"commands" yaml:"commands"`
	Sync        string `json:"sync" yaml:"sync"`
	Emergencies string `json:"emergencies" yaml:"emergencies"`
	TasksPrefix string `json:"tasks_prefix" yaml:"tasks_prefix"`
	Private     string `json:"private" yaml:"private"`
	User        string `json:"user" yaml:"user"`
	Flag        string `json:"flag" yaml:"flag"`
}

// DefaultChannels returns the stock channel layout.
func DefaultChannels() Channels {
	return Channels{
		Commands:    "agent_commands",
		Sync:        "agent_sync",
		Emergencies: "agent_emergencies",
		TasksPrefix: "agent_",
		Private:     "my_private_thoughts",
		User:        "user_notifications",
		Flag:        "llm_flag_user",
	}
}

// WithDefaults fills empty fields from DefaultChannels.
func (c Channels) WithDefaults() Channels {
	d := DefaultChannels()
	if c.Commands == "" {
		c.Commands = d.Commands
	}
	if c.Sync == "" {
		c.Sync = d.Sync
	}
	if c.Emergencies == "" {
		c.Emergencies = d.Emergencies
	}
	if c.TasksPrefix == "" {
		c.TasksPrefix = d.TasksPrefix
	}
	if c.Private == "" {
		c.Private = d.Private
	}
	if c.User == "" {
		c.User = d.User
	}
	if c.Flag == "" {
		c.Flag = d.Flag
	}
	return c
}

// TasksChannel returns the per-agent task channel, prefix + id + "_tasks".
func (c Channels) TasksChannel(agentID string) string {
	return c.TasksPrefix + agentID + "_tasks"
}

// Validate checks every configured channel name. The tasks prefix is
// checked as part of a sample task channel.
func (c Channels) Validate() error {
	for _, name := range []string{c.Commands, c.Sync, c.Emergencies, c.Private, c.User, c.Flag} {
		if err := ValidateChannel(name); err != nil {
			return err
		}
	}
	return ValidateChannel(c.TasksChannel("x"))
}
