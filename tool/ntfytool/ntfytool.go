// Package ntfytool exposes the ntfy relay to models: reading and posting on
// arbitrary channels, structured status reports and the fixed-purpose
// private, user and flag channels.
package ntfytool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/ntfy"
	"github.com/hupe1980/agentstarter/tool"
)

const previewLen = 50

// Client is the subset of *ntfy.Client used by the tools.
type Client interface {
	Read(ctx context.Context, channel string, limit int) ([]ntfy.Message, error)
	Publish(ctx context.Context, channel, message string, opts ntfy.PublishOptions) (*ntfy.Message, error)
	NotifyStatus(ctx context.Context, channel string, update ntfy.StatusUpdate) (*ntfy.Message, error)
}

// ReadArgs are the read_ntfy_messages arguments.
type ReadArgs struct {
	Channel string `json:"channel" description:"The ntfy channel name (e.g., 'agent_commands', 'agent_sync', 'agent_{agent_id}_tasks')"`
	Limit   int    `json:"limit" default:"10" description:"Number of recent messages to retrieve (default: 10, max: 100)"`
}

// NewReadTool returns read_ntfy_messages.
func NewReadTool(client Client) tool.Tool {
	return tool.NewTypedTool("read_ntfy_messages",
		"Read recent messages from an ntfy.sh coordination channel. Use this to check for "+
			"external commands, task delegations, or status updates from other agents. "+
			"Automatically parses JSON-formatted messages.",
		func(tc *core.ToolContext, args ReadArgs) (any, error) {
			msgs, err := client.Read(tc.Context(), args.Channel, args.Limit)
			if err != nil {
				return nil, err
			}
			return ntfy.FormatMessages(args.Channel, msgs), nil
		})
}

// PostArgs are the post_ntfy_message arguments.
type PostArgs struct {
	Channel string `json:"channel" description:"The ntfy channel name (e.g., 'agent_sync', 'agent_commands_result')"`
	Message string `json:"message" description:"The message content (can be plain text or JSON string)"`
	Title   string `json:"title,omitempty" description:"Optional title for the message (appears in notifications)"`
}

// NewPostTool returns post_ntfy_message.
func NewPostTool(client Client) tool.Tool {
	return tool.NewTypedTool("post_ntfy_message",
		"Post a message to an ntfy.sh coordination channel. Use this to send results, "+
			"status updates, or delegate tasks to other agents. Supports plain text or JSON.",
		func(tc *core.ToolContext, args PostArgs) (any, error) {
			if _, err := client.Publish(tc.Context(), args.Channel, args.Message, ntfy.PublishOptions{Title: args.Title}); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Posted to '%s': %s", args.Channel, ntfy.Preview(args.Message, previewLen)), nil
		})
}

// StatusArgs are the notify_external_system arguments.
type StatusArgs struct {
	AgentID string `json:"agent_id,omitempty" description:"Your unique agent identifier (e.g., 'agent_123'). Defaults to your own id"`
	Status  string `json:"status" description:"Current status (e.g., 'executing', 'idle', 'error', 'complete')"`
	Message string `json:"message" description:"Detailed status message"`
	Error   bool   `json:"error" default:"false" description:"Whether this is an error notification (default: false)"`
}

// NewStatusTool returns notify_external_system, which reports on syncChannel.
func NewStatusTool(client Client, syncChannel string) tool.Tool {
	return tool.NewTypedTool("notify_external_system",
		"Notify the external system and other agents about your status. "+
			"Use this to report task completion, errors, or status changes.",
		func(tc *core.ToolContext, args StatusArgs) (any, error) {
			agentID := args.AgentID
			if agentID == "" {
				agentID = tc.AgentID()
			}
			update := ntfy.StatusUpdate{
				AgentID: agentID,
				Status:  args.Status,
				Message: args.Message,
				IsError: args.Error,
			}
			if _, err := client.NotifyStatus(tc.Context(), syncChannel, update); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Posted to '%s': %s", syncChannel, update.Title()), nil
		})
}

// MessageArgs carry a single message body.
type MessageArgs struct {
	Message string `json:"message"`
}

// NewChannelTool returns a tool that posts its message argument on a fixed
// channel with a fixed title and answers with reply.
func NewChannelTool(client Client, name, description, channel, title, reply string) tool.Tool {
	return tool.NewTypedTool(name, description,
		func(tc *core.ToolContext, args MessageArgs) (any, error) {
			if _, err := client.Publish(tc.Context(), channel, args.Message, ntfy.PublishOptions{Title: title}); err != nil {
				return nil, err
			}
			return reply, nil
		})
}

// NewPrivateMessageTool returns send_private_message.
func NewPrivateMessageTool(client Client, channel string) tool.Tool {
	return NewChannelTool(client, "send_private_message",
		"Call this to send any private thoughts you have and wouldn't want the user to see.",
		channel, "Inner Scratch Pad", "Sent PM")
}

// NewNotifyUserTool returns notify_user.
func NewNotifyUserTool(client Client, channel string) tool.Tool {
	return NewChannelTool(client, "notify_user",
		"MUST be run before ending the task with stop_loop. Call this when you want to notify the user "+
			"about when you have completed a task. Your message should contain the name of the task, "+
			"what your answer was, and a summary of the steps taken.",
		channel, "User Notifications", "Sent Notification")
}

// NewFlagUserTool returns flag_user.
func NewFlagUserTool(client Client, channel string) tool.Tool {
	return NewChannelTool(client, "flag_user",
		"Call this to send a report of any harmful, offensive or inappropriate behavior by a user. Specify what that was.",
		channel, "Flagged User", "Flagged user")
}

// Tools returns all relay tools bound to channels.
func Tools(client Client, channels ntfy.Channels) []tool.Tool {
	channels = channels.WithDefaults()
	return []tool.Tool{
		NewReadTool(client),
		NewPostTool(client),
		NewStatusTool(client, channels.Sync),
		NewPrivateMessageTool(client, channels.Private),
		NewNotifyUserTool(client, channels.User),
		NewFlagUserTool(client, channels.Flag),
	}
}
