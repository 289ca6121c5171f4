// Package ntfy is a client for ntfy.sh style HTTP pub/sub relays.
//
// It covers the three calls agents need (read recent messages, publish a
// message, publish a structured status update) plus a websocket subscription
// for long running listeners. Every call is a single request bounded by the
// client timeout; there is no retry and no ordering guarantee across
// readers of the same channel.
package ntfy
