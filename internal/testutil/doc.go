// Package testutil contains helpers shared by package tests: an in-process
// fake ntfy relay and a fluent event builder. Not intended for production use.
package testutil
