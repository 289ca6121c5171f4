// Package session keeps recent run results and live conversation sessions
// in process memory. Nothing is persisted; a restart forgets everything.
package session
