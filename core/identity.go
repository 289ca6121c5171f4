package core

import (
	"strings"

	"github.com/google/uuid"
)

// IdentitySuffixLen is the number of hex characters taken from a random UUID.
const IdentitySuffixLen = 8

// DefaultAgentName is used when an empty name is supplied.
const DefaultAgentName = "agent"

// Identity names one running agent process. The string form is
// "<name>_<suffix>" and doubles as a channel name component, so both parts
// are restricted to the relay's topic alphabet.
//
// Identities are random, not coordinated: two processes may collide.
type Identity struct {
	Name   string `json:"name"`
	Suffix string `json:"suffix"`
}

// NewIdentity creates an identity for name with a fresh random suffix.
func NewIdentity(name string) Identity {
	return Identity{
		Name:   SanitizeName(name),
		Suffix: strings.ReplaceAll(uuid.NewString(), "-", "")[:IdentitySuffixLen],
	}
}

// String returns the identity in "<name>_<suffix>" form.
func (i Identity) String() string {
	if i.Suffix == "" {
		return i.Name
	}
	return i.Name + "_" + i.Suffix
}

// IsZero reports whether the identity was never initialised.
func (i Identity) IsZero() bool { return i.Name == "" && i.Suffix == "" }

// SanitizeName maps name onto [-_A-Za-z0-9]. Other runes become '_'.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultAgentName
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
