package models

import "unicode/utf8"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxMessageLength is the client-side bound on message content, in characters.
const MaxMessageLength = 2000

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ContentLength counts characters the way the input counter displays them.
func ContentLength(s string) int {
	return utf8.RuneCountInString(s)
}
