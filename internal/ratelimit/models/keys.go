package models

import "strings"

const keyPrefix = "rl"

// Key is a namespaced throttle key: rl:<class>:<identifier>.
type Key string

// NewKey builds the key for identifier under class.
func NewKey(class OperationClass, identifier string) Key {
	return Key(keyPrefix + ":" + SanitizeKeySegment(string(class)) + ":" + SanitizeKeySegment(identifier))
}

func (k Key) String() string { return string(k) }

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a caller-supplied identifier containing ':' cannot address another
// class's window.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
