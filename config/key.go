package config

import "strings"

// placeholderKeys are sample values shipped in templates. They never count
// as a configured key.
var placeholderKeys = map[string]bool{
	"YOUR_GEMINI_API_KEY_HERE": true,
	"YOUR_API_KEY_HERE":        true,
	"CHANGE_ME":                true,
}

// Key is an API key that may be absent.
type Key struct {
	value string
}

// KeyOf wraps s. Blank and placeholder values produce an absent key.
func KeyOf(s string) Key {
	s = strings.TrimSpace(s)
	if s == "" || placeholderKeys[strings.ToUpper(s)] {
		return Key{}
	}
	return Key{value: s}
}

// NoKey returns the absent key.
func NoKey() Key { return Key{} }

// Present reports whether a usable key is set.
func (k Key) Present() bool { return k.value != "" }

// Value returns the key and whether it is present.
func (k Key) Value() (string, bool) { return k.value, k.value != "" }

// String never reveals the key.
func (k Key) String() string {
	if !k.Present() {
		return "<absent>"
	}
	if len(k.value) <= 8 {
		return "****"
	}
	return k.value[:4] + "…" + k.value[len(k.value)-2:]
}
