package config

import "encoding/json"

const redacted = "[REDACTED]"

// Secret is a configuration string that never prints. fmt verbs, JSON and
// text encoders all see the redacted form; Value returns the real one.
type Secret string

// Value returns the secret itself.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a value was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return redacted
}

// GoString covers %#v.
func (s Secret) GoString() string { return "Secret(" + redacted + ")" }

// MarshalText keeps the value out of YAML and other text encoders.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// MarshalJSON keeps the value out of JSON dumps.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
