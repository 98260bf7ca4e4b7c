package config

import (
	"encoding/json"
	"errors"
)

const redacted = "[REDACTED]"

var errRedactedSecret = errors.New("secret holds the redaction placeholder, not a key")

// Secret is an API key or token. Every formatting and marshaling path
// prints a placeholder; only Value exposes the key.
type Secret string

func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string   { return s.mask() }
func (s Secret) GoString() string { return "config.Secret(" + redacted + ")" }

// Value returns the key itself. Pass it straight to the client that needs it.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a key was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.mask()), nil }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.mask()) }

// UnmarshalText rejects the placeholder so a dumped config cannot be loaded
// back with its keys silently replaced.
func (s *Secret) UnmarshalText(text []byte) error {
	if string(text) == redacted {
		return errRedactedSecret
	}
	*s = Secret(text)
	return nil
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(raw))
}
