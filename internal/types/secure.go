package types

import "log/slog"

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a sensitive configuration value (SMTP password, API key,
// session secret) and redacts itself through every accidental output path:
// fmt verbs, JSON encoding, and slog attributes. Call Unmask() at the single
// point where the raw value is genuinely needed.
type SecretString string

// String returns the redacted placeholder. Invoked by fmt functions through
// the fmt.Stringer interface.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string so config
// dumps and structured responses never carry the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue redacts the secret in slog output.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// IsSet reports whether a value was configured at all, without exposing it.
func (s SecretString) IsSet() bool {
	return s != ""
}

// Unmask returns the raw plaintext value. Limit calls to the point of use:
// authentication exchanges, connection strings, Authorization headers.
func (s SecretString) Unmask() string {
	return string(s)
}
