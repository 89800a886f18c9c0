package config

import (
	"fmt"
	"strings"
)

// SigningKey is a verification-only token key read from JWT_PREVIOUS_KEYS.
type SigningKey struct {
	ID     string
	Secret string
}

// ParseSigningKeys reads "kid:secret,kid:secret". Secrets may contain colons;
// only the first one separates the id.
func ParseSigningKeys(raw string) ([]SigningKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	seen := make(map[string]bool)
	var keys []SigningKey
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, secret, ok := strings.Cut(entry, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" || secret == "" {
			return nil, fmt.Errorf("malformed key entry %q, want kid:secret", redact(entry))
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate key id %q", id)
		}
		seen[id] = true
		keys = append(keys, SigningKey{ID: id, Secret: secret})
	}
	return keys, nil
}

func redact(entry string) string {
	if id, _, ok := strings.Cut(entry, ":"); ok {
		return id + ":***"
	}
	return "***"
}
