package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// SigningKey is an HMAC secret addressed by the kid token header.
type SigningKey struct {
	ID     string
	Secret []byte
}

// Keyring holds the key new tokens are signed with plus retired keys that are
// still accepted for verification.
type Keyring struct {
	mu       sync.RWMutex
	current  SigningKey
	previous map[string][]byte
}

func NewKeyring(current SigningKey, previous ...SigningKey) (*Keyring, error) {
	if err := validateKey(current); err != nil {
		return nil, err
	}
	k := &Keyring{
		current:  current,
		previous: make(map[string][]byte, len(previous)),
	}
	for _, key := range previous {
		if err := validateKey(key); err != nil {
			return nil, err
		}
		if key.ID == current.ID {
			return nil, fmt.Errorf("auth: previous key %q reuses the current key id", key.ID)
		}
		k.previous[key.ID] = key.Secret
	}
	return k, nil
}

// Current returns the signing key.
func (k *Keyring) Current() SigningKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// Lookup returns the secret for kid. An empty kid resolves to the current key
// so tokens minted before kid headers were added keep verifying.
func (k *Keyring) Lookup(kid string) ([]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if kid == "" || kid == k.current.ID {
		return k.current.Secret, true
	}
	secret, ok := k.previous[kid]
	return secret, ok
}

// Rotate makes next the signing key and keeps the old one for verification.
func (k *Keyring) Rotate(next SigningKey) error {
	if err := validateKey(next); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if next.ID == k.current.ID {
		return fmt.Errorf("auth: key %q is already current", next.ID)
	}
	k.previous[k.current.ID] = k.current.Secret
	delete(k.previous, next.ID)
	k.current = next
	return nil
}

// Retire stops accepting tokens signed with kid.
func (k *Keyring) Retire(kid string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.previous, kid)
}

func validateKey(key SigningKey) error {
	if strings.TrimSpace(key.ID) == "" {
		return errors.New("auth: signing key id is required")
	}
	if len(key.Secret) == 0 {
		return fmt.Errorf("auth: signing key %q has an empty secret", key.ID)
	}
	return nil
}
