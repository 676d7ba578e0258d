package provider

import "sync"

// KeyRing holds a provider's credentials and the index of the one in use.
type KeyRing struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

// NewKeyRing returns a ring over a copy of keys.
func NewKeyRing(keys []string) *KeyRing {
	return &KeyRing{keys: append([]string(nil), keys...)}
}

// Len returns the number of credentials.
func (k *KeyRing) Len() int {
	return len(k.keys)
}

// Current returns the active credential and its index.
func (k *KeyRing) Current() (int, string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.keys) == 0 {
		return 0, ""
	}
	return k.idx, k.keys[k.idx]
}

// Advance moves past the credential at index from. Concurrent callers that
// saw the same failing key advance the ring only once.
func (k *KeyRing) Advance(from int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.keys) == 0 || k.idx != from {
		return
	}
	k.idx = (k.idx + 1) % len(k.keys)
}

// withKeys calls fn with successive credentials until it succeeds, fails with
// an error another key cannot fix, or every key has been tried once.
func withKeys(ring *KeyRing, fn func(key string) (Output, error)) (Output, error) {
	tries := ring.Len()
	if tries == 0 {
		tries = 1
	}
	var lastErr error
	for range tries {
		idx, key := ring.Current()
		out, err := fn(key)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryableWithNextKey(err) {
			return Output{}, err
		}
		ring.Advance(idx)
	}
	return Output{}, lastErr
}
