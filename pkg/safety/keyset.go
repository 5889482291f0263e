package safety

import "sync"

// rootKeySize is the width of each session key before AES expansion
// (spec.md §3: "three 64-bit secrets").
const rootKeySize = 8

// expandedKeySize is the AES-128 key width after self-concatenation.
const expandedKeySize = 16

// KeySet is the capability handle for a session's KS1/KS2/KS3 keys.
// It is the "capability handle owned by the bridge process and passed
// explicitly to wrap/unwrap" called for in spec.md §9 Design Notes, in
// place of the original's process-global key state.
//
// A KeySet starts empty; Wrap/Unwrap against an empty KeySet fail with
// ErrNoKeys until Set is called (by the bridge's KEY_UPDATE handler).
type KeySet struct {
	mu             sync.RWMutex
	ks1, ks2, ks3  []byte
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{}
}

// Set installs the three session keys, each exactly rootKeySize bytes.
func (k *KeySet) Set(ks1, ks2, ks3 []byte) error {
	if len(ks1) != rootKeySize || len(ks2) != rootKeySize || len(ks3) != rootKeySize {
		return ErrInvalidKeyLength
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ks1 = append([]byte(nil), ks1...)
	k.ks2 = append([]byte(nil), ks2...)
	k.ks3 = append([]byte(nil), ks3...)
	return nil
}

// Clear zeroizes and drops all session keys (spec.md §4.2 "Session key
// lifecycle"). Nothing in this module calls it; the bridges' keys stay
// installed until the next Set replaces them.
func (k *KeySet) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	zero(k.ks1)
	zero(k.ks2)
	zero(k.ks3)
	k.ks1, k.ks2, k.ks3 = nil, nil, nil
}

// IsSet reports whether session keys are currently installed.
func (k *KeySet) IsSet() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.ks1 != nil
}

// selectKey returns the AES-128 key (64-bit root key self-concatenated
// to 128 bits) selected for the given NID_MESSAGE, per spec.md §4.2:
// 132 -> KS2, 136 -> KS3, any other -> KS1.
func (k *KeySet) selectKey(nid uint8) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var root []byte
	switch nid {
	case 132:
		root = k.ks2
	case 136:
		root = k.ks3
	default:
		root = k.ks1
	}
	if root == nil {
		return nil, ErrNoKeys
	}
	expanded := make([]byte, expandedKeySize)
	copy(expanded, root)
	copy(expanded[rootKeySize:], root)
	return expanded, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
