package safety

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
)

// macSize is the width of the truncated MAC trailer carried on every
// PDU (spec.md §4.2: "last 4 bytes").
const macSize = 4

// computeMAC authenticates payload under key (an AES-128 key produced
// by KeySet.selectKey) using AES-128-CBC with a zero IV over the
// zero-padded payload, keeping only the final macSize bytes of
// ciphertext. This is explicitly a demonstrator-grade construction,
// not a standard CMAC: no domain separation, no proper padding scheme,
// IV fixed at zero. It exists to match the behavior of the reference
// implementation, not to provide real cryptographic assurance.
func computeMAC(key, payload []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := padZero(payload, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext[len(ciphertext)-macSize:], nil
}

// verifyMAC recomputes the MAC over payload and compares it against
// mac in constant time.
func verifyMAC(key, payload, mac []byte) (bool, error) {
	want, err := computeMAC(key, payload)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, mac) == 1, nil
}

// padZero right-pads data with zero bytes to a multiple of blockSize.
// A zero-length input still produces one full zero block.
func padZero(data []byte, blockSize int) []byte {
	n := len(data)
	rem := n % blockSize
	padLen := 0
	if rem != 0 {
		padLen = blockSize - rem
	}
	if n == 0 {
		padLen = blockSize
	}
	out := make([]byte, n+padLen)
	copy(out, data)
	return out
}
