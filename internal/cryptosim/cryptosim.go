// Package cryptosim provides the cosmetic crypto used by the simulator's
// narrative: tagged "encryption", a fingerprint that looks like SHA-256 and
// random session keys. None of it is secure and none of it tries to be.
package cryptosim

import (
	"encoding/json"
	"strings"

	"secnetsim/internal/rng"
)

const (
	hashAlphabet = "abcdef0123456789"
	keyAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	hashLength   = 64
	keyLength    = 32
)

// EncryptAES tags data as AES ciphertext.
func EncryptAES(data string) string {
	return "AES_" + data + "_ENCRYPTED"
}

// DecryptAES strips the AES tag.
func DecryptAES(data string) string {
	return strings.Replace(strings.Replace(data, "AES_", "", 1), "_ENCRYPTED", "", 1)
}

// SimulateHash returns a 64 character hex-looking digest that depends only on data.
func SimulateHash(data string) string {
	quoted, _ := json.Marshal(data)

	var sb strings.Builder
	sb.Grow(hashLength)
	for i := 0; i < hashLength; i++ {
		idx := (int(quoted[i%len(quoted)]) + i) % len(hashAlphabet)
		sb.WriteByte(hashAlphabet[idx])
	}
	return sb.String()
}

// GenerateKey returns a random 32 character session key.
func GenerateKey(src rng.Source) string {
	var sb strings.Builder
	sb.Grow(keyLength)
	for i := 0; i < keyLength; i++ {
		sb.WriteByte(keyAlphabet[src.IntN(len(keyAlphabet))])
	}
	return sb.String()
}

// KeyExchange hands every node a fresh session key.
func KeyExchange(nodeIDs []string, src rng.Source) map[string]string {
	keys := make(map[string]string, len(nodeIDs))
	for _, id := range nodeIDs {
		keys[id] = GenerateKey(src)
	}
	return keys
}
