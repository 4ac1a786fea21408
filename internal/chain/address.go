package chain

import "github.com/btcsuite/btcd/btcutil/base58"

const (
	pubkeyLen    = 32
	signatureLen = 64
)

// ValidAddress reports whether s decodes to a 32-byte base58 account key.
func ValidAddress(s string) bool {
	if s == "" {
		return false
	}
	return len(base58.Decode(s)) == pubkeyLen
}

// ValidSignature reports whether s decodes to a 64-byte base58 signature.
func ValidSignature(s string) bool {
	if s == "" {
		return false
	}
	return len(base58.Decode(s)) == signatureLen
}
