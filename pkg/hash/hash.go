package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Voter-key prefixes distinguish account-backed voters from anonymous
// device-derived ones.
const (
	AccountKeyPrefix = "u_"
	DeviceKeyPrefix  = "d_"

	keyIterations = 5000
)

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// IteratedSHA256 applies SHA256 iteratively n times to produce a derived
// hash. Used for voter-key derivation so raw account and device IDs never
// reach the server.
func IteratedSHA256(input string, iterations int) string {
	data := []byte(input)
	for range iterations {
		h := sha256.Sum256(data)
		data = h[:]
	}
	return hex.EncodeToString(data)
}

// AccountVoterKey derives the pseudonymous voter key for an account.
func AccountVoterKey(accountID string) string {
	return AccountKeyPrefix + IteratedSHA256(accountID, keyIterations)
}

// DeviceVoterKey derives the pseudonymous voter key for an anonymous
// device, salted so the same device ID maps differently per deployment.
func DeviceVoterKey(deviceID, salt string) string {
	return DeviceKeyPrefix + IteratedSHA256(salt+deviceID, keyIterations)
}
