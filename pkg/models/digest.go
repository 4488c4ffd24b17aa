package models

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Digest is a fixed-length content hash value
type Digest []byte

// ParseDigest decodes a hex-encoded digest string
func ParseDigest(s string) (Digest, error) {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parsing digest %q: %w", s, err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("parsing digest: empty value")
	}
	return Digest(decoded), nil
}

// String returns the lowercase hex encoding of the digest
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// Equal compares two digests in constant time for equal-length inputs
func (d Digest) Equal(other Digest) bool {
	return subtle.ConstantTimeCompare(d, other) == 1
}

// MarshalText encodes the digest as hex
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a hex digest
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
