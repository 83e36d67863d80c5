// Package cursor provides opaque pagination token encoding/decoding.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cursor represents the internal state of a pagination cursor over the
// chunk ledger's sequence order.
type Cursor struct {
	// Seq is the last sequence value already returned; the next page
	// starts strictly after it.
	Seq uint64 `json:"seq"`
	// RangeHash ensures tokens are invalidated if the requested range changes.
	RangeHash string `json:"range_hash,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return c, nil
}

// HashRange computes a short hash of the range bounds for cursor validation.
func HashRange(from, to uint64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", from, to)))
	return hex.EncodeToString(h[:8])
}

// ValidateRangeHash checks if the cursor's range hash matches the current bounds.
// Returns an error if the range has changed since the cursor was created.
func ValidateRangeHash(c Cursor, from, to uint64) error {
	if c.RangeHash != HashRange(from, to) {
		return fmt.Errorf("range changed since cursor was created")
	}
	return nil
}

// New creates a cursor that resumes a range scan after the given sequence.
func New(lastSeq, from, to uint64) Cursor {
	return Cursor{
		Seq:       lastSeq,
		RangeHash: HashRange(from, to),
	}
}
