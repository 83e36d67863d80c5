package cursor

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New(42, 1, 100)

	token, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Seq != 42 {
		t.Fatalf("seq = %d, want 42", decoded.Seq)
	}
	if decoded.RangeHash != c.RangeHash {
		t.Fatalf("range hash = %q, want %q", decoded.RangeHash, c.RangeHash)
	}
}

func TestDecodeRejectsEmptyToken(t *testing.T) {
	if _, err := Decode(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("not base64 at all!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestValidateRangeHash(t *testing.T) {
	c := New(7, 1, 50)

	if err := ValidateRangeHash(c, 1, 50); err != nil {
		t.Fatalf("unexpected mismatch for same range: %v", err)
	}
	err := ValidateRangeHash(c, 1, 60)
	if err == nil {
		t.Fatal("expected mismatch for changed range")
	}
	if !strings.Contains(err.Error(), "range changed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHashRangeDistinguishesBounds(t *testing.T) {
	if HashRange(1, 10) == HashRange(1, 11) {
		t.Fatal("expected distinct hashes for distinct ranges")
	}
}
