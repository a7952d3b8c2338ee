package codec

import (
	"errors"
	"testing"

	"github.com/dmartinez-dev/hilo/internal/model"
)

func TestRoundTrip(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatal(err)
	}

	tests := []string{
		"hi",
		"",
		"a longer message that spans several aes blocks for good measure",
		"acentuação e emojis 🙂",
		"exactly sixteen!", // one full block, forces a padding-only block
	}
	for _, plain := range tests {
		enc, err := c.Encode(plain)
		if err != nil {
			t.Fatalf("Encode(%q) error: %v", plain, err)
		}
		if enc == plain && plain != "" {
			t.Errorf("Encode(%q) did not transform input", plain)
		}
		dec, err := c.Decode(enc)
		if err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		if dec != plain {
			t.Errorf("round trip = %q, want %q", dec, plain)
		}
	}
}

func TestDecodeLenientSinglePass(t *testing.T) {
	c, _ := New("")
	enc, _ := c.Encode("hola")
	got, err := c.DecodeLenient(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hola" {
		t.Errorf("DecodeLenient = %q, want hola", got)
	}
}

func TestDecodeLenientDoubleEncoded(t *testing.T) {
	c, _ := New("")
	once, _ := c.Encode("mensaje antiguo")
	twice, _ := c.Encode(once)

	got, err := c.DecodeLenient(twice)
	if err != nil {
		t.Fatal(err)
	}
	if got != "mensaje antiguo" {
		t.Errorf("DecodeLenient(double) = %q, want plaintext", got)
	}
}

func TestDecodeMalformedFallsBack(t *testing.T) {
	c, _ := New("")
	raw := "this is not ciphertext"
	got, err := c.DecodeLenient(raw)
	if err == nil {
		t.Fatal("expected error for malformed input")
	}
	var ce *model.CodecError
	if !errors.As(err, &ce) {
		t.Errorf("error = %T, want *model.CodecError", err)
	}
	if got != raw {
		t.Errorf("fallback = %q, want raw input back", got)
	}
}

func TestWrongKeyFails(t *testing.T) {
	a, _ := New("MySuperSecretKey")
	b, _ := New("AnotherKey16Byte")
	enc, _ := a.Encode("secreto")
	if dec, err := b.Decode(enc); err == nil && dec == "secreto" {
		t.Error("decode with wrong key recovered plaintext")
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	if _, err := New("short"); err == nil {
		t.Error("New accepted a 5-byte key")
	}
}
