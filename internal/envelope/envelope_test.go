package envelope

import (
	"bytes"
	"testing"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/cryptobox"
)

func TestEAKEncodeDecodeRoundTrip(t *testing.T) {
	ct, _ := cryptobox.RandomBytes(48)
	nonce, _ := cryptobox.RandomNonce()
	e := EAK{Ciphertext: ct, Nonce: nonce}

	encoded := e.Encode()
	got, err := DecodeEAK(encoded)
	if err != nil {
		t.Fatalf("DecodeEAK: %v", err)
	}
	if !bytes.Equal(got.Ciphertext, ct) || got.Nonce != nonce {
		t.Fatal("round-trip mismatch")
	}
}

func TestDecodeEAKRejectsWrongArity(t *testing.T) {
	_, err := DecodeEAK("only-one-part")
	if !e3errors.AsKind(err, e3errors.MalformedEnvelope) {
		t.Fatalf("expected MalformedEnvelope, got %v", err)
	}
}

func TestDecodeEAKRejectsBadBase64(t *testing.T) {
	_, err := DecodeEAK("not base64!!.also not base64!!")
	if !e3errors.AsKind(err, e3errors.MalformedEnvelope) {
		t.Fatalf("expected MalformedEnvelope, got %v", err)
	}
}

func TestFieldEncodeDecodeRoundTrip(t *testing.T) {
	edk, _ := cryptobox.RandomBytes(48)
	ef, _ := cryptobox.RandomBytes(32)
	edkNonce, _ := cryptobox.RandomNonce()
	efNonce, _ := cryptobox.RandomNonce()

	f := Field{EDK: edk, EDKNonce: edkNonce, EF: ef, EFNonce: efNonce}
	encoded := f.Encode()

	got, err := DecodeField(encoded)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if !bytes.Equal(got.EDK, edk) || !bytes.Equal(got.EF, ef) {
		t.Fatal("payload mismatch")
	}
	if got.EDKNonce != edkNonce || got.EFNonce != efNonce {
		t.Fatal("nonce mismatch")
	}
}

func TestDecodeFieldRejectsWrongArity(t *testing.T) {
	_, err := DecodeField("a.b.c")
	if !e3errors.AsKind(err, e3errors.MalformedEnvelope) {
		t.Fatalf("expected MalformedEnvelope, got %v", err)
	}
}

func FuzzFieldCodecRoundTrip(f *testing.F) {
	f.Add([]byte("edk"), []byte("ef"))
	f.Fuzz(func(t *testing.T, edk, ef []byte) {
		edkNonce, err := cryptobox.RandomNonce()
		if err != nil {
			t.Skip()
		}
		efNonce, err := cryptobox.RandomNonce()
		if err != nil {
			t.Skip()
		}
		orig := Field{EDK: edk, EDKNonce: edkNonce, EF: ef, EFNonce: efNonce}
		got, err := DecodeField(orig.Encode())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got.EDK, edk) || !bytes.Equal(got.EF, ef) {
			t.Fatalf("roundtrip mismatch")
		}
	})
}
