package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func sha256Hex(parts ...string) string {
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	sum := sha256.Sum256(joined)
	return hex.EncodeToString(sum[:])
}

func TestVerifySignatureHMAC(t *testing.T) {
	body := []byte(`{"event":"order.created"}`)
	cfg := SignatureConfig{Mode: ModeHMACSHA256, Secret: "topsecret"}

	if err := VerifySignature(body, hmacHex("topsecret", body), cfg); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// scheme=value header format
	if err := VerifySignature(body, "sha256="+hmacHex("topsecret", body), cfg); err != nil {
		t.Fatalf("prefixed signature rejected: %v", err)
	}

	if err := VerifySignature(body, hmacHex("wrong", body), cfg); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("wrong secret: got %v, want mismatch", err)
	}

	tampered := []byte(`{"event":"order.created","x":1}`)
	if err := VerifySignature(tampered, hmacHex("topsecret", body), cfg); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("tampered body: got %v, want mismatch", err)
	}
}

func TestVerifySignatureSHA256Concat(t *testing.T) {
	body := []byte(`payload-bytes`)

	secretFirst := SignatureConfig{Mode: ModeSHA256, Secret: "s3cret", ConcatOrder: OrderSecretFirst}
	if err := VerifySignature(body, sha256Hex("s3cret", string(body)), secretFirst); err != nil {
		t.Fatalf("secret-first rejected: %v", err)
	}
	if err := VerifySignature(body, sha256Hex(string(body), "s3cret"), secretFirst); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("wrong concat order accepted: %v", err)
	}

	bodyFirst := SignatureConfig{Mode: ModeSHA256, Secret: "s3cret", ConcatOrder: OrderBodyFirst}
	if err := VerifySignature(body, sha256Hex(string(body), "s3cret"), bodyFirst); err != nil {
		t.Fatalf("body-first rejected: %v", err)
	}
}

func TestVerifySignaturePlain(t *testing.T) {
	cfg := SignatureConfig{Mode: ModePlain, Secret: "token-value"}

	if err := VerifySignature(nil, "token-value", cfg); err != nil {
		t.Fatalf("plain token rejected: %v", err)
	}
	if err := VerifySignature(nil, "  token-value  ", cfg); err != nil {
		t.Fatalf("untrimmed token rejected: %v", err)
	}
	if err := VerifySignature(nil, "other", cfg); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("wrong token: got %v, want mismatch", err)
	}
}

func TestVerifySignaturePlainTokenWithEquals(t *testing.T) {
	// Tokens may contain '=' (base64 padding, key=value shapes); only known
	// scheme prefixes are stripped from the header.
	for _, token := range []string{"dG9rZW4tdmFsdWU=", "a=b==c"} {
		cfg := SignatureConfig{Mode: ModePlain, Secret: token}
		if err := VerifySignature(nil, token, cfg); err != nil {
			t.Errorf("token %q rejected: %v", token, err)
		}
	}
}

func TestVerifySignatureFailsClosed(t *testing.T) {
	body := []byte("x")

	err := VerifySignature(body, hmacHex("s", body), SignatureConfig{Mode: ModeHMACSHA256})
	if !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("missing secret: got %v", err)
	}

	err = VerifySignature(body, "", SignatureConfig{Mode: ModeHMACSHA256, Secret: "s"})
	if !errors.Is(err, ErrSignatureMissing) {
		t.Fatalf("missing header: got %v", err)
	}

	// A correct signature for a mode that is not configured must not pass.
	err = VerifySignature(body, hmacHex("s", body), SignatureConfig{Mode: "md5", Secret: "s"})
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("unknown mode: got %v", err)
	}
}
