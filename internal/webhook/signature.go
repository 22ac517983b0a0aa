package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// Signature modes supported across platform variants. Exactly one is
// configured per platform deployment.
const (
	ModeHMACSHA256 = "hmac-sha256"
	ModeSHA256     = "sha256"
	ModePlain      = "plain"
)

// Concatenation order for ModeSHA256.
const (
	OrderSecretFirst = "secret-first"
	OrderBodyFirst   = "body-first"
)

var (
	ErrSecretMissing     = errors.New("webhook secret is not configured")
	ErrSignatureMissing  = errors.New("signature header is missing")
	ErrSignatureMismatch = errors.New("signature does not match")
	ErrUnknownMode       = errors.New("unknown signature mode")
)

type SignatureConfig struct {
	Mode   string
	Secret string
	// ConcatOrder applies to ModeSHA256 only.
	ConcatOrder string
}

// VerifySignature checks the header-supplied signature against the raw request
// body. It fails closed: missing secret, missing header or an unknown mode all
// reject. Comparison is constant time in every mode.
func VerifySignature(body []byte, header string, cfg SignatureConfig) error {
	if cfg.Secret == "" {
		return ErrSecretMissing
	}

	sig := normalizeSignatureHeader(header)
	if sig == "" {
		return ErrSignatureMissing
	}

	switch cfg.Mode {
	case ModeHMACSHA256:
		mac := hmac.New(sha256.New, []byte(cfg.Secret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
			return ErrSignatureMismatch
		}
		return nil

	case ModeSHA256:
		var sum [32]byte
		if cfg.ConcatOrder == OrderBodyFirst {
			sum = sha256.Sum256(append(append([]byte{}, body...), cfg.Secret...))
		} else {
			sum = sha256.Sum256(append([]byte(cfg.Secret), body...))
		}
		expected := hex.EncodeToString(sum[:])
		if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
			return ErrSignatureMismatch
		}
		return nil

	case ModePlain:
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(cfg.Secret)), []byte(sig)) != 1 {
			return ErrSignatureMismatch
		}
		return nil
	}

	return ErrUnknownMode
}

// normalizeSignatureHeader strips a "scheme=value" prefix (e.g. "sha256=abc")
// and surrounding whitespace. Only known scheme names are stripped; a plain
// token containing '=' passes through intact.
func normalizeSignatureHeader(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, "="); ok {
		switch strings.ToLower(strings.TrimSpace(scheme)) {
		case "sha256", "hmac-sha256":
			return strings.TrimSpace(rest)
		}
	}
	return header
}
