package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidSignature = errors.New("invalid qstash signature")

const signatureIssuer = "Upstash"

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verify checks an Upstash-Signature header against the request body and the
// URL the message was delivered to. The next signing key is tried when the
// current one fails so key rotation does not drop deliveries.
func (c *Client) Verify(signature string, body []byte, deliveredURL string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	var lastErr error
	for _, key := range []string{c.currentSigningKey, c.nextSigningKey} {
		if key == "" {
			continue
		}
		err := verifyWithKey(signature, key, body, deliveredURL)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no signing key configured")
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func verifyWithKey(signature, key string, body []byte, deliveredURL string) error {
	var claims signatureClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}

	if claims.Issuer != signatureIssuer {
		return fmt.Errorf("issuer %q", claims.Issuer)
	}
	if deliveredURL != "" && claims.Subject != deliveredURL {
		return fmt.Errorf("subject %q does not match %q", claims.Subject, deliveredURL)
	}

	sum := sha256.Sum256(body)
	want := strings.TrimRight(base64.URLEncoding.EncodeToString(sum[:]), "=")
	if strings.TrimRight(claims.Body, "=") != want {
		return errors.New("body hash mismatch")
	}
	return nil
}
