package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

var (
	ErrMissingSignature   = errors.New("missing x-signature header")
	ErrMalformedSignature = errors.New("malformed x-signature header")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)

var alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Manifest builds the string MercadoPago signs for a notification. Parts
// whose value is absent are left out.
func Manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		if alphanumeric.MatchString(dataID) {
			dataID = strings.ToLower(dataID)
		}
		b.WriteString("id:" + dataID + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

// Sign returns the hex HMAC-SHA256 of the notification manifest.
func Sign(secret, dataID, requestID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Manifest(dataID, requestID, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds an x-signature header value.
func SignatureHeader(secret, dataID, requestID, ts string) string {
	return "ts=" + ts + ",v1=" + Sign(secret, dataID, requestID, ts)
}

// VerifySignature checks an x-signature header ("ts=<ts>,v1=<hex>") against
// the notification's data id and x-request-id header.
func VerifySignature(secret, xSignature, xRequestID, dataID string) error {
	if strings.TrimSpace(xSignature) == "" {
		return ErrMissingSignature
	}

	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.ToLower(strings.TrimSpace(value))
		}
	}
	if ts == "" || v1 == "" {
		return ErrMalformedSignature
	}

	expected := Sign(secret, dataID, xRequestID, ts)
	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return ErrSignatureMismatch
	}
	return nil
}
