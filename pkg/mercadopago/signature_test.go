package mercadopago_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pokeshop/pkg/mercadopago"
)

func TestManifest(t *testing.T) {
	assert.Equal(t, "id:abc123;request-id:req-1;ts:1700000000;", mercadopago.Manifest("ABC123", "req-1", "1700000000"))
	assert.Equal(t, "id:123;ts:1700000000;", mercadopago.Manifest("123", "", "1700000000"))
	assert.Equal(t, "", mercadopago.Manifest("", "", ""))
}

func TestVerifySignature(t *testing.T) {
	const secret = "webhook-secret"
	header := mercadopago.SignatureHeader(secret, "123456", "req-1", "1700000000")

	assert.NoError(t, mercadopago.VerifySignature(secret, header, "req-1", "123456"))
	assert.NoError(t, mercadopago.VerifySignature(secret, " ts = 1700000000 , v1="+mercadopago.Sign(secret, "123456", "req-1", "1700000000"), "req-1", "123456"))

	assert.ErrorIs(t, mercadopago.VerifySignature(secret, "", "req-1", "123456"), mercadopago.ErrMissingSignature)
	assert.ErrorIs(t, mercadopago.VerifySignature(secret, "v1=abc", "req-1", "123456"), mercadopago.ErrMalformedSignature)
	assert.ErrorIs(t, mercadopago.VerifySignature(secret, header, "req-2", "123456"), mercadopago.ErrSignatureMismatch)
	assert.ErrorIs(t, mercadopago.VerifySignature(secret, header, "req-1", "654321"), mercadopago.ErrSignatureMismatch)
	assert.ErrorIs(t, mercadopago.VerifySignature("other-secret", header, "req-1", "123456"), mercadopago.ErrSignatureMismatch)
}
