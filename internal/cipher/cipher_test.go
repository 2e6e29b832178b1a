package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncrypt_KnownVectors(t *testing.T) {
	tests := []struct {
		name   string
		plain  string
		secret string
		want   string
	}{
		{"digit shift", "{id}", "1", "}je["},
		{"wraps around alphabet", "Z", "1", ","},
		{"letter shift", "{", "a", "k"},
		{"outside alphabet passes through", "a=1", "1", "b=2"},
		{"zero shift", "{id,name}", "0", "{id,name}"},
		{"scrambled", "{id}", "1.0", "[}je"},
		{"empty input", "", "7.3", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encrypt(tt.plain, tt.secret)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := Decrypt(got, tt.secret)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, back)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	plains := []string{
		"{*}",
		"{id,name,parent{name,parent_id}}",
		"{name,children(status=1):2:10{name}}",
		"{name,products.count,orders.sum.total}",
		"{name,children(status!=0,price>=10,price<=99){id}}",
		"x",
	}
	secrets := []string{
		"1",
		"42",
		"s3cr3t",
		"s3cr3t.k3y",
		"9.9",
		"Zz.zZ",
		"abc.",
		"7.1234567890",
		"a.b.c",
	}

	for _, secret := range secrets {
		for _, plain := range plains {
			enc, err := Encrypt(plain, secret)
			require.NoError(t, err)
			assert.Len(t, enc, len(plain))

			dec, err := Decrypt(enc, secret)
			require.NoError(t, err)
			assert.Equal(t, plain, dec, "secret %q", secret)
		}
	}
}

func TestEncrypt_ChangesText(t *testing.T) {
	enc, err := Encrypt("{id,name,parent{name}}", "s3cr3t.k3y")
	require.NoError(t, err)
	assert.NotEqual(t, "{id,name,parent{name}}", enc)
}

func TestWrongSecretDoesNotDecrypt(t *testing.T) {
	enc, err := Encrypt("{id,name}", "123.45")
	require.NoError(t, err)

	dec, err := Decrypt(enc, "124.45")
	require.NoError(t, err)
	assert.NotEqual(t, "{id,name}", dec)
}

func TestExtraSecretPartsIgnored(t *testing.T) {
	a, err := Encrypt("{id,name}", "5.6")
	require.NoError(t, err)
	b, err := Encrypt("{id,name}", "5.6.7")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmptySecret(t *testing.T) {
	for _, secret := range []string{"", ".123"} {
		_, err := Encrypt("{id}", secret)
		assert.ErrorIs(t, err, ErrEmptySecret)

		_, err = Decrypt("{id}", secret)
		assert.ErrorIs(t, err, ErrEmptySecret)
	}
}

func TestPermute_LargeDigitIndexWraps(t *testing.T) {
	// A digit beyond the string length must not index out of range.
	out := permute("ab", "9", false)
	assert.Len(t, out, 2)
	assert.Equal(t, "ab", permute(out, "9", true))
}
