package secretbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	box, err := New("sync-password", "dav/clip-keeper")
	require.NoError(t, err)

	plaintext := []byte(`{"items":{}}`)
	sealed, err := box.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	box, err := New("sync-password", "dav/clip-keeper")
	require.NoError(t, err)

	a, err := box.Seal([]byte("same payload"))
	require.NoError(t, err)
	b, err := box.Seal([]byte("same payload"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two seals of one payload must differ")
}

func TestOpen_WrongPassword(t *testing.T) {
	sender, err := New("correct-password", "dav/clip-keeper")
	require.NoError(t, err)
	receiver, err := New("wrong-password", "dav/clip-keeper")
	require.NoError(t, err)

	sealed, err := sender.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = receiver.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpen_DifferentSaltDerivesDifferentKey(t *testing.T) {
	sender, err := New("password", "remote-a")
	require.NoError(t, err)
	receiver, err := New("password", "remote-b")
	require.NoError(t, err)

	sealed, err := sender.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = receiver.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpen_TamperedCiphertext(t *testing.T) {
	box, err := New("password", "salt")
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("secret"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = box.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpen_TruncatedBlob(t *testing.T) {
	box, err := New("password", "salt")
	require.NoError(t, err)

	_, err = box.Open([]byte("short"))
	assert.ErrorIs(t, err, ErrDecrypt)
}
