package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestSecretStoreRoundTrip(t *testing.T) {
	keyring.MockInit()
	t.Setenv("ZINV_NO_KEYRING", "")
	store := NewSecretStore()
	require.True(t, store.Enabled())

	_, ok := store.Lookup(SecretRefreshToken)
	assert.False(t, ok)

	require.NoError(t, store.Set(SecretRefreshToken, "1000.abc"))
	v, ok := store.Lookup(SecretRefreshToken)
	require.True(t, ok)
	assert.Equal(t, "1000.abc", v)

	require.NoError(t, store.Delete(SecretRefreshToken))
	_, ok = store.Lookup(SecretRefreshToken)
	assert.False(t, ok)

	assert.NoError(t, store.Delete(SecretRefreshToken), "deleting a missing secret is fine")
}

func TestSecretStoreDisabled(t *testing.T) {
	keyring.MockInit()
	t.Setenv("ZINV_NO_KEYRING", "1")
	store := NewSecretStore()

	assert.False(t, store.Enabled())
	assert.Error(t, store.Set(SecretClientSecret, "x"))
	_, ok := store.Lookup(SecretClientSecret)
	assert.False(t, ok)
	assert.NoError(t, store.Delete(SecretClientSecret))
}

func TestKeyFunction(t *testing.T) {
	assert.Equal(t, "zinv::client_id", key(SecretClientID))
}
