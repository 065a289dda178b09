package credential

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func runStoreContract(t *testing.T, s Store) {
	t.Helper()

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)

	require.NoError(t, s.Set("conn-1", "hunter2"))
	got, err := s.Get("conn-1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.NoError(t, s.Set("conn-1", "rotated"))
	got, err = s.Get("conn-1")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got)

	require.NoError(t, s.Delete("conn-1"))
	_, err = s.Get("conn-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	runStoreContract(t, s)
	assert.Zero(t, s.Len())
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	runStoreContract(t, NewKeyringStore())
}

func TestKeyringStoreUsesServiceNamespace(t *testing.T) {
	keyring.MockInit()
	s := NewKeyringStore()
	require.NoError(t, s.Set("abc", "pw"))

	got, err := keyring.Get(Service, "abc")
	require.NoError(t, err)
	assert.Equal(t, "pw", got)
}

func TestKeyringStoreBackendFailure(t *testing.T) {
	boom := errors.New("keychain locked")
	keyring.MockInitWithError(boom)
	t.Cleanup(keyring.MockInit)

	s := NewKeyringStore()
	err := s.Set("abc", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = s.Get("abc")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}
