package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	storage := NewLocalStorage(path)

	_, ok, err := storage.GetItem("vedai_settings")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.SetItem("guest_msg_count", "3"))
	require.NoError(t, storage.SetItem("vedai_settings", `{"theme":"dark"}`))

	reopened := NewLocalStorage(path)
	value, ok, err := reopened.GetItem("guest_msg_count")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", value)

	value, _, err = reopened.GetItem("vedai_settings")
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, value)
}

func TestLocalStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	storage := NewLocalStorage(path)

	_, _, err := storage.GetItem("guest_msg_count")
	assert.Error(t, err)

	require.NoError(t, storage.SetItem("guest_msg_count", "1"))
	value, ok, err := storage.GetItem("guest_msg_count")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", value)
}
