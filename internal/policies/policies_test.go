package policies

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	assert.Contains(t, Default(), "Section 3: Mobility & Moving")
	assert.Contains(t, Default(), "Section 5: Mental Health")
}

func TestNewStore_EmbeddedWhenNoPath(t *testing.T) {
	s := NewStore("", nil)
	assert.Equal(t, Default(), s.Text())
	assert.NoError(t, s.Reload())
	assert.Error(t, s.Watch(context.Background()))
}

func TestNewStore_MissingFileFallsBack(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Equal(t, Default(), s.Text())
}

func TestStore_ReloadKeepsPreviousOnEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.txt")
	require.NoError(t, os.WriteFile(path, []byte("Section 1: Custom\n"), 0o600))

	s := NewStore(path, nil)
	assert.Equal(t, "Section 1: Custom", s.Text())

	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o600))
	assert.Error(t, s.Reload())
	assert.Equal(t, "Section 1: Custom", s.Text())
}

func TestStore_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.txt")
	require.NoError(t, os.WriteFile(path, []byte("Section 1: Before"), 0o600))

	s := NewStore(path, nil)
	s.debounce = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("Section 1: After"), 0o600))
	assert.Eventually(t, func() bool {
		return s.Text() == "Section 1: After"
	}, 2*time.Second, 20*time.Millisecond)
}
