package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestWatcherLoadsAndReloads(t *testing.T) {
	path := writeYAML(t, "reactor:\n  listenAddr: \"127.0.0.1:9100\"\n")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9100", w.Current().Reactor.ListenAddr)

	reloaded := make(chan struct{}, 1)
	w.OnReload(func() { reloaded <- struct{}{} })

	require.NoError(t, os.WriteFile(path, []byte("reactor:\n  listenAddr: \"127.0.0.1:9200\"\n"), 0o600))
	require.NoError(t, w.Reload())
	require.Equal(t, "127.0.0.1:9200", w.Current().Reactor.ListenAddr)

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("expected OnReload listener to fire")
	}
}

func TestWatcherReloadPropagatesLoadErrors(t *testing.T) {
	path := writeYAML(t, "reactor:\n  listenAddr: \"127.0.0.1:9100\"\n")
	w, err := NewWatcher(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	require.Error(t, w.Reload())
	require.Equal(t, "127.0.0.1:9100", w.Current().Reactor.ListenAddr)
}
